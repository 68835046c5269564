package nn

import "github.com/pkg/errors"

// These are the errors returned by the engine. Callers compare against them
// with errors.Is; the returned values are wrapped with context.
var (
	ErrTopology  = errors.New("nn: topology counts must be positive")
	ErrShape     = errors.New("nn: dimension mismatch")
	ErrCorrupt   = errors.New("nn: corrupt network data")
	ErrReleased  = errors.New("nn: network has been released")
	ErrNilSource = errors.New("nn: nil random source")
)
