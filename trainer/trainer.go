// Package trainer drives online training of an nn.Network over a stream of
// examples.
package trainer

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"ffnet/dataset"
	"ffnet/nn"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Source yields the example for training step i.
type Source interface {
	Example(i int) (input, target []float64)
}

// ErrEmptySource is returned by Run for a source that reports no examples.
var ErrEmptySource = errors.New("source has no examples")

// SourceFunc adapts a function to Source, typically a generator of
// synthetic examples.
type SourceFunc func(i int) (input, target []float64)

func (f SourceFunc) Example(i int) (input, target []float64) { return f(i) }

// Config controls a training run.
type Config struct {
	Iterations   int
	LearningRate float64

	// Label prefixes the progress bar.
	Label string
	// Progress receives the progress bar. Nil disables it.
	Progress io.Writer
	// Logger receives a summary line per run. Nil disables it.
	Logger *log.Logger
}

// Stats describes a finished run.
type Stats struct {
	Iterations int
	Duration   time.Duration
}

const progressWidth = 25

// Run performs cfg.Iterations training steps on net, one example from src
// per step. It stops at the first failing step and reports how many steps
// completed. Sources with a Len method, such as dataset.Lines, must not be
// empty.
func Run(net *nn.Network, src Source, cfg Config) (Stats, error) {
	start := time.Now()
	var stats Stats
	if sized, ok := src.(interface{ Len() int }); ok && sized.Len() == 0 && cfg.Iterations > 0 {
		return stats, ErrEmptySource
	}
	for i := 0; i < cfg.Iterations; i++ {
		progress(cfg.Progress, cfg.Label, i, cfg.Iterations)
		input, target := src.Example(i)
		if err := net.Train(input, target, cfg.LearningRate); err != nil {
			stats.Duration = time.Since(start)
			return stats, errors.Wrapf(err, "training step %d", i)
		}
		stats.Iterations++
	}
	if cfg.Progress != nil && cfg.Iterations > 0 {
		drawBar(cfg.Progress, cfg.Label, 1)
		fmt.Fprintln(cfg.Progress)
	}
	stats.Duration = time.Since(start)
	if cfg.Logger != nil {
		cfg.Logger.Printf("trained %s for %d steps at rate %g in %v", net.Topology(), stats.Iterations, cfg.LearningRate, stats.Duration)
	}
	return stats, nil
}

// progress redraws the bar about fifty times over a run.
func progress(w io.Writer, label string, current, total int) {
	if w == nil {
		return
	}
	step := total / 50
	if step == 0 {
		step = 1
	}
	if current%step != 0 {
		return
	}
	drawBar(w, label, float64(current)/float64(total))
}

func drawBar(w io.Writer, label string, pct float64) {
	filled := int(progressWidth * pct)
	fmt.Fprintf(w, "\r%s [%s%s] %.0f%%", label,
		strings.Repeat("=", filled), strings.Repeat(" ", progressWidth-filled), pct*100)
}

// MeanSquaredError averages the squared difference between prediction and
// target over every output of every line.
func MeanSquaredError(net *nn.Network, lines dataset.Lines) (float64, error) {
	if len(lines) == 0 {
		return 0, errors.New("no lines to evaluate")
	}
	var sum float64
	var n int
	for i, line := range lines {
		out, err := net.Predict(line.Inputs)
		if err != nil {
			return 0, errors.Wrapf(err, "line %d", i)
		}
		if len(line.Targets) != len(out) {
			return 0, errors.Wrapf(nn.ErrShape, "line %d has %d targets, want %d", i, len(line.Targets), len(out))
		}
		diff := make([]float64, len(out))
		floats.SubTo(diff, line.Targets, out)
		sum += floats.Dot(diff, diff)
		n += len(out)
	}
	return sum / float64(n), nil
}

// LoadOrTrain returns the network stored at path if the file exists. A stored
// network with a different topology is an nn.ErrShape error.
// Otherwise it creates a network for topology, seeds it, hands it to train
// and saves the result to path. The boolean reports whether the network was
// loaded.
func LoadOrTrain(path string, topology nn.Topology, seed uint64, train func(*nn.Network) error) (*nn.Network, bool, error) {
	if _, err := os.Stat(path); err == nil {
		net, err := nn.LoadFile(path)
		if err != nil {
			return nil, true, err
		}
		if got := net.Topology(); got != topology {
			net.Release()
			return nil, true, errors.Wrapf(nn.ErrShape, "%s holds a %s network, want %s", path, got, topology)
		}
		return net, true, nil
	} else if !os.IsNotExist(err) {
		return nil, false, errors.Wrapf(err, "checking %s", path)
	}

	net, err := nn.NewFromTopology(topology)
	if err != nil {
		return nil, false, err
	}
	if err := net.InitSeed(seed); err != nil {
		return nil, false, err
	}
	if err := train(net); err != nil {
		return nil, false, errors.Wrap(err, "training")
	}
	if err := net.SaveFile(path); err != nil {
		return nil, false, err
	}
	return net, false, nil
}
