package dataset

import "github.com/pkg/errors"

var gates = map[string]func(a, b bool) bool{
	"and":  func(a, b bool) bool { return a && b },
	"or":   func(a, b bool) bool { return a || b },
	"xor":  func(a, b bool) bool { return a != b },
	"nand": func(a, b bool) bool { return !(a && b) },
}

// Logic returns the four-row truth table of a two-input gate ("and", "or",
// "xor" or "nand") with 0/1 inputs and a single 0/1 target.
func Logic(op string) (Lines, error) {
	gate, ok := gates[op]
	if !ok {
		return nil, errors.Errorf("unknown gate %q", op)
	}
	lines := make(Lines, 0, 4)
	for _, a := range []bool{false, true} {
		for _, b := range []bool{false, true} {
			lines = append(lines, Line{
				Inputs:  []float64{bit(a), bit(b)},
				Targets: []float64{bit(gate(a, b))},
			})
		}
	}
	return lines, nil
}

func bit(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
