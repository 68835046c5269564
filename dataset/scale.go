package dataset

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func column(lines Lines, i int) []float64 {
	col := make([]float64, len(lines))
	for n, line := range lines {
		col[n] = line.Inputs[i]
	}
	return col
}

// CalculateMean returns the mean of every input feature.
func CalculateMean(lines Lines) []float64 {
	if len(lines) == 0 {
		return nil
	}
	mean := make([]float64, len(lines[0].Inputs))
	for i := range mean {
		mean[i] = stat.Mean(column(lines, i), nil)
	}
	return mean
}

// CalculateStdDev returns the population standard deviation of every input
// feature.
func CalculateStdDev(lines Lines) []float64 {
	if len(lines) == 0 {
		return nil
	}
	std := make([]float64, len(lines[0].Inputs))
	for i := range std {
		_, std[i] = stat.PopMeanStdDev(column(lines, i), nil)
	}
	return std
}

// NormalizeLines returns copies of lines with every input centred on mean
// and divided by std. Features with zero spread are only centred.
func NormalizeLines(lines Lines, std []float64, mean []float64) Lines {
	normalizedLines := make(Lines, len(lines))
	for i, line := range lines {
		normalizedInputs := make([]float64, len(line.Inputs))
		for j, x := range line.Inputs {
			normalizedInputs[j] = x - mean[j]
			if std[j] != 0 && !math.IsNaN(std[j]) {
				normalizedInputs[j] /= std[j]
			}
		}
		normalizedLines[i] = Line{
			Inputs:  normalizedInputs,
			Targets: line.Targets,
		}
	}
	return normalizedLines
}

// ScaleByMax returns copies of lines with input feature i divided by max[i],
// mapping a known value range onto [0, 1].
func ScaleByMax(lines Lines, max []float64) (Lines, error) {
	for i, m := range max {
		if m <= 0 {
			return nil, errors.Errorf("scale for feature %d must be positive, got %v", i, m)
		}
	}
	inv := make([]float64, len(max))
	for i, m := range max {
		inv[i] = 1 / m
	}
	scaled := make(Lines, len(lines))
	for n, line := range lines {
		if len(line.Inputs) != len(max) {
			return nil, errors.Errorf("line %d has %d inputs, want %d", n, len(line.Inputs), len(max))
		}
		inputs := make([]float64, len(line.Inputs))
		floats.MulTo(inputs, line.Inputs, inv)
		scaled[n] = Line{Inputs: inputs, Targets: line.Targets}
	}
	return scaled, nil
}
