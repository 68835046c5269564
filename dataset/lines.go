// Package dataset supplies training examples to a network: CSV loading,
// feature scaling and small built-in tables.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

type Line struct {
	Inputs  []float64
	Targets []float64
}
type Lines []Line

// Len reports the number of lines.
func (lines Lines) Len() int { return len(lines) }

// Example returns line i modulo the number of lines, so a Lines value can
// feed a training loop of any length. Empty lines yield nil slices.
func (lines Lines) Example(i int) (input, target []float64) {
	if len(lines) == 0 {
		return nil, nil
	}
	line := lines[i%len(lines)]
	return line.Inputs, line.Targets
}

// GetLines reads comma separated records of inputNum inputs followed by
// outputNum targets. Blank lines are skipped.
func GetLines(reader io.Reader, inputNum, outputNum int) (Lines, error) {
	scanner := bufio.NewScanner(reader)
	var lines Lines
	var lineNum int
	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		splits := strings.Split(text, ",")
		if len(splits) != inputNum+outputNum {
			return lines, errInvalidLine{
				lineNum:  lineNum,
				splits:   len(splits),
				expected: inputNum + outputNum,
			}
		}
		inputs := make([]float64, inputNum)
		targets := make([]float64, outputNum)

		for i, split := range splits {
			num, err := strconv.ParseFloat(strings.TrimSpace(split), 64)
			if err != nil {
				return lines, errors.Wrapf(err, "parsing value %d at line %d", i+1, lineNum)
			}
			if i < inputNum {
				inputs[i] = num
			} else {
				targets[i-inputNum] = num
			}
		}
		lines = append(lines, Line{
			Inputs:  inputs,
			Targets: targets,
		})
	}
	if err := scanner.Err(); err != nil {
		return lines, errors.Wrap(err, "reading lines")
	}
	return lines, nil
}

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}

// Shuffle reorders lines in place using src.
func Shuffle(lines Lines, src rand.Source) {
	rand.New(src).Shuffle(len(lines), func(i, j int) {
		lines[i], lines[j] = lines[j], lines[i]
	})
}
