package trainer

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ffnet/dataset"
	"ffnet/nn"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T, topo nn.Topology, seed uint64) *nn.Network {
	t.Helper()
	net, err := nn.NewFromTopology(topo)
	require.NoError(t, err)
	require.NoError(t, net.InitSeed(seed))
	return net
}

func TestRunReducesError(t *testing.T) {
	lines, err := dataset.Logic("and")
	require.NoError(t, err)
	net := seeded(t, nn.Topology{Input: 2, Hidden: 2, Output: 1}, 1)

	before, err := MeanSquaredError(net, lines)
	require.NoError(t, err)

	var progress, logs bytes.Buffer
	stats, err := Run(net, lines, Config{
		Iterations:   20000,
		LearningRate: 0.5,
		Label:        "AND",
		Progress:     &progress,
		Logger:       log.New(&logs, "", 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 20000, stats.Iterations)

	after, err := MeanSquaredError(net, lines)
	require.NoError(t, err)
	assert.Less(t, after, before/10)

	assert.True(t, strings.HasPrefix(progress.String(), "\rAND ["))
	assert.Contains(t, progress.String(), "[=========================] 100%")
	assert.Contains(t, logs.String(), "trained 2-2-1 for 20000 steps")
}

func TestRunStopsAtFirstError(t *testing.T) {
	net := seeded(t, nn.Topology{Input: 2, Hidden: 2, Output: 1}, 1)
	src := SourceFunc(func(i int) ([]float64, []float64) {
		if i == 3 {
			return []float64{1}, []float64{1}
		}
		return []float64{1, 0}, []float64{1}
	})
	stats, err := Run(net, src, Config{Iterations: 10, LearningRate: 0.1})
	assert.True(t, errors.Is(err, nn.ErrShape), "got %v", err)
	assert.Equal(t, 3, stats.Iterations)
}

func TestRunEmptyLines(t *testing.T) {
	net := seeded(t, nn.Topology{Input: 2, Hidden: 2, Output: 1}, 1)
	stats, err := Run(net, dataset.Lines{}, Config{Iterations: 3, LearningRate: 0.1})
	assert.True(t, errors.Is(err, ErrEmptySource), "got %v", err)
	assert.Equal(t, 0, stats.Iterations)

	_, err = Run(net, dataset.Lines{}, Config{Iterations: 0})
	assert.NoError(t, err)
}

func TestRunSyntheticSource(t *testing.T) {
	// learn to tell whether the first input is larger than the second
	net := seeded(t, nn.Topology{Input: 2, Hidden: 4, Output: 1}, 5)
	src := SourceFunc(func(i int) ([]float64, []float64) {
		a := float64(i%11) / 10
		b := float64((i*7)%11) / 10
		if a > b {
			return []float64{a, b}, []float64{1}
		}
		return []float64{a, b}, []float64{0}
	})
	_, err := Run(net, src, Config{Iterations: 30000, LearningRate: 0.5})
	require.NoError(t, err)

	high, err := net.Predict([]float64{0.9, 0.1})
	require.NoError(t, err)
	low, err := net.Predict([]float64{0.1, 0.9})
	require.NoError(t, err)
	assert.Greater(t, high[0], 0.5)
	assert.Less(t, low[0], 0.5)
}

func TestMeanSquaredError(t *testing.T) {
	net := seeded(t, nn.Topology{Input: 1, Hidden: 1, Output: 2}, 2)
	out, err := net.Predict([]float64{0.5})
	require.NoError(t, err)

	lines := dataset.Lines{{Inputs: []float64{0.5}, Targets: []float64{out[0] + 0.5, out[1]}}}
	mse, err := MeanSquaredError(net, lines)
	require.NoError(t, err)
	assert.InDelta(t, 0.125, mse, 1e-12)

	_, err = MeanSquaredError(net, nil)
	assert.Error(t, err)
	_, err = MeanSquaredError(net, dataset.Lines{{Inputs: []float64{0.5}, Targets: []float64{1}}})
	assert.True(t, errors.Is(err, nn.ErrShape))
}

func TestLoadOrTrain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brain_and.dat")
	topo := nn.Topology{Input: 2, Hidden: 3, Output: 1}
	lines, err := dataset.Logic("and")
	require.NoError(t, err)

	calls := 0
	train := func(net *nn.Network) error {
		calls++
		_, err := Run(net, lines, Config{Iterations: 1000, LearningRate: 0.5})
		return err
	}

	first, loaded, err := LoadOrTrain(path, topo, 3, train)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 1, calls)
	_, err = os.Stat(path)
	require.NoError(t, err)

	second, loaded, err := LoadOrTrain(path, topo, 3, train)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, 1, calls)

	want, err := first.Predict([]float64{1, 1})
	require.NoError(t, err)
	got, err := second.Predict([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadOrTrainPropagatesTrainingError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brain.dat")
	boom := errors.New("boom")
	_, _, err := LoadOrTrain(path, nn.Topology{Input: 1, Hidden: 1, Output: 1}, 1, func(*nn.Network) error {
		return boom
	})
	assert.True(t, errors.Is(err, boom))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing should be saved after a failed run")
}

func TestLoadOrTrainTopologyMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brain.dat")
	stored := seeded(t, nn.Topology{Input: 2, Hidden: 3, Output: 1}, 4)
	require.NoError(t, stored.SaveFile(path))

	calls := 0
	net, loaded, err := LoadOrTrain(path, nn.Topology{Input: 2, Hidden: 4, Output: 1}, 4, func(*nn.Network) error {
		calls++
		return nil
	})
	assert.True(t, errors.Is(err, nn.ErrShape), "got %v", err)
	assert.Nil(t, net)
	assert.True(t, loaded)
	assert.Equal(t, 0, calls)
}
