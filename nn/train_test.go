package nn

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// params flattens every parameter of net: hidden weights, output weights,
// hidden biases, output biases.
func params(net *Network) []float64 {
	var p []float64
	p = append(p, net.hiddenWeights.RawMatrix().Data...)
	p = append(p, net.outputWeights.RawMatrix().Data...)
	p = append(p, net.hiddenBiases.RawVector().Data...)
	p = append(p, net.outputBiases.RawVector().Data...)
	return p
}

func setParams(net *Network, p []float64) {
	for _, dst := range [][]float64{
		net.hiddenWeights.RawMatrix().Data,
		net.outputWeights.RawMatrix().Data,
		net.hiddenBiases.RawVector().Data,
		net.outputBiases.RawVector().Data,
	} {
		n := copy(dst, p)
		p = p[n:]
	}
}

func handSetNetwork(t *testing.T) *Network {
	t.Helper()
	net, err := New(2, 2, 1)
	require.NoError(t, err)
	require.NoError(t, net.SetHiddenWeights(mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, 0.4})))
	require.NoError(t, net.SetOutputWeights(mat.NewDense(2, 1, []float64{0.5, 0.6})))
	return net
}

// referenceStep is a loop-by-loop rendition of one training step on plain
// slices, kept independent of the gonum code path.
func referenceStep(hw, ow [][]float64, hb, ob, input, target []float64, lr float64) {
	hidden := make([]float64, len(hb))
	for j := range hidden {
		sum := hb[j]
		for i := range input {
			sum += input[i] * hw[i][j]
		}
		hidden[j] = 1 / (1 + math.Exp(-sum))
	}
	output := make([]float64, len(ob))
	for k := range output {
		sum := ob[k]
		for j := range hidden {
			sum += hidden[j] * ow[j][k]
		}
		output[k] = 1 / (1 + math.Exp(-sum))
	}
	od := make([]float64, len(ob))
	for k := range od {
		od[k] = (target[k] - output[k]) * output[k] * (1 - output[k])
	}
	hd := make([]float64, len(hb))
	for j := range hd {
		e := 0.0
		for k := range od {
			e += od[k] * ow[j][k]
		}
		hd[j] = e * hidden[j] * (1 - hidden[j])
	}
	for k := range od {
		for j := range hidden {
			ow[j][k] += lr * od[k] * hidden[j]
		}
		ob[k] += lr * od[k]
	}
	for j := range hd {
		for i := range input {
			hw[i][j] += lr * hd[j] * input[i]
		}
		hb[j] += lr * hd[j]
	}
}

func TestTrainHandComputedStep(t *testing.T) {
	net := handSetNetwork(t)
	input, target := []float64{1, 0}, []float64{1}

	sums, err := net.HiddenSums(input)
	require.NoError(t, err)
	assert.InDelta(t, 0.5250, Sigmoid(sums[0]), 1e-4)
	assert.InDelta(t, 0.5498, Sigmoid(sums[1]), 1e-4)
	out, err := net.Predict(input)
	require.NoError(t, err)
	assert.InDelta(t, 0.64391, out[0], 1e-5)

	require.NoError(t, net.Train(input, target, 0.5))

	hw := [][]float64{{0.1, 0.2}, {0.3, 0.4}}
	ow := [][]float64{{0.5}, {0.6}}
	hb, ob := []float64{0, 0}, []float64{0}
	referenceStep(hw, ow, hb, ob, input, target, 0.5)

	const tol = 1e-9
	gotHW, gotOW := net.HiddenWeights(), net.OutputWeights()
	for i := range hw {
		for j := range hw[i] {
			assert.InDelta(t, hw[i][j], gotHW.At(i, j), tol, "hidden weight %d,%d", i, j)
		}
	}
	for j := range ow {
		assert.InDelta(t, ow[j][0], gotOW.At(j, 0), tol, "output weight %d", j)
	}
	for j := range hb {
		assert.InDelta(t, hb[j], net.HiddenBiases().AtVec(j), tol)
	}
	assert.InDelta(t, ob[0], net.OutputBiases().AtVec(0), tol)

	// values worked out by hand for this example
	assert.InDelta(t, 0.521431419345146, gotOW.At(0, 0), tol)
	assert.InDelta(t, 0.6224460764305906, gotOW.At(1, 0), tol)
	assert.InDelta(t, 0.10509018511540542, gotHW.At(0, 0), tol)
	assert.InDelta(t, 0.20606267630166655, gotHW.At(0, 1), tol)
	assert.Equal(t, 0.3, gotHW.At(1, 0))
	assert.Equal(t, 0.4, gotHW.At(1, 1))
	assert.InDelta(t, 0.04082336949025393, net.OutputBiases().AtVec(0), tol)
}

func TestTrainMatchesReferenceOnRandomNetwork(t *testing.T) {
	net := newSeeded(t, 4, 3, 2, 99)
	toRows := func(m *mat.Dense) [][]float64 {
		r, _ := m.Dims()
		rows := make([][]float64, r)
		for i := range rows {
			rows[i] = append([]float64(nil), m.RawRowView(i)...)
		}
		return rows
	}
	hw, ow := toRows(net.HiddenWeights()), toRows(net.OutputWeights())
	hb, ob := net.HiddenBiases().RawVector().Data, net.OutputBiases().RawVector().Data

	examples := [][2][]float64{
		{{0.1, 0.9, -0.4, 0.3}, {1, 0}},
		{{0.5, 0.5, 0.5, 0.5}, {0, 1}},
		{{-1, 0, 1, 0.25}, {0.3, 0.7}},
	}
	for n := 0; n < 30; n++ {
		ex := examples[n%len(examples)]
		require.NoError(t, net.Train(ex[0], ex[1], 0.3))
		referenceStep(hw, ow, hb, ob, ex[0], ex[1], 0.3)
	}
	got := params(net)
	var want []float64
	for _, r := range hw {
		want = append(want, r...)
	}
	for _, r := range ow {
		want = append(want, r...)
	}
	want = append(want, hb...)
	want = append(want, ob...)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "parameter %d", i)
	}
}

func TestTrainZeroLearningRate(t *testing.T) {
	net := newSeeded(t, 3, 4, 2, 3)
	require.NoError(t, net.SetHiddenBiases(mat.NewVecDense(4, []float64{0.1, -0.2, 0.3, -0.4})))
	before := params(net)
	for i := 0; i < 10; i++ {
		require.NoError(t, net.Train([]float64{0.3, -1, 2}, []float64{1, 0}, 0))
	}
	assert.Equal(t, before, params(net))
}

func TestTrainShapeLeavesNetworkUntouched(t *testing.T) {
	net := newSeeded(t, 2, 3, 1, 4)
	before := params(net)
	assert.True(t, errors.Is(net.Train([]float64{1}, []float64{1}, 0.5), ErrShape))
	assert.True(t, errors.Is(net.Train([]float64{1, 0}, []float64{1, 0}, 0.5), ErrShape))
	assert.Equal(t, before, params(net))
}

// The update applied by Train is -learningRate times the gradient of
// ½‖target-output‖² with respect to every parameter.
func TestTrainFollowsNumericalGradient(t *testing.T) {
	net := newSeeded(t, 3, 4, 2, 21)
	require.NoError(t, net.SetHiddenBiases(mat.NewVecDense(4, []float64{0.05, -0.1, 0.2, 0})))
	require.NoError(t, net.SetOutputBiases(mat.NewVecDense(2, []float64{-0.3, 0.15})))
	input, target := []float64{0.4, -0.8, 0.6}, []float64{0.9, 0.1}

	theta := params(net)
	probe, err := New(3, 4, 2)
	require.NoError(t, err)
	loss := func(p []float64) float64 {
		setParams(probe, p)
		out, err := probe.Predict(input)
		if err != nil {
			panic(err)
		}
		l := 0.0
		for k := range out {
			d := target[k] - out[k]
			l += 0.5 * d * d
		}
		return l
	}
	grad := fd.Gradient(nil, loss, theta, &fd.Settings{Formula: fd.Central})

	const lr = 0.25
	require.NoError(t, net.Train(input, target, lr))
	after := params(net)
	for i := range theta {
		step := after[i] - theta[i]
		assert.InDelta(t, -lr*grad[i], step, 1e-7, "parameter %d", i)
	}
}

func TestTrainLearnsAND(t *testing.T) {
	net := newSeeded(t, 2, 2, 1, 1)
	inputs := [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	targets := [][]float64{{0}, {0}, {0}, {1}}

	mse := func() float64 {
		sum := 0.0
		for i, in := range inputs {
			out, err := net.Predict(in)
			require.NoError(t, err)
			d := targets[i][0] - out[0]
			sum += d * d
		}
		return sum / float64(len(inputs))
	}

	initial := mse()
	for n := 0; n < 20000; n++ {
		i := n % len(inputs)
		require.NoError(t, net.Train(inputs[i], targets[i], 0.5))
	}
	final := mse()
	t.Logf("AND mse: initial %.5f, final %.5f", initial, final)
	assert.Less(t, final, initial/10)
}
