package nn

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// HiddenWeights returns a copy of the Input×Hidden weight matrix, or nil
// once the network has been released.
func (net *Network) HiddenWeights() *mat.Dense {
	if net.check() != nil {
		return nil
	}
	return mat.DenseCopyOf(net.hiddenWeights)
}

// OutputWeights returns a copy of the Hidden×Output weight matrix.
func (net *Network) OutputWeights() *mat.Dense {
	if net.check() != nil {
		return nil
	}
	return mat.DenseCopyOf(net.outputWeights)
}

// HiddenBiases returns a copy of the hidden layer biases.
func (net *Network) HiddenBiases() *mat.VecDense {
	if net.check() != nil {
		return nil
	}
	return mat.VecDenseCopyOf(net.hiddenBiases)
}

// OutputBiases returns a copy of the output layer biases.
func (net *Network) OutputBiases() *mat.VecDense {
	if net.check() != nil {
		return nil
	}
	return mat.VecDenseCopyOf(net.outputBiases)
}

func checkDims(what string, m mat.Matrix, rows, cols int) error {
	r, c := m.Dims()
	if r != rows || c != cols {
		return errors.Wrapf(ErrShape, "%s is %dx%d, want %dx%d", what, r, c, rows, cols)
	}
	return nil
}

// SetHiddenWeights copies m into the Input×Hidden weight matrix.
func (net *Network) SetHiddenWeights(m mat.Matrix) error {
	if err := net.check(); err != nil {
		return err
	}
	if err := checkDims("hidden weights", m, net.topology.Input, net.topology.Hidden); err != nil {
		return err
	}
	net.hiddenWeights.Copy(m)
	return nil
}

// SetOutputWeights copies m into the Hidden×Output weight matrix.
func (net *Network) SetOutputWeights(m mat.Matrix) error {
	if err := net.check(); err != nil {
		return err
	}
	if err := checkDims("output weights", m, net.topology.Hidden, net.topology.Output); err != nil {
		return err
	}
	net.outputWeights.Copy(m)
	return nil
}

// SetHiddenBiases copies v into the hidden layer biases.
func (net *Network) SetHiddenBiases(v mat.Vector) error {
	if err := net.check(); err != nil {
		return err
	}
	if v.Len() != net.topology.Hidden {
		return errors.Wrapf(ErrShape, "hidden biases have %d values, want %d", v.Len(), net.topology.Hidden)
	}
	net.hiddenBiases.CopyVec(v)
	return nil
}

// SetOutputBiases copies v into the output layer biases.
func (net *Network) SetOutputBiases(v mat.Vector) error {
	if err := net.check(); err != nil {
		return err
	}
	if v.Len() != net.topology.Output {
		return errors.Wrapf(ErrShape, "output biases have %d values, want %d", v.Len(), net.topology.Output)
	}
	net.outputBiases.CopyVec(v)
	return nil
}

// HiddenSums returns the weighted sums feeding the hidden units for input,
// before the activation is applied. It is the part of the forward pass a
// remote party can evaluate without seeing the rest of the network.
func (net *Network) HiddenSums(input []float64) ([]float64, error) {
	if err := net.check(); err != nil {
		return nil, err
	}
	if err := checkLen("input", input, net.topology.Input); err != nil {
		return nil, err
	}
	sums := net.hiddenSums(mat.NewVecDense(len(input), copyOf(input)))
	return sums.RawVector().Data, nil
}

// PredictFromHiddenSums finishes a forward pass started by HiddenSums.
// PredictFromHiddenSums(HiddenSums(x)) equals Predict(x).
func (net *Network) PredictFromHiddenSums(sums []float64) ([]float64, error) {
	if err := net.check(); err != nil {
		return nil, err
	}
	if err := checkLen("hidden sums", sums, net.topology.Hidden); err != nil {
		return nil, err
	}
	hidden := mat.NewVecDense(len(sums), copyOf(sums))
	activate(hidden)
	return net.outputFrom(hidden).RawVector().Data, nil
}
