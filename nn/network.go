// Package nn implements a fixed three-layer feedforward network (input,
// one hidden layer, output) with sigmoid activations, trained one example at
// a time by stochastic gradient descent.
//
// A Network is not safe for concurrent use.
package nn

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Topology is the number of units in each of the three layers.
type Topology struct {
	Input  int
	Hidden int
	Output int
}

// Validate reports whether every count is at least one.
func (t Topology) Validate() error {
	if t.Input < 1 || t.Hidden < 1 || t.Output < 1 {
		return errors.Wrapf(ErrTopology, "got %s", t)
	}
	return nil
}

func (t Topology) String() string {
	return fmt.Sprintf("%d-%d-%d", t.Input, t.Hidden, t.Output)
}

// Network holds the parameters of a three-layer network.
type Network struct {
	topology Topology

	// hiddenWeights is Input×Hidden, entry (i, j) connects input i to hidden j.
	hiddenWeights *mat.Dense
	// outputWeights is Hidden×Output, entry (i, j) connects hidden i to output j.
	outputWeights *mat.Dense
	hiddenBiases  *mat.VecDense
	outputBiases  *mat.VecDense
}

// New allocates a network for the given layer sizes. All parameters start at
// zero; call Init or fill the network through the setters before use.
func New(input, hidden, output int) (*Network, error) {
	return NewFromTopology(Topology{Input: input, Hidden: hidden, Output: output})
}

// NewFromTopology is like New but takes a Topology.
func NewFromTopology(t Topology) (*Network, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Network{
		topology:      t,
		hiddenWeights: mat.NewDense(t.Input, t.Hidden, nil),
		outputWeights: mat.NewDense(t.Hidden, t.Output, nil),
		hiddenBiases:  mat.NewVecDense(t.Hidden, nil),
		outputBiases:  mat.NewVecDense(t.Output, nil),
	}, nil
}

// Init fills both weight matrices with independent values drawn uniformly
// from [-1, 1] and sets every bias to zero. Hidden weights are drawn first,
// row by row, then output weights.
func (net *Network) Init(src rand.Source) error {
	if err := net.check(); err != nil {
		return err
	}
	if src == nil {
		return ErrNilSource
	}
	dist := distuv.Uniform{Min: -1, Max: 1, Src: src}
	fill := func(m *mat.Dense) {
		r, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				m.Set(i, j, dist.Rand())
			}
		}
	}
	fill(net.hiddenWeights)
	fill(net.outputWeights)
	net.hiddenBiases.Zero()
	net.outputBiases.Zero()
	return nil
}

// InitSeed calls Init with a source seeded by seed.
func (net *Network) InitSeed(seed uint64) error {
	return net.Init(rand.NewSource(seed))
}

// Release drops the parameters. Any later call on net returns ErrReleased.
func (net *Network) Release() {
	net.hiddenWeights = nil
	net.outputWeights = nil
	net.hiddenBiases = nil
	net.outputBiases = nil
}

func (net *Network) check() error {
	if net == nil || net.hiddenWeights == nil {
		return ErrReleased
	}
	return nil
}

// Topology returns the layer sizes of net.
func (net *Network) Topology() Topology {
	return net.topology
}

func checkLen(what string, v []float64, want int) error {
	if len(v) != want {
		return errors.Wrapf(ErrShape, "%s has %d values, want %d", what, len(v), want)
	}
	return nil
}

// forward runs both layers and returns the hidden and output activations.
func (net *Network) forward(input *mat.VecDense) (hidden, output *mat.VecDense) {
	hidden = net.hiddenSums(input)
	activate(hidden)
	output = net.outputFrom(hidden)
	return hidden, output
}

func (net *Network) hiddenSums(input *mat.VecDense) *mat.VecDense {
	sums := mat.NewVecDense(net.topology.Hidden, nil)
	sums.MulVec(net.hiddenWeights.T(), input)
	sums.AddVec(sums, net.hiddenBiases)
	return sums
}

func (net *Network) outputFrom(hidden *mat.VecDense) *mat.VecDense {
	output := mat.NewVecDense(net.topology.Output, nil)
	output.MulVec(net.outputWeights.T(), hidden)
	output.AddVec(output, net.outputBiases)
	activate(output)
	return output
}

// Predict returns the output activations for input. The result is a new
// slice; net is not modified.
func (net *Network) Predict(input []float64) ([]float64, error) {
	if err := net.check(); err != nil {
		return nil, err
	}
	if err := checkLen("input", input, net.topology.Input); err != nil {
		return nil, err
	}
	_, output := net.forward(mat.NewVecDense(len(input), copyOf(input)))
	return output.RawVector().Data, nil
}

// Train applies one online gradient descent step for a single example,
// minimising the squared error between the prediction and target.
func (net *Network) Train(input, target []float64, learningRate float64) error {
	if err := net.check(); err != nil {
		return err
	}
	if err := checkLen("input", input, net.topology.Input); err != nil {
		return err
	}
	if err := checkLen("target", target, net.topology.Output); err != nil {
		return err
	}

	x := mat.NewVecDense(len(input), copyOf(input))
	hidden, output := net.forward(x)

	outputDeltas := mat.NewVecDense(net.topology.Output, copyOf(target))
	outputDeltas.SubVec(outputDeltas, output)
	outputDeltas.MulElemVec(outputDeltas, deactivate(output))

	// the hidden deltas must see the output weights before this step's update
	hiddenDeltas := mat.NewVecDense(net.topology.Hidden, nil)
	hiddenDeltas.MulVec(net.outputWeights, outputDeltas)
	hiddenDeltas.MulElemVec(hiddenDeltas, deactivate(hidden))

	net.outputWeights.RankOne(net.outputWeights, learningRate, hidden, outputDeltas)
	net.outputBiases.AddScaledVec(net.outputBiases, learningRate, outputDeltas)

	net.hiddenWeights.RankOne(net.hiddenWeights, learningRate, x, hiddenDeltas)
	net.hiddenBiases.AddScaledVec(net.hiddenBiases, learningRate, hiddenDeltas)
	return nil
}

func copyOf(v []float64) []float64 {
	return append([]float64(nil), v...)
}
