package utils

import (
	"encoding/json"
	"os"

	"ffnet/dataset"
	"ffnet/nn"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights represents all weights in a model
type ModelWeights struct {
	Version  string                 `json:"version"`
	Topology nn.Topology            `json:"topology"`
	Layers   map[string]LayerWeight `json:"layers"`

	// Normalization is set when the network was trained on standardised
	// inputs.
	Normalization *Normalization `json:"normalization,omitempty"`
}

// Normalization holds the per-feature statistics inputs were standardised
// with during training.
type Normalization struct {
	Mean   []float64 `json:"mean"`
	StdDev []float64 `json:"std_dev"`
}

// Apply standardises x the way the training inputs were.
func (n *Normalization) Apply(x []float64) ([]float64, error) {
	if len(n.Mean) != len(x) || len(n.StdDev) != len(x) {
		return nil, errors.Wrapf(nn.ErrShape, "normalization covers %d/%d features, input has %d", len(n.Mean), len(n.StdDev), len(x))
	}
	lines := dataset.NormalizeLines(dataset.Lines{{Inputs: x}}, n.StdDev, n.Mean)
	return lines[0].Inputs, nil
}

// LayerWeight contains weights and bias for a layer
type LayerWeight struct {
	Weight *WeightData `json:"weight,omitempty"`
	Bias   *WeightData `json:"bias,omitempty"`
}

const weightsVersion = "1.0"

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal weights")
	}
	return errors.Wrap(os.WriteFile(filepath, data, 0644), "failed to write weights file")
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read weights file")
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal weights")
	}
	return &weights, nil
}

// DenseToWeightData converts a matrix to serializable weight data
func DenseToWeightData(name string, m *mat.Dense) *WeightData {
	r, c := m.Dims()
	return &WeightData{
		Name:  name,
		Shape: []int{r, c},
		Data:  mat.DenseCopyOf(m).RawMatrix().Data,
	}
}

// VecToWeightData converts a vector to serializable weight data
func VecToWeightData(name string, v *mat.VecDense) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: []int{v.Len()},
		Data:  mat.VecDenseCopyOf(v).RawVector().Data,
	}
}

// ExportWeights snapshots the parameters of net.
func ExportWeights(net *nn.Network) *ModelWeights {
	return &ModelWeights{
		Version:  weightsVersion,
		Topology: net.Topology(),
		Layers: map[string]LayerWeight{
			"hidden": {
				Weight: DenseToWeightData("hidden_weight", net.HiddenWeights()),
				Bias:   VecToWeightData("hidden_bias", net.HiddenBiases()),
			},
			"output": {
				Weight: DenseToWeightData("output_weight", net.OutputWeights()),
				Bias:   VecToWeightData("output_bias", net.OutputBiases()),
			},
		},
	}
}

func weightDataToDense(wd *WeightData, rows, cols int) (*mat.Dense, error) {
	if wd == nil || len(wd.Shape) != 2 || wd.Shape[0] != rows || wd.Shape[1] != cols || len(wd.Data) != rows*cols {
		return nil, errors.Wrapf(nn.ErrShape, "weight data does not describe a %dx%d matrix", rows, cols)
	}
	return mat.NewDense(rows, cols, append([]float64(nil), wd.Data...)), nil
}

func weightDataToVec(wd *WeightData, n int) (*mat.VecDense, error) {
	if wd == nil || len(wd.Shape) != 1 || wd.Shape[0] != n || len(wd.Data) != n {
		return nil, errors.Wrapf(nn.ErrShape, "bias data does not describe a vector of %d", n)
	}
	return mat.NewVecDense(n, append([]float64(nil), wd.Data...)), nil
}

// ImportWeights builds a network from exported weights.
func ImportWeights(mw *ModelWeights) (*nn.Network, error) {
	t := mw.Topology
	net, err := nn.NewFromTopology(t)
	if err != nil {
		return nil, err
	}
	hidden, ok := mw.Layers["hidden"]
	if !ok {
		return nil, errors.New("weights have no hidden layer")
	}
	output, ok := mw.Layers["output"]
	if !ok {
		return nil, errors.New("weights have no output layer")
	}

	hw, err := weightDataToDense(hidden.Weight, t.Input, t.Hidden)
	if err != nil {
		return nil, errors.Wrap(err, "hidden layer")
	}
	hb, err := weightDataToVec(hidden.Bias, t.Hidden)
	if err != nil {
		return nil, errors.Wrap(err, "hidden layer")
	}
	ow, err := weightDataToDense(output.Weight, t.Hidden, t.Output)
	if err != nil {
		return nil, errors.Wrap(err, "output layer")
	}
	ob, err := weightDataToVec(output.Bias, t.Output)
	if err != nil {
		return nil, errors.Wrap(err, "output layer")
	}

	for _, err := range []error{
		net.SetHiddenWeights(hw),
		net.SetHiddenBiases(hb),
		net.SetOutputWeights(ow),
		net.SetOutputBiases(ob),
	} {
		if err != nil {
			return nil, err
		}
	}
	return net, nil
}
