package nn

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Limits applied to a persisted header before anything is allocated.
const (
	MaxUnits  = 1 << 20
	MaxParams = 1 << 26
)

// byteOrder is the host order; files are only portable between machines
// that agree on it.
var byteOrder = binary.NativeEndian

// Save writes net to w: the three layer sizes as 32-bit integers, then the
// hidden weights and output weights row by row, then the hidden and output
// biases, all as 64-bit floats in host byte order.
func (net *Network) Save(w io.Writer) error {
	if err := net.check(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	header := [3]int32{int32(net.topology.Input), int32(net.topology.Hidden), int32(net.topology.Output)}
	if err := binary.Write(bw, byteOrder, header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, m := range []*mat.Dense{net.hiddenWeights, net.outputWeights} {
		r, _ := m.Dims()
		for i := 0; i < r; i++ {
			if err := binary.Write(bw, byteOrder, m.RawRowView(i)); err != nil {
				return errors.Wrap(err, "writing weights")
			}
		}
	}
	for _, v := range []*mat.VecDense{net.hiddenBiases, net.outputBiases} {
		if err := binary.Write(bw, byteOrder, v.RawVector().Data); err != nil {
			return errors.Wrap(err, "writing biases")
		}
	}
	return errors.Wrap(bw.Flush(), "flushing network")
}

// SaveFile writes net to the named file, creating or truncating it. A
// released network leaves the file untouched.
func (net *Network) SaveFile(filename string) (err error) {
	if err := net.check(); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filename)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing %s", filename)
		}
	}()
	if err = net.Save(f); err != nil {
		return errors.Wrapf(err, "saving %s", filename)
	}
	return nil
}

// Load reads a network in the format written by Save.
func Load(r io.Reader) (*Network, error) {
	br := bufio.NewReader(r)
	var header [3]int32
	if err := binary.Read(br, byteOrder, &header); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "reading header: %v", err)
	}
	t := Topology{Input: int(header[0]), Hidden: int(header[1]), Output: int(header[2])}
	if err := checkHeader(t); err != nil {
		return nil, err
	}

	net, err := NewFromTopology(t)
	if err != nil {
		return nil, err
	}
	for _, m := range []*mat.Dense{net.hiddenWeights, net.outputWeights} {
		r, _ := m.Dims()
		for i := 0; i < r; i++ {
			if err := binary.Read(br, byteOrder, m.RawRowView(i)); err != nil {
				return nil, errors.Wrapf(ErrCorrupt, "reading weights: %v", err)
			}
		}
	}
	for _, v := range []*mat.VecDense{net.hiddenBiases, net.outputBiases} {
		if err := binary.Read(br, byteOrder, v.RawVector().Data); err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "reading biases: %v", err)
		}
	}
	return net, nil
}

func checkHeader(t Topology) error {
	for _, n := range []int{t.Input, t.Hidden, t.Output} {
		if n < 1 || n > MaxUnits {
			return errors.Wrapf(ErrCorrupt, "layer size %d in topology %s", n, t)
		}
	}
	params := t.Input*t.Hidden + t.Hidden*t.Output + t.Hidden + t.Output
	if params > MaxParams {
		return errors.Wrapf(ErrCorrupt, "topology %s needs %d parameters", t, params)
	}
	return nil
}

// LoadFile reads a network from the named file. A nil network is returned
// with the error when the file cannot be opened or parsed.
func LoadFile(filename string) (*Network, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer f.Close()
	net, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", filename)
	}
	return net, nil
}
