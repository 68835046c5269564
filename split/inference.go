package split

import (
	"io"

	"ffnet/core/ckkswrapper"
	"ffnet/nn"

	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"gonum.org/v1/gonum/mat"
)

// Server evaluates the hidden layer sums on encrypted inputs. It holds a
// snapshot of the hidden layer and an evaluation kit, never a secret key.
type Server struct {
	kit     *ckkswrapper.ServerKit
	weights *mat.Dense
	biases  *mat.VecDense
}

// NewServer snapshots the hidden layer of net. Later training of net does
// not affect the server.
func NewServer(kit *ckkswrapper.ServerKit, net *nn.Network) (*Server, error) {
	weights, biases := net.HiddenWeights(), net.HiddenBiases()
	if weights == nil || biases == nil {
		return nil, nn.ErrReleased
	}
	return &Server{kit: kit, weights: weights, biases: biases}, nil
}

// Serve answers forward requests on p until the client sends Done, which
// makes it return nil.
func (s *Server) Serve(p *Protocol) error {
	for {
		req, err := p.ReceiveForward()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "receiving input")
		}
		out, err := s.forward(req)
		if err != nil {
			if sendErr := p.SendError(err); sendErr != nil {
				return errors.Wrap(sendErr, "reporting error")
			}
			return err
		}
		if err := p.SendForwardOutput(req.BatchID, out); err != nil {
			return errors.Wrapf(err, "batch %d: sending hidden sums", req.BatchID)
		}
	}
}

func (s *Server) forward(req *ForwardPayload) ([][]byte, error) {
	if len(req.Ciphertexts) != 1 {
		return nil, errors.Errorf("batch %d: want 1 ciphertext, got %d", req.BatchID, len(req.Ciphertexts))
	}
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(req.Ciphertexts[0]); err != nil {
		return nil, errors.Wrapf(err, "batch %d: decoding ciphertext", req.BatchID)
	}
	sums, err := s.kit.HiddenSums(ct, s.weights, s.biases)
	if err != nil {
		return nil, errors.Wrapf(err, "batch %d", req.BatchID)
	}
	out := make([][]byte, len(sums))
	for j, c := range sums {
		if out[j], err = c.MarshalBinary(); err != nil {
			return nil, errors.Wrapf(err, "batch %d: encoding unit %d", req.BatchID, j)
		}
	}
	return out, nil
}

// Client holds the keys and the network. It sends encrypted inputs to a
// Server and finishes the forward pass on the decrypted hidden sums.
type Client struct {
	he    *ckkswrapper.HeContext
	net   *nn.Network
	p     *Protocol
	batch int
}

func NewClient(he *ckkswrapper.HeContext, net *nn.Network, p *Protocol) *Client {
	return &Client{he: he, net: net, p: p}
}

// Predict returns the network outputs for input, with the hidden layer
// sums computed remotely on the encrypted input.
func (c *Client) Predict(input []float64) ([]float64, error) {
	topo := c.net.Topology()
	if len(input) != topo.Input {
		return nil, errors.Wrapf(nn.ErrShape, "input has %d values, want %d", len(input), topo.Input)
	}
	ct, err := c.he.EncryptVector(input)
	if err != nil {
		return nil, err
	}
	data, err := ct.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encoding ciphertext")
	}

	c.batch++
	if err := c.p.SendForward(c.batch, data); err != nil {
		return nil, errors.Wrap(err, "sending input")
	}
	resp, err := c.p.ReceiveForwardOutput()
	if err != nil {
		return nil, errors.Wrap(err, "receiving hidden sums")
	}
	if resp.BatchID != c.batch {
		return nil, errors.Errorf("got batch %d, want %d", resp.BatchID, c.batch)
	}
	if len(resp.Ciphertexts) != topo.Hidden {
		return nil, errors.Errorf("got %d hidden sums, want %d", len(resp.Ciphertexts), topo.Hidden)
	}

	sums := make([]float64, topo.Hidden)
	for j, b := range resp.Ciphertexts {
		unit := new(rlwe.Ciphertext)
		if err := unit.UnmarshalBinary(b); err != nil {
			return nil, errors.Wrapf(err, "decoding unit %d", j)
		}
		if sums[j], err = c.he.DecryptFirst(unit); err != nil {
			return nil, errors.Wrapf(err, "unit %d", j)
		}
	}
	return c.net.PredictFromHiddenSums(sums)
}

// Close tells the server there are no more requests.
func (c *Client) Close() error {
	return c.p.SendDone()
}
