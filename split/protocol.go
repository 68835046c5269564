// Package split runs inference with the hidden layer evaluated on
// encrypted inputs by a party that never sees the secret key.
package split

import (
	"encoding/gob"
	"io"

	"github.com/pkg/errors"
)

func init() {
	gob.Register(ForwardPayload{})
}

// MessageType defines message types for the split inference protocol
type MessageType int

const (
	MsgForwardInput MessageType = iota
	MsgForwardOutput
	MsgDone
	MsgError
)

// Message represents a message in the split inference protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// ForwardPayload carries marshalled ciphertexts. An input carries one
// ciphertext, an output one per hidden unit.
type ForwardPayload struct {
	BatchID     int
	Ciphertexts [][]byte
}

// Protocol handles split inference communication
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	p := &Protocol{}
	if w != nil {
		p.encoder = gob.NewEncoder(w)
	}
	if r != nil {
		p.decoder = gob.NewDecoder(r)
	}
	return p
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendForward sends an encrypted input
func (p *Protocol) SendForward(batchID int, ct []byte) error {
	return p.Send(&Message{
		Type:    MsgForwardInput,
		Payload: ForwardPayload{BatchID: batchID, Ciphertexts: [][]byte{ct}},
	})
}

// SendForwardOutput sends the encrypted hidden sums for a batch
func (p *Protocol) SendForwardOutput(batchID int, cts [][]byte) error {
	return p.Send(&Message{
		Type:    MsgForwardOutput,
		Payload: ForwardPayload{BatchID: batchID, Ciphertexts: cts},
	})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// ReceiveForward receives an encrypted input. It returns io.EOF once the
// peer has sent Done.
func (p *Protocol) ReceiveForward() (*ForwardPayload, error) {
	return p.receive(MsgForwardInput)
}

// ReceiveForwardOutput receives the hidden sums for a batch.
func (p *Protocol) ReceiveForwardOutput() (*ForwardPayload, error) {
	return p.receive(MsgForwardOutput)
}

func (p *Protocol) receive(want MessageType) (*ForwardPayload, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case MsgError:
		return nil, errors.Errorf("remote error: %v", msg.Payload)
	case MsgDone:
		return nil, io.EOF
	case want:
	default:
		return nil, errors.Errorf("expected message %d, got %d", want, msg.Type)
	}
	payload, ok := msg.Payload.(ForwardPayload)
	if !ok {
		return nil, errors.New("invalid forward payload type")
	}
	return &payload, nil
}
