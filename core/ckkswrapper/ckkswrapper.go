// Package ckkswrapper bundles the CKKS key material used for encrypted
// evaluation of a network's hidden layer.
package ckkswrapper

import (
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
	"gonum.org/v1/gonum/mat"
)

// DefaultLogN is the ring degree used by the commands.
const DefaultLogN = 13

// HeContext holds everything the key owner needs: parameters, the secret
// key side (encryptor, decryptor) and the key generator for evaluation keys.
type HeContext struct {
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor

	kgen  *rlwe.KeyGenerator
	sk    *rlwe.SecretKey
	width int
}

// NewHeContext generates fresh keys for vectors of up to width values.
func NewHeContext(logN, width int) (*HeContext, error) {
	params, err := hefloat.NewParametersFromLiteral(hefloat.ParametersLiteral{
		LogN:            logN,
		LogQ:            []int{50, 40},
		LogP:            []int{50},
		LogDefaultScale: 40,
	})
	if err != nil {
		return nil, errors.Wrap(err, "ckks parameters")
	}
	if width < 1 || width > params.MaxSlots() {
		return nil, errors.Errorf("width %d outside [1, %d]", width, params.MaxSlots())
	}

	kgen := hefloat.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &HeContext{
		Params:    params,
		Encoder:   hefloat.NewEncoder(params),
		Encryptor: hefloat.NewEncryptor(params, pk),
		Decryptor: hefloat.NewDecryptor(params, sk),
		kgen:      kgen,
		sk:        sk,
		width:     PaddedWidth(width),
	}, nil
}

// PaddedWidth rounds n up to a power of two, the span summed by rotations.
func PaddedWidth(n int) int {
	w := 1
	for w < n {
		w <<= 1
	}
	return w
}

// EncryptVector encrypts values into the leading slots of a fresh
// ciphertext at the maximum level.
func (h *HeContext) EncryptVector(values []float64) (*rlwe.Ciphertext, error) {
	if len(values) > h.width {
		return nil, errors.Errorf("vector of %d values exceeds width %d", len(values), h.width)
	}
	pt := hefloat.NewPlaintext(h.Params, h.Params.MaxLevel())
	if err := h.Encoder.Encode(values, pt); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	ct, err := h.Encryptor.EncryptNew(pt)
	return ct, errors.Wrap(err, "encrypt")
}

// DecryptFirst decrypts ct and returns the real part of slot 0.
func (h *HeContext) DecryptFirst(ct *rlwe.Ciphertext) (float64, error) {
	pt := h.Decryptor.DecryptNew(ct)
	values := make([]complex128, h.Params.MaxSlots())
	if err := h.Encoder.Decode(pt, values); err != nil {
		return 0, errors.Wrap(err, "decode")
	}
	return real(values[0]), nil
}

// ServerKit is what the evaluating party holds. It has no secret key.
type ServerKit struct {
	Params    hefloat.Parameters
	Evaluator *hefloat.Evaluator
	width     int
}

// GenServerKit generates the relinearisation key and the Galois keys for
// the power-of-two rotations an inner sum over the context width needs.
func (h *HeContext) GenServerKit() *ServerKit {
	var galEls []uint64
	for k := 1; k < h.width; k <<= 1 {
		galEls = append(galEls, h.Params.GaloisElement(k))
	}
	rlk := h.kgen.GenRelinearizationKeyNew(h.sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk, h.kgen.GenGaloisKeysNew(galEls, h.sk)...)
	return &ServerKit{
		Params:    h.Params,
		Evaluator: hefloat.NewEvaluator(h.Params, evk),
		width:     h.width,
	}
}

// InnerSum adds the first width slots of ct into slot 0, in place.
func (s *ServerKit) InnerSum(ct *rlwe.Ciphertext) error {
	for k := 1; k < s.width; k <<= 1 {
		rotated, err := s.Evaluator.RotateNew(ct, k)
		if err != nil {
			return errors.Wrapf(err, "rotate by %d", k)
		}
		if err := s.Evaluator.Add(ct, rotated, ct); err != nil {
			return errors.Wrap(err, "add rotation")
		}
	}
	return nil
}

// HiddenSums evaluates x·W + b on an encrypted input x, where weights is
// inputs × hidden. It returns one ciphertext per hidden unit with the sum in
// slot 0.
func (s *ServerKit) HiddenSums(ct *rlwe.Ciphertext, weights mat.Matrix, biases mat.Vector) ([]*rlwe.Ciphertext, error) {
	rows, cols := weights.Dims()
	if rows > s.width {
		return nil, errors.Errorf("%d weight rows exceed width %d", rows, s.width)
	}
	if biases.Len() != cols {
		return nil, errors.Errorf("%d biases for %d hidden units", biases.Len(), cols)
	}

	out := make([]*rlwe.Ciphertext, cols)
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, weights)
		prod, err := s.Evaluator.MulNew(ct, column)
		if err != nil {
			return nil, errors.Wrapf(err, "unit %d: multiply", j)
		}
		if err := s.Evaluator.Rescale(prod, prod); err != nil {
			return nil, errors.Wrapf(err, "unit %d: rescale", j)
		}
		if err := s.InnerSum(prod); err != nil {
			return nil, errors.Wrapf(err, "unit %d", j)
		}
		if err := s.Evaluator.Add(prod, biases.AtVec(j), prod); err != nil {
			return nil, errors.Wrapf(err, "unit %d: bias", j)
		}
		out[j] = prod
	}
	return out, nil
}
