package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sigmoid is the logistic function, used by both the hidden and the output
// layer.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// SigmoidDerivative returns the slope of the sigmoid at a point whose
// activation is a. It must be given the activated value, not the weighted sum.
func SigmoidDerivative(a float64) float64 {
	return a * (1.0 - a)
}

// activate applies Sigmoid to every element of v in place.
func activate(v *mat.VecDense) {
	for i := 0; i < v.Len(); i++ {
		v.SetVec(i, Sigmoid(v.AtVec(i)))
	}
}

// deactivate returns a new vector holding SigmoidDerivative of every
// activation in v.
func deactivate(v mat.Vector) *mat.VecDense {
	o := mat.NewVecDense(v.Len(), nil)
	for i := 0; i < v.Len(); i++ {
		o.SetVec(i, SigmoidDerivative(v.AtVec(i)))
	}
	return o
}
