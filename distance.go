package colorhist

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DistanceMetric measures how far apart two points in key space are.
// ReducedDistance must order pairs the same way Distance does; nearest-center
// assignment only compares reduced distances.
type DistanceMetric interface {
	Distance(a, b []float64) float64
	ReducedDistance(a, b []float64) float64
}

// DistanceFunc adapts a plain function into a DistanceMetric.
// ReducedDistance delegates to the same function.
type DistanceFunc func(a, b []float64) float64

func (f DistanceFunc) Distance(a, b []float64) float64        { return f(a, b) }
func (f DistanceFunc) ReducedDistance(a, b []float64) float64 { return f(a, b) }

// EuclideanMetric is the L2 distance. ReducedDistance is the squared L2
// distance.
type EuclideanMetric struct{}

func (EuclideanMetric) Distance(a, b []float64) float64 { return floats.Distance(a, b, 2) }

func (EuclideanMetric) ReducedDistance(a, b []float64) float64 { return squaredEuclidean(a, b) }

// ManhattanMetric is the L1 distance.
type ManhattanMetric struct{}

func (ManhattanMetric) Distance(a, b []float64) float64 { return floats.Distance(a, b, 1) }

func (m ManhattanMetric) ReducedDistance(a, b []float64) float64 { return m.Distance(a, b) }

// ChebyshevMetric is the L-infinity distance.
type ChebyshevMetric struct{}

func (ChebyshevMetric) Distance(a, b []float64) float64 { return floats.Distance(a, b, math.Inf(1)) }

func (m ChebyshevMetric) ReducedDistance(a, b []float64) float64 { return m.Distance(a, b) }

func squaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// SquaredDistance returns the squared Euclidean distance between two keys of
// equal arity.
func SquaredDistance[T Element](a, b Key[T]) float64 {
	var va, vb [MaxArity]float64
	return squaredEuclidean(a.Vector(va[:0]), b.Vector(vb[:0]))
}
