package numutil

import "math"

// maxCholeskyJitter bounds the diagonal regularization ladder.
const maxCholeskyJitter = 1e-2

// Cholesky factors a symmetric positive-definite matrix into its lower
// triangular root L with m = L*Lᵀ. If the matrix is not positive-definite,
// increasing diagonal jitter is added (1e-10 up to 1e-2); if it is not even
// symmetric, or the jitter ladder is exhausted, the identity is returned so
// that downstream sampling degrades to uncorrelated draws instead of failing.
func Cholesky(m [][]float64) [][]float64 {
	n := len(m)
	if n == 0 || !isSquareSymmetric(m) {
		return Identity(n)
	}

	if l, ok := choleskyAttempt(m, 0); ok {
		return l
	}
	for jitter := 1e-10; jitter <= maxCholeskyJitter; jitter *= 10 {
		if l, ok := choleskyAttempt(m, jitter); ok {
			return l
		}
	}
	return Identity(n)
}

// Identity returns the n x n identity matrix.
func Identity(n int) [][]float64 {
	id := make([][]float64, n)
	for i := range id {
		id[i] = make([]float64, n)
		id[i][i] = 1
	}
	return id
}

// Correlate applies the lower-triangular factor L to a vector of independent
// standard normals, producing correlated normals y = L*z.
func Correlate(l [][]float64, z []float64) []float64 {
	n := len(l)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j <= i && j < len(z); j++ {
			sum += l[i][j] * z[j]
		}
		out[i] = sum
	}
	return out
}

func choleskyAttempt(m [][]float64, jitter float64) ([][]float64, bool) {
	n := len(m)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := m[i][j]
			if i == j {
				sum += jitter
			}
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 || !IsFinite(sum) {
					return nil, false
				}
				l[i][j] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, true
}

func isSquareSymmetric(m [][]float64) bool {
	n := len(m)
	for i := 0; i < n; i++ {
		if len(m[i]) != n {
			return false
		}
	}
	const tol = 1e-9
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(m[i][j]-m[j][i]) > tol {
				return false
			}
		}
	}
	return true
}
