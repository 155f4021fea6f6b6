package nystrom_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/KyungWonPark/Nystrom/internal/calc"
	"github.com/KyungWonPark/Nystrom/internal/kernel"
	"github.com/KyungWonPark/Nystrom/internal/nystrom"
	"github.com/KyungWonPark/Nystrom/internal/precision"
)

// twoClusters holds 4 points in 2 dimensions forming two separated groups
func twoClusters() *mat.Dense {
	return mat.NewDense(4, 2, []float64{
		5.0, 0.1,
		5.2, -0.1,
		0.1, 3.0,
		-0.1, 3.1,
	})
}

func randomSamples(n, d int) *mat.Dense {
	// deterministic spread without a random source
	m := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			m.Set(i, j, math.Sin(float64(i*d+j+1)*1.7)*3)
		}
	}
	return m
}

func gaussian(t *testing.T, bw float64) kernel.Func {
	t.Helper()
	fn, err := kernel.Gaussian(calc.Init(2, false), bw)
	require.NoError(t, err)
	return fn
}

func scaledKernel(t *testing.T, x *mat.Dense, fn kernel.Func) *mat.Dense {
	t.Helper()
	kmat, err := fn(x, x)
	require.NoError(t, err)
	n, _ := x.Dims()
	var scaled mat.Dense
	scaled.Apply(func(_, _ int, v float64) float64 { return v / float64(n) }, kmat)
	return &scaled
}

func assertDescending(t *testing.T, vals []float64) {
	t.Helper()
	for i := 0; i+1 < len(vals); i++ {
		assert.GreaterOrEqual(t, vals[i], vals[i+1], "eigenvalues %d and %d", i, i+1)
	}
}

func assertEigenpairs(t *testing.T, scaled mat.Matrix, vals []float64, vecs *mat.Dense, tol float64) {
	t.Helper()
	n, _ := scaled.Dims()
	norm := math.Sqrt(float64(n))
	for i, lambda := range vals {
		v := mat.NewVecDense(n, nil)
		v.ScaleVec(norm, vecs.ColView(i))
		assert.InDelta(t, 1, mat.Norm(v, 2), tol, "eigenvector %d has unit norm after rescaling", i)

		var av mat.VecDense
		av.MulVec(scaled, v)
		for j := 0; j < n; j++ {
			assert.InDelta(t, lambda*v.AtVec(j), av.AtVec(j), tol, "pair %d row %d", i, j)
		}
	}
}

func TestTwoClustersLinear(t *testing.T) {
	t.Parallel()

	x := twoClusters()
	fn := kernel.Linear(calc.Init(2, false))

	vals, vecs, beta, err := nystrom.KernelEigensystem(x, fn, 2, precision.Float64)
	require.NoError(t, err)
	require.Len(t, vals, 2)

	r, c := vecs.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)

	assertDescending(t, vals)
	for _, v := range vals {
		assert.GreaterOrEqual(t, v, 0.0)
	}

	scaled := scaledKernel(t, x, fn)
	assertEigenpairs(t, scaled, vals, vecs, 1e-10)

	// A linear kernel over 2-D points has rank 2, so the top-2 pairs
	// reconstruct the scaled kernel matrix.
	n := 4.0
	recon := mat.NewDense(4, 4, nil)
	for i, lambda := range vals {
		var outer mat.Dense
		col := vecs.ColView(i)
		outer.Outer(lambda*n, col, col)
		recon.Add(recon, &outer)
	}
	assert.True(t, mat.EqualApprox(recon, scaled, 1e-10))

	// beta is the largest squared norm: 5.2^2 + 0.1^2
	assert.InDelta(t, 27.05, beta, 1e-12)
}

func TestBetaIsMaxDiagonal(t *testing.T) {
	t.Parallel()

	x := randomSamples(12, 3)
	fn := kernel.Linear(calc.Init(2, false))

	_, _, beta, err := nystrom.KernelEigensystem(x, fn, 3, precision.Float32)
	require.NoError(t, err)

	kmat, err := fn(x, x)
	require.NoError(t, err)
	want := math.Inf(-1)
	for i := 0; i < 12; i++ {
		want = math.Max(want, kmat.At(i, i))
	}
	assert.Equal(t, want, beta)
}

func TestGaussianTopQ(t *testing.T) {
	t.Parallel()

	x := randomSamples(20, 4)
	fn := gaussian(t, 2)

	vals, vecs, beta, err := nystrom.KernelEigensystem(x, fn, 5, precision.Float64)
	require.NoError(t, err)
	require.Len(t, vals, 5)

	assertDescending(t, vals)
	assertEigenpairs(t, scaledKernel(t, x, fn), vals, vecs, 1e-10)
	assert.Equal(t, 1.0, beta)

	// The top-5 values are the largest 5 of the full spectrum
	var es mat.EigenSym
	require.True(t, es.Factorize(mat.NewSymDense(20, mat.DenseCopyOf(scaledKernel(t, x, fn)).RawMatrix().Data), false))
	all := es.Values(nil)
	for k := 0; k < 5; k++ {
		assert.InDelta(t, all[19-k], vals[k], 1e-12)
	}
}

func TestFullSpectrum(t *testing.T) {
	t.Parallel()

	x := randomSamples(8, 2)
	fn := gaussian(t, 1.5)

	vals, vecs, _, err := nystrom.KernelEigensystem(x, fn, 8, precision.Float64)
	require.NoError(t, err)
	require.Len(t, vals, 8)
	assertDescending(t, vals)

	scaled := scaledKernel(t, x, fn)
	assertEigenpairs(t, scaled, vals, vecs, 1e-10)

	var sum float64
	for _, v := range vals {
		sum += v
	}
	assert.InDelta(t, mat.Trace(scaled), sum, 1e-12)
}

func TestDeterministic(t *testing.T) {
	t.Parallel()

	x := randomSamples(10, 3)
	fn := gaussian(t, 3)

	vals1, vecs1, beta1, err := nystrom.KernelEigensystem(x, fn, 4, precision.Float64)
	require.NoError(t, err)
	vals2, vecs2, beta2, err := nystrom.KernelEigensystem(x, fn, 4, precision.Float64)
	require.NoError(t, err)

	assert.Equal(t, vals1, vals2)
	assert.True(t, mat.Equal(vecs1, vecs2))
	assert.Equal(t, beta1, beta2)
}

func TestSamplesUnchanged(t *testing.T) {
	t.Parallel()

	x := randomSamples(6, 2)
	orig := mat.DenseCopyOf(x)

	_, _, _, err := nystrom.KernelEigensystem(x, gaussian(t, 1), 2, precision.Float64)
	require.NoError(t, err)
	assert.True(t, mat.Equal(orig, x))
}

func TestPrecision(t *testing.T) {
	t.Parallel()

	x := randomSamples(9, 2)
	fn := gaussian(t, 2)

	vals64, vecs64, beta64, err := nystrom.KernelEigensystem(x, fn, 3, precision.Float64)
	require.NoError(t, err)
	vals32, vecs32, beta32, err := nystrom.KernelEigensystem(x, fn, 3, precision.Float32)
	require.NoError(t, err)

	assert.Equal(t, precision.Float32.CastSlice(vals64), vals32)
	assert.True(t, mat.Equal(precision.Float32.CastDense(vecs64), vecs32))
	assert.Equal(t, beta64, beta32)
}

func TestInvalidArgument(t *testing.T) {
	t.Parallel()

	x := twoClusters()
	fn := kernel.Linear(calc.Init(1, false))

	for _, q := range []int{0, -1, 5} {
		_, _, _, err := nystrom.KernelEigensystem(x, fn, q, precision.Float64)
		assert.ErrorIs(t, err, nystrom.ErrInvalidArgument, "top-q %d", q)
	}

	_, _, _, err := nystrom.KernelEigensystem(&mat.Dense{}, fn, 1, precision.Float64)
	assert.ErrorIs(t, err, nystrom.ErrInvalidArgument)

	_, _, _, err = nystrom.KernelEigensystem(nil, fn, 1, precision.Float64)
	assert.ErrorIs(t, err, nystrom.ErrInvalidArgument)

	var nilDense *mat.Dense
	_, _, _, err = nystrom.KernelEigensystem(nilDense, fn, 1, precision.Float64)
	assert.ErrorIs(t, err, nystrom.ErrInvalidArgument)

	noMatrix := func(x, y *mat.Dense) (*mat.Dense, error) {
		return nil, nil
	}
	_, _, _, err = nystrom.KernelEigensystem(x, noMatrix, 1, precision.Float64)
	assert.ErrorIs(t, err, nystrom.ErrInvalidArgument)

	wrongShape := func(x, y *mat.Dense) (*mat.Dense, error) {
		return mat.NewDense(2, 2, nil), nil
	}
	_, _, _, err = nystrom.KernelEigensystem(x, wrongShape, 1, precision.Float64)
	assert.ErrorIs(t, err, nystrom.ErrInvalidArgument)
}

func TestKernelErrorPropagates(t *testing.T) {
	t.Parallel()

	errKernel := errors.New("kernel exploded")
	fn := func(x, y *mat.Dense) (*mat.Dense, error) {
		return nil, errKernel
	}

	_, _, _, err := nystrom.KernelEigensystem(twoClusters(), fn, 1, precision.Float64)
	assert.Equal(t, errKernel, err)
}

func TestNonFiniteKernel(t *testing.T) {
	t.Parallel()

	fn := func(x, y *mat.Dense) (*mat.Dense, error) {
		n, _ := x.Dims()
		k := mat.NewDense(n, n, nil)
		k.Set(1, 2, math.NaN())
		return k, nil
	}

	_, _, _, err := nystrom.KernelEigensystem(twoClusters(), fn, 1, precision.Float64)
	assert.ErrorIs(t, err, nystrom.ErrNumericalFailure)
}

func TestOnlyUpperTriangleIsRead(t *testing.T) {
	t.Parallel()

	x := randomSamples(6, 2)
	sym := gaussian(t, 2)
	skewed := func(a, b *mat.Dense) (*mat.Dense, error) {
		k, err := sym(a, b)
		if err != nil {
			return nil, err
		}
		n, _ := k.Dims()
		for i := 1; i < n; i++ {
			for j := 0; j < i; j++ {
				k.Set(i, j, 42)
			}
		}
		return k, nil
	}

	vals1, vecs1, _, err := nystrom.KernelEigensystem(x, sym, 3, precision.Float64)
	require.NoError(t, err)
	vals2, vecs2, _, err := nystrom.KernelEigensystem(x, skewed, 3, precision.Float64)
	require.NoError(t, err)

	assert.Equal(t, vals1, vals2)
	assert.True(t, mat.Equal(vecs1, vecs2))
}

type offHeap struct {
	m     *mat.Dense
	hosts int
}

func (o *offHeap) Dims() (int, int)    { return o.m.Dims() }
func (o *offHeap) At(i, j int) float64 { return o.m.At(i, j) }
func (o *offHeap) T() mat.Matrix       { return mat.Transpose{Matrix: o} }

func (o *offHeap) Host() (*mat.Dense, error) {
	o.hosts++
	return mat.DenseCopyOf(o.m), nil
}

func TestSamplesAreMovedToHost(t *testing.T) {
	t.Parallel()

	x := randomSamples(7, 3)
	fn := gaussian(t, 2)
	src := &offHeap{m: x}

	want, _, _, err := nystrom.KernelEigensystem(x, fn, 2, precision.Float64)
	require.NoError(t, err)
	got, _, _, err := nystrom.KernelEigensystem(src, fn, 2, precision.Float64)
	require.NoError(t, err)

	assert.Equal(t, 1, src.hosts)
	assert.Equal(t, want, got)

	// any other mat.Matrix is densified
	got, _, _, err = nystrom.KernelEigensystem(mat.DenseCopyOf(x.T()).T(), fn, 2, precision.Float64)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	x := randomSamples(10, 2)
	fn := gaussian(t, 2)

	vals, vecs, _, err := nystrom.KernelEigensystem(x, fn, 3, precision.Float64)
	require.NoError(t, err)
	require.NoError(t, nystrom.Verify(x, fn, vals, vecs, 1e-9))

	bad := append([]float64(nil), vals...)
	bad[0] *= 1.5
	assert.ErrorIs(t, nystrom.Verify(x, fn, bad, vecs, 1e-9), nystrom.ErrNumericalFailure)

	assert.ErrorIs(t, nystrom.Verify(x, fn, vals[:2], vecs, 1e-9), nystrom.ErrInvalidArgument)
}
