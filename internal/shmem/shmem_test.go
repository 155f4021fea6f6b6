package shmem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/KyungWonPark/Nystrom/internal/calc"
	"github.com/KyungWonPark/Nystrom/internal/kernel"
	"github.com/KyungWonPark/Nystrom/internal/nystrom"
	"github.com/KyungWonPark/Nystrom/internal/precision"
	"github.com/KyungWonPark/Nystrom/internal/shmem"
)

func newSegment(t *testing.T, src mat.Matrix) *shmem.Matrix {
	t.Helper()
	m, err := shmem.FromMatrix(src)
	if err != nil {
		t.Skipf("System V shared memory unavailable: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestRoundTrip(t *testing.T) {
	src := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	m := newSegment(t, src)

	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 6.0, m.At(1, 2))
	assert.Equal(t, 4.0, m.T().At(0, 1))

	m.Set(0, 0, -1)
	host, err := m.Host()
	require.NoError(t, err)
	assert.Equal(t, -1.0, host.At(0, 0))

	// the heap copy is independent of the segment
	m.Set(0, 0, 9)
	assert.Equal(t, -1.0, host.At(0, 0))
	assert.Equal(t, 1.0, src.At(0, 0))
}

func TestOutOfRangePanics(t *testing.T) {
	m := newSegment(t, mat.NewDense(2, 2, nil))

	assert.PanicsWithValue(t, mat.ErrRowAccess, func() { m.At(2, 0) })
	assert.PanicsWithValue(t, mat.ErrColAccess, func() { m.At(0, -1) })
}

func TestClose(t *testing.T) {
	m := newSegment(t, mat.NewDense(1, 1, []float64{3}))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.Host()
	assert.ErrorIs(t, err, shmem.ErrClosed)
}

func TestEigensystemFromSharedMemory(t *testing.T) {
	x := mat.NewDense(5, 2, []float64{
		0, 1,
		1, 0,
		2, 2,
		-1, 3,
		0.5, 0.5,
	})
	m := newSegment(t, x)

	fn, err := kernel.Gaussian(calc.Init(2, false), 2)
	require.NoError(t, err)

	want, _, _, err := nystrom.KernelEigensystem(x, fn, 3, precision.Float64)
	require.NoError(t, err)
	got, _, _, err := nystrom.KernelEigensystem(m, fn, 3, precision.Float64)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestInvalidShape(t *testing.T) {
	_, err := shmem.New(0, 3)
	assert.Error(t, err)
}
