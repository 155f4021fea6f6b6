// Package shmem keeps a row-major float64 matrix in a System V shared
// memory segment, outside the Go heap, so other processes can attach to it.
package shmem

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/ghetzel/shmtool/shm"
	"gonum.org/v1/gonum/mat"
)

// ErrClosed is returned when a detached segment is used
var ErrClosed = errors.New("shmem: segment is closed")

var float64Size = int(unsafe.Sizeof(float64(0)))

// Matrix is a dense matrix backed by a shared memory segment
type Matrix struct {
	seg  *shm.Segment
	ptr  unsafe.Pointer
	data []float64
	rows int
	cols int
}

// New creates and attaches a zeroed rows by cols segment
func New(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("shmem: invalid shape %d by %d", rows, cols)
	}

	seg, err := shm.Create(rows * cols * float64Size)
	if err != nil {
		return nil, fmt.Errorf("shmem: failed to create shared memory region: %w", err)
	}

	ptr, err := seg.Attach()
	if err != nil {
		seg.Destroy()
		return nil, fmt.Errorf("shmem: failed to attach shared memory region: %w", err)
	}

	m := &Matrix{
		seg:  seg,
		ptr:  ptr,
		data: unsafe.Slice((*float64)(ptr), rows*cols),
		rows: rows,
		cols: cols,
	}
	clear(m.data)

	return m, nil
}

// FromMatrix copies src into a new segment
func FromMatrix(src mat.Matrix) (*Matrix, error) {
	rows, cols := src.Dims()
	m, err := New(rows, cols)
	if err != nil {
		return nil, err
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.data[i*cols+j] = src.At(i, j)
		}
	}

	return m, nil
}

// ID returns the System V identifier of the segment
func (m *Matrix) ID() int {
	return m.seg.Id
}

// Dims implements mat.Matrix
func (m *Matrix) Dims() (r, c int) {
	return m.rows, m.cols
}

// At implements mat.Matrix
func (m *Matrix) At(i, j int) float64 {
	return m.data[m.index(i, j)]
}

// T implements mat.Matrix
func (m *Matrix) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// Set stores v at (i, j)
func (m *Matrix) Set(i, j int, v float64) {
	m.data[m.index(i, j)] = v
}

func (m *Matrix) index(i, j int) int {
	if m.data == nil {
		panic(ErrClosed)
	}
	if uint(i) >= uint(m.rows) {
		panic(mat.ErrRowAccess)
	}
	if uint(j) >= uint(m.cols) {
		panic(mat.ErrColAccess)
	}
	return i*m.cols + j
}

// Host copies the segment into a freshly allocated heap matrix
func (m *Matrix) Host() (*mat.Dense, error) {
	if m.data == nil {
		return nil, ErrClosed
	}

	data := make([]float64, len(m.data))
	copy(data, m.data)

	return mat.NewDense(m.rows, m.cols, data), nil
}

// Close detaches and destroys the segment
func (m *Matrix) Close() error {
	if m.data == nil {
		return nil
	}
	m.data = nil

	errDetach := m.seg.Detach(m.ptr)
	errDestroy := m.seg.Destroy()

	return errors.Join(errDetach, errDestroy)
}
