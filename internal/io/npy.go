package io

import (
	"errors"
	"fmt"
	goio "io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"

	"github.com/KyungWonPark/Nystrom/internal/precision"
)

// ErrShape is returned for npy arrays that are not one or two dimensional
var ErrShape = errors.New("io: unsupported array shape")

const zstSuffix = ".zst"

// MatToNpy writes matrix to a numpy npy file, as f8 for float64 precision
// and f4 otherwise. A ".zst" suffix on path adds zstd compression.
func MatToNpy(path string, matrix *mat.Dense, prec precision.Precision) error {
	rows, cols := matrix.Dims()
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		data = append(data, matrix.RawRowView(i)...)
	}

	return writeNpy(path, []int{rows, cols}, data, prec)
}

// VecToNpy writes a one dimensional npy file
func VecToNpy(path string, vec []float64, prec precision.Precision) error {
	return writeNpy(path, []int{len(vec)}, vec, prec)
}

func writeNpy(path string, shape []int, data []float64, prec precision.Precision) error {
	w, err := createNpy(path)
	if err != nil {
		return err
	}
	// gonpy closes the writer after writing; closing again is a no-op.
	defer w.Close()

	npy, err := gonpy.NewWriter(w)
	if err != nil {
		return fmt.Errorf("[MatToNpy] failed to open %s: %w", path, err)
	}
	npy.Shape = shape
	npy.Version = 2

	if prec == precision.Float64 {
		err = npy.WriteFloat64(data)
	} else {
		f32 := make([]float32, len(data))
		for i, v := range data {
			f32[i] = float32(prec.Cast(v))
		}
		err = npy.WriteFloat32(f32)
	}
	if err != nil {
		return fmt.Errorf("[MatToNpy] failed to write %s: %w", path, err)
	}

	return w.Close()
}

// NpyToMat reads a numpy npy file (f8 or f4) as a matrix. One dimensional
// arrays become column vectors. A ".zst" suffix on path is decompressed.
func NpyToMat(path string) (*mat.Dense, error) {
	r, err := openNpy(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	npy, err := gonpy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("[NpyToMat] failed to open %s: %w", path, err)
	}

	var rows, cols int
	switch len(npy.Shape) {
	case 1:
		rows, cols = npy.Shape[0], 1
	case 2:
		rows, cols = npy.Shape[0], npy.Shape[1]
	default:
		return nil, fmt.Errorf("[NpyToMat] %s has shape %v: %w", path, npy.Shape, ErrShape)
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("[NpyToMat] %s has shape %v: %w", path, npy.Shape, ErrShape)
	}

	var data []float64
	if strings.HasSuffix(npy.Dtype, "f4") {
		f32, err := npy.GetFloat32()
		if err != nil {
			return nil, fmt.Errorf("[NpyToMat] failed to read %s: %w", path, err)
		}
		data = make([]float64, len(f32))
		for i, v := range f32 {
			data[i] = float64(v)
		}
	} else {
		data, err = npy.GetFloat64()
		if err != nil {
			return nil, fmt.Errorf("[NpyToMat] failed to read %s: %w", path, err)
		}
	}

	if npy.ColumnMajor && len(npy.Shape) == 2 {
		m := mat.NewDense(cols, rows, data)
		return mat.DenseCopyOf(m.T()), nil
	}

	return mat.NewDense(rows, cols, data), nil
}

type onceCloser struct {
	goio.Writer
	closers []goio.Closer
	closed  bool
}

func (c *onceCloser) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for _, cl := range c.closers {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}

func createNpy(path string) (*onceCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("[MatToNpy] failed to create file: %w", err)
	}

	if !strings.HasSuffix(strings.ToLower(path), zstSuffix) {
		return &onceCloser{Writer: f, closers: []goio.Closer{f}}, nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("[MatToNpy] failed to create zstd encoder: %w", err)
	}

	return &onceCloser{Writer: enc, closers: []goio.Closer{enc, f}}, nil
}

type readCloser struct {
	goio.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

func openNpy(path string) (goio.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[NpyToMat] failed to open file: %w", err)
	}

	if !strings.HasSuffix(strings.ToLower(path), zstSuffix) {
		return f, nil
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("[NpyToMat] failed to create zstd decoder: %w", err)
	}

	return readCloser{
		Reader: dec,
		close: func() error {
			dec.Close()
			return f.Close()
		},
	}, nil
}
