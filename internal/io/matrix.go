// Package io reads sample matrices and writes eigensystems in npy, csv and
// raw binary formats.
package io

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/KyungWonPark/Nystrom/internal/precision"
)

// ErrFormat is returned for unrecognised file extensions
var ErrFormat = errors.New("io: unsupported file format")

// Formats lists the output formats understood by WriteMatrix
var Formats = []string{"npy", "npy.zst", "csv", "bin"}

// Format returns the format of path judged by its extension
func Format(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, f := range []string{"npy.zst", "npy", "csv", "bin", "nii"} {
		if strings.HasSuffix(name, "."+f) {
			return f
		}
	}
	return ""
}

// ReadMatrix reads a sample matrix from a npy, npy.zst or csv file
func ReadMatrix(path string) (*mat.Dense, error) {
	switch Format(path) {
	case "npy", "npy.zst":
		return NpyToMat(path)
	case "csv":
		return CSVToMat(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrFormat, path)
}

// WriteMatrix writes matrix in the format given by the extension of path
func WriteMatrix(path string, matrix *mat.Dense, prec precision.Precision) error {
	switch Format(path) {
	case "npy", "npy.zst":
		return MatToNpy(path, matrix, prec)
	case "csv":
		return MatToCSV(path, matrix, prec)
	case "bin":
		return MatToBin(path, matrix, prec)
	}
	return fmt.Errorf("%w: %s", ErrFormat, path)
}

// WriteVector writes vec as a one dimensional npy array or a single column
// for the other formats
func WriteVector(path string, vec []float64, prec precision.Precision) error {
	switch Format(path) {
	case "npy", "npy.zst":
		return VecToNpy(path, vec, prec)
	}
	if len(vec) == 0 {
		return fmt.Errorf("[WriteVector] %s: %w", path, ErrShape)
	}
	return WriteMatrix(path, mat.NewDense(len(vec), 1, append([]float64(nil), vec...)), prec)
}
