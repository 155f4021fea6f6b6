package io

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/KyungWonPark/Nystrom/internal/precision"
)

// MatToCSV saves matrix as a csv file, one row per line
func MatToCSV(path string, matrix *mat.Dense, prec precision.Precision) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[MatToCSV] failed to create file: %w", err)
	}
	defer f.Close()

	rows, cols := matrix.Dims()
	w := bufio.NewWriter(f)

	stride := runtime.NumCPU()
	parsed := make([]string, stride)

	for row := 0; row < rows; row += stride {
		jobMark := min(stride, rows-row)

		var g errgroup.Group
		for offset := 0; offset < jobMark; offset++ {
			g.Go(func() error {
				fields := make([]string, cols)
				for i := 0; i < cols; i++ {
					fields[i] = prec.Format(matrix.At(row+offset, i))
				}
				parsed[offset] = strings.Join(fields, ", ")
				return nil
			})
		}
		_ = g.Wait()

		for i := 0; i < jobMark; i++ {
			if _, err := fmt.Fprintf(w, "%s\n", parsed[i]); err != nil {
				return fmt.Errorf("[MatToCSV] failed to write %s: %w", path, err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("[MatToCSV] failed to write %s: %w", path, err)
	}
	return f.Close()
}

// CSVToMat reads a csv file of numbers as a matrix. Every record must have
// the same number of fields.
func CSVToMat(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[CSVToMat] failed to open file: %w", err)
	}
	defer f.Close()

	csvReader := csv.NewReader(f)
	csvReader.Comment = '#'
	csvReader.TrimLeadingSpace = true
	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("[CSVToMat] failed to parse %s: %w", path, err)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("[CSVToMat] %s holds no values: %w", path, ErrShape)
	}

	rows, cols := len(records), len(records[0])
	matrix := mat.NewDense(rows, cols, nil)

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for index := 0; index < rows; index++ {
		g.Go(func() error {
			for i := 0; i < cols; i++ {
				value, err := strconv.ParseFloat(strings.TrimSpace(records[index][i]), 64)
				if err != nil {
					return fmt.Errorf("[CSVToMat] line %d field %d: %w", index+1, i+1, err)
				}
				matrix.Set(index, i, value)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return matrix, nil
}
