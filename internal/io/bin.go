package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/KyungWonPark/Nystrom/internal/precision"
)

// MatToBin writes matrix to a file as raw little endian values in row
// major order, float64 or float32 depending on prec
func MatToBin(path string, matrix *mat.Dense, prec precision.Precision) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[MatToBin] failed to create file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	rows, _ := matrix.Dims()
	for i := 0; i < rows; i++ {
		row := matrix.RawRowView(i)
		if prec == precision.Float64 {
			err = binary.Write(w, binary.LittleEndian, row)
		} else {
			f32 := make([]float32, len(row))
			for j, v := range row {
				f32[j] = float32(prec.Cast(v))
			}
			err = binary.Write(w, binary.LittleEndian, f32)
		}
		if err != nil {
			return fmt.Errorf("[MatToBin] failed to write %s: %w", path, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("[MatToBin] failed to write %s: %w", path, err)
	}
	return file.Close()
}
