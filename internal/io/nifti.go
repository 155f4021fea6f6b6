package io

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/KyungWonPark/nifti"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Voxel is a voxel coordinate inside a NIfTI volume
type Voxel struct {
	X uint32
	Y uint32
	Z uint32
}

// ReadVoxels reads a voxel list, one "x,y,z" coordinate per line. Blank
// lines and lines starting with '#' are skipped.
func ReadVoxels(path string) ([]Voxel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[ReadVoxels] failed to open file: %w", err)
	}
	defer f.Close()

	var voxels []Voxel
	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		xyz := strings.Split(line, ",")
		if len(xyz) != 3 {
			return nil, fmt.Errorf("[ReadVoxels] %s line %d: want x,y,z but got %q", path, lineNo, line)
		}

		var coord [3]uint32
		for i, s := range xyz {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("[ReadVoxels] %s line %d: %w", path, lineNo, err)
			}
			coord[i] = uint32(v)
		}

		voxels = append(voxels, Voxel{coord[0], coord[1], coord[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("[ReadVoxels] failed to read %s: %w", path, err)
	}

	return voxels, nil
}

// NiftiToMat loads a 4D NIfTI image and returns one sample per voxel whose
// features are the voxel's values at time points [timeStart, timeEnd).
func NiftiToMat(niiPath string, voxels []Voxel, timeStart, timeEnd int) (*mat.Dense, error) {
	if len(voxels) == 0 || timeStart < 0 || timeEnd <= timeStart {
		return nil, fmt.Errorf("[NiftiToMat] %d voxels over time [%d, %d): %w", len(voxels), timeStart, timeEnd, ErrShape)
	}
	if _, err := os.Stat(niiPath); err != nil {
		return nil, fmt.Errorf("[NiftiToMat] %w", err)
	}

	var img nifti.Nifti1Image
	img.LoadImage(niiPath, true)

	timePoints := timeEnd - timeStart
	samples := mat.NewDense(len(voxels), timePoints, nil)

	var g errgroup.Group
	for i, v := range voxels {
		g.Go(func() error {
			for t := timeStart; t < timeEnd; t++ {
				samples.Set(i, t-timeStart, float64(img.GetAt(v.X, v.Y, v.Z, uint32(t))))
			}
			return nil
		})
	}
	_ = g.Wait()

	return samples, nil
}
