package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/KyungWonPark/Nystrom/internal/calc"
	"github.com/KyungWonPark/Nystrom/internal/envconfig"
	"github.com/KyungWonPark/Nystrom/internal/io"
	"github.com/KyungWonPark/Nystrom/internal/kernel"
	"github.com/KyungWonPark/Nystrom/internal/nystrom"
	"github.com/KyungWonPark/Nystrom/internal/precision"
	"github.com/KyungWonPark/Nystrom/internal/shmem"
)

// NewCLI returns the root command
func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nystrom",
		Short:         "Top eigensystem of kernel matrices via the Nyström method",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := envconfig.LogLevel()
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			slog.Debug("config", "env", envconfig.AsMap())
		},
	}
	rootCmd.PersistentFlags().Bool("debug", envconfig.Debug(), "Enable debug logging")

	eigenCmd := &cobra.Command{
		Use:   "eigen SAMPLES",
		Short: "Compute the top-q eigensystem of the kernel matrix over SAMPLES (.npy, .npy.zst, .csv or .nii)",
		Args:  cobra.ExactArgs(1),
		RunE:  EigenHandler,
	}

	eigenCmd.Flags().String("kernel", envconfig.Kernel(), "Kernel function ("+strings.Join(kernel.Names, ", ")+")")
	eigenCmd.Flags().Float64("bandwidth", envconfig.Bandwidth(), "Kernel bandwidth")
	eigenCmd.Flags().Int("top-q", 0, "Number of top eigenpairs to keep")
	eigenCmd.Flags().String("precision", envconfig.Precision().String(), "Output precision (float64, float32, float16)")
	eigenCmd.Flags().Int("workers", envconfig.Workers(), "Kernel evaluation workers")
	eigenCmd.Flags().Bool("standardize", false, "Z-score every feature before evaluating the kernel")
	eigenCmd.Flags().Int("subsample", 0, "Use a random subset of this many samples (0 keeps all)")
	eigenCmd.Flags().Uint64("seed", 1, "Seed for --subsample")
	eigenCmd.Flags().String("voxels", "", "Voxel list (x,y,z per line) for NIfTI input")
	eigenCmd.Flags().Int("time-start", 0, "First time point for NIfTI input")
	eigenCmd.Flags().Int("time-end", 0, "End time point (exclusive) for NIfTI input")
	eigenCmd.Flags().Bool("stage-shm", false, "Stage samples in a System V shared memory segment before computing")
	eigenCmd.Flags().Bool("check-symmetry", false, "Evaluate the full kernel matrix once more and warn when it is not symmetric within --tol")
	eigenCmd.Flags().Bool("verify", false, "Check every returned eigenpair against the kernel matrix within --tol")
	eigenCmd.Flags().Float64("tol", 1e-6, "Tolerance for --check-symmetry and --verify")
	eigenCmd.Flags().String("out-dir", "", "Directory for eigvals and eigvecs (nothing is written when empty)")
	eigenCmd.Flags().String("format", "npy", "Output format ("+strings.Join(io.Formats, ", ")+")")
	_ = eigenCmd.MarkFlagRequired("top-q")

	rootCmd.AddCommand(eigenCmd)

	return rootCmd
}

// EigenHandler computes and reports the eigensystem of one sample file
func EigenHandler(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	kernelName, _ := flags.GetString("kernel")
	bandwidth, _ := flags.GetFloat64("bandwidth")
	topQ, _ := flags.GetInt("top-q")
	workers, _ := flags.GetInt("workers")
	standardize, _ := flags.GetBool("standardize")
	subsample, _ := flags.GetInt("subsample")
	seed, _ := flags.GetUint64("seed")
	stageShm, _ := flags.GetBool("stage-shm")
	checkSym, _ := flags.GetBool("check-symmetry")
	verify, _ := flags.GetBool("verify")
	tol, _ := flags.GetFloat64("tol")
	outDir, _ := flags.GetString("out-dir")
	format, _ := flags.GetString("format")
	debug, _ := flags.GetBool("debug")

	precStr, _ := flags.GetString("precision")
	prec, err := precision.Parse(precStr)
	if err != nil {
		return err
	}
	if outDir != "" && !slices.Contains(io.Formats, format) {
		return fmt.Errorf("%w: %q", io.ErrFormat, format)
	}

	pl := calc.Init(workers, debug)

	samples, err := loadSamples(cmd, args[0])
	if err != nil {
		return err
	}
	rows, cols := samples.Dims()
	slog.Info("loaded samples", "path", args[0], "samples", rows, "features", cols)

	if subsample > 0 && subsample < rows {
		samples = subsampleRows(samples, subsample, seed)
		slog.Info("subsampled", "samples", subsample, "seed", seed)
	}

	if standardize {
		if err := pl.ZScoring(samples, samples); err != nil {
			return err
		}
	}

	kernelFn, err := kernel.ByName(kernelName, bandwidth, pl)
	if err != nil {
		return err
	}

	if checkSym {
		symmetric, err := checkSymmetry(pl, kernelFn, samples, tol)
		if err != nil {
			return err
		}
		if !symmetric {
			slog.Warn("kernel matrix is not symmetric; only its upper triangle is used", "kernel", kernelName, "tol", tol)
		}
	}

	var input mat.Matrix = samples
	if stageShm {
		seg, err := shmem.FromMatrix(samples)
		if err != nil {
			return err
		}
		defer seg.Close()

		slog.Info("staged samples in shared memory", "id", seg.ID())
		input = seg
	}

	eigvals, eigvecs, beta, err := nystrom.KernelEigensystem(input, kernelFn, topQ, prec)
	if err != nil {
		return err
	}
	slog.Debug("eigensystem computed", "top-q", topQ, "precision", prec, "beta", beta)

	if verify {
		if err := nystrom.Verify(samples, kernelFn, eigvals, eigvecs, tol); err != nil {
			return err
		}
		slog.Info("eigenpairs verified", "tol", tol)
	}

	if outDir != "" {
		if err := writeEigensystem(outDir, format, eigvals, eigvecs, prec); err != nil {
			return err
		}
	}

	printEigensystem(cmd, eigvals, beta, prec)

	return nil
}

// checkSymmetry evaluates kernelFn against a copy of samples so that every
// entry is computed instead of mirrored from the upper triangle
func checkSymmetry(pl *calc.PipeLine, kernelFn kernel.Func, samples *mat.Dense, tol float64) (bool, error) {
	kmat, err := kernelFn(samples, mat.DenseCopyOf(samples))
	if err != nil {
		return false, err
	}
	return pl.SymCheck(kmat, tol), nil
}

func loadSamples(cmd *cobra.Command, path string) (*mat.Dense, error) {
	if io.Format(path) != "nii" {
		return io.ReadMatrix(path)
	}

	voxelPath, _ := cmd.Flags().GetString("voxels")
	timeStart, _ := cmd.Flags().GetInt("time-start")
	timeEnd, _ := cmd.Flags().GetInt("time-end")
	if voxelPath == "" {
		return nil, errors.New("nifti input requires --voxels")
	}

	voxels, err := io.ReadVoxels(voxelPath)
	if err != nil {
		return nil, err
	}

	return io.NiftiToMat(path, voxels, timeStart, timeEnd)
}

// subsampleRows returns k distinct rows of samples, kept in their original order
func subsampleRows(samples *mat.Dense, k int, seed uint64) *mat.Dense {
	rows, cols := samples.Dims()
	r := rand.New(rand.NewPCG(seed, seed))
	idx := r.Perm(rows)[:k]
	slices.Sort(idx)

	out := mat.NewDense(k, cols, nil)
	for i, row := range idx {
		out.SetRow(i, samples.RawRowView(row))
	}
	return out
}

func writeEigensystem(outDir, format string, eigvals []float64, eigvecs *mat.Dense, prec precision.Precision) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	valPath := filepath.Join(outDir, "eigvals."+format)
	vecPath := filepath.Join(outDir, "eigvecs."+format)

	slog.Info("writing eigenvalues", "path", valPath)
	if err := io.WriteVector(valPath, eigvals, prec); err != nil {
		return err
	}

	slog.Info("writing eigenvectors", "path", vecPath)
	return io.WriteMatrix(vecPath, eigvecs, prec)
}

func printEigensystem(cmd *cobra.Command, eigvals []float64, beta float64, prec precision.Precision) {
	var data [][]string
	for i, v := range eigvals {
		data = append(data, []string{strconv.Itoa(i), prec.Format(v)})
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"INDEX", "EIGENVALUE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "beta: %s\n", strconv.FormatFloat(beta, 'g', -1, 64))
}
