package envconfig

import (
	"log/slog"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KyungWonPark/Nystrom/internal/precision"
)

func TestWorkers(t *testing.T) {
	cases := map[string]int{
		"":    runtime.NumCPU(),
		"3":   3,
		"'8'": 8,
		"0":   runtime.NumCPU(),
		"abc": runtime.NumCPU(),
	}
	for v, want := range cases {
		t.Run(v, func(t *testing.T) {
			t.Setenv("NYSTROM_WORKERS", v)
			assert.Equal(t, want, Workers())
		})
	}
}

func TestPrecision(t *testing.T) {
	t.Setenv("NYSTROM_PRECISION", "")
	assert.Equal(t, precision.Float64, Precision())

	t.Setenv("NYSTROM_PRECISION", "float32")
	assert.Equal(t, precision.Float32, Precision())

	t.Setenv("NYSTROM_PRECISION", "quad")
	assert.Equal(t, precision.Float64, Precision())
}

func TestBandwidth(t *testing.T) {
	t.Setenv("NYSTROM_BANDWIDTH", "")
	assert.Equal(t, 5.0, Bandwidth())

	t.Setenv("NYSTROM_BANDWIDTH", "2.5")
	assert.Equal(t, 2.5, Bandwidth())

	t.Setenv("NYSTROM_BANDWIDTH", "-1")
	assert.Equal(t, 5.0, Bandwidth())
}

func TestKernelAndDebug(t *testing.T) {
	t.Setenv("NYSTROM_KERNEL", "")
	assert.Equal(t, "gaussian", Kernel())
	t.Setenv("NYSTROM_KERNEL", " Laplacian ")
	assert.Equal(t, "laplacian", Kernel())

	t.Setenv("NYSTROM_DEBUG", "")
	assert.False(t, Debug())
	assert.Equal(t, slog.LevelInfo, LogLevel())

	t.Setenv("NYSTROM_DEBUG", "1")
	assert.True(t, Debug())
	assert.Equal(t, slog.LevelDebug, LogLevel())

	t.Setenv("NYSTROM_DEBUG", "false")
	assert.False(t, Debug())

	assert.Contains(t, AsMap(), "NYSTROM_WORKERS")
}
