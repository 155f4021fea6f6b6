// Package envconfig reads NYSTROM_* environment settings. Invalid values
// fall back to their defaults with a warning.
package envconfig

import (
	"log/slog"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/KyungWonPark/Nystrom/internal/precision"
)

// Var returns an environment variable stripped of whitespace and quotes
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// Workers returns the number of pipeline workers.
// Configurable via NYSTROM_WORKERS. Default: number of CPUs.
func Workers() int {
	if s := Var("NYSTROM_WORKERS"); s != "" {
		n, err := strconv.Atoi(s)
		if err == nil && n > 0 {
			return n
		}
		slog.Warn("invalid environment variable, using default", "key", "NYSTROM_WORKERS", "value", s, "default", runtime.NumCPU())
	}
	return runtime.NumCPU()
}

// Precision returns the output precision.
// Configurable via NYSTROM_PRECISION. Default: float64.
func Precision() precision.Precision {
	if s := Var("NYSTROM_PRECISION"); s != "" {
		p, err := precision.Parse(s)
		if err == nil {
			return p
		}
		slog.Warn("invalid environment variable, using default", "key", "NYSTROM_PRECISION", "value", s, "default", precision.Float64)
	}
	return precision.Float64
}

// Bandwidth returns the default kernel bandwidth.
// Configurable via NYSTROM_BANDWIDTH. Default: 5.
func Bandwidth() float64 {
	const defaultBandwidth = 5.0
	if s := Var("NYSTROM_BANDWIDTH"); s != "" {
		bw, err := strconv.ParseFloat(s, 64)
		if err == nil && bw > 0 && !math.IsInf(bw, 1) {
			return bw
		}
		slog.Warn("invalid environment variable, using default", "key", "NYSTROM_BANDWIDTH", "value", s, "default", defaultBandwidth)
	}
	return defaultBandwidth
}

// Kernel returns the default kernel name.
// Configurable via NYSTROM_KERNEL. Default: gaussian.
func Kernel() string {
	if s := Var("NYSTROM_KERNEL"); s != "" {
		return strings.ToLower(s)
	}
	return "gaussian"
}

// Debug reports whether debug logging is enabled.
// Configurable via NYSTROM_DEBUG.
func Debug() bool {
	if s := Var("NYSTROM_DEBUG"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return true
		}
		return b
	}
	return false
}

// LogLevel returns the slog level matching Debug
func LogLevel() slog.Level {
	if Debug() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// AsMap returns the effective settings for logging
func AsMap() map[string]any {
	return map[string]any{
		"NYSTROM_WORKERS":   Workers(),
		"NYSTROM_PRECISION": Precision().String(),
		"NYSTROM_BANDWIDTH": Bandwidth(),
		"NYSTROM_KERNEL":    Kernel(),
		"NYSTROM_DEBUG":     Debug(),
	}
}
