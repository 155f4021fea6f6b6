package calc

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrDimMismatch is returned when input and output shapes disagree
	ErrDimMismatch = errors.New("calc: dimension mismatch")
	// ErrEmpty is returned for matrices without rows or columns
	ErrEmpty = errors.New("calc: empty matrix")
)

type statistic struct {
	avg float64
	std float64
}

// PipeLine represents a compute pipeline
type PipeLine struct {
	numWorker int
	pushCnt   atomic.Int64
	popCnt    atomic.Int64
	debug     bool
}

// Init returns a compute PipeLine running numWorker workers per pass.
// numWorker below 1 means one worker per CPU.
func Init(numWorker int, debug bool) *PipeLine {
	if numWorker < 1 {
		numWorker = runtime.NumCPU()
	}

	return &PipeLine{
		numWorker: numWorker,
		debug:     debug,
	}
}

// Workers returns the number of workers used per pass
func (p *PipeLine) Workers() int {
	return p.numWorker
}

// dispatch pushes row indices [0, n) into the job queue and runs job on
// each of them from numWorker workers. The first failing job stops the feed.
func (p *PipeLine) dispatch(name string, n int, job func(index int) error) error {
	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	order := make(chan int, p.numWorker)

	for i := 0; i < p.numWorker; i++ {
		g.Go(func() error {
			for index := range order {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := job(index); err != nil {
					return err
				}
				p.popCnt.Add(1)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(order)
		for i := 0; i < n; i++ {
			select {
			case order <- i:
				p.pushCnt.Add(1)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	if p.debug {
		slog.Debug("pipeline pass done", "pass", name, "rows", n, "workers", p.numWorker,
			"pushed", p.pushCnt.Load(), "popped", p.popCnt.Load(), "elapsed", time.Since(start), "error", err)
	}

	return err
}

/*
	Workflow:

	dispatch -> push row index -> worker pops -> job(row)
*/
