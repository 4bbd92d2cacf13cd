// Package parallel splits independent per-channel work across CPUs.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 32,
	}
}

// For executes f(i) for i in [0, n), sequentially when parallelism is
// disabled or n is below one chunk.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < cfg.MinChunkSize {
		for i := range n {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForErr is For with a fallible body. Every index still runs; the error
// with the lowest index is returned so results do not depend on scheduling.
func ForErr(n int, f func(i int) error, cfg Config) error {
	errs := make([]error, n)
	For(n, func(i int) {
		errs[i] = f(i)
	}, cfg)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
