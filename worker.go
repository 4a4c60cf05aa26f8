package tafelcore

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs a sweep's position in the batch with its outcome.
type BatchResult struct {
	Index    int
	Analysis *Analysis
	Err      error
}

// AnalyzeAll analyzes sweeps on up to workers goroutines. A failed sweep
// only fails its own result. Sweeps not started before ctx is done carry
// ctx.Err(). Results are in input order.
func AnalyzeAll(ctx context.Context, a *Analyzer, sweeps []Sweep, workers int) []BatchResult {
	if workers <= 0 {
		workers = 1
	}
	results := make([]BatchResult, len(sweeps))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, s := range sweeps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{Index: i, Err: err}
				return nil
			}
			an, err := a.Analyze(s)
			results[i] = BatchResult{Index: i, Analysis: an, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
