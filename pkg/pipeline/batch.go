package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
)

// RunBatch runs the pipeline over every series with at most workers
// concurrent transects (zero or less means GOMAXPROCS). Results are returned
// in input order. A transect that fails does not stop the others: its error
// is stored in Result.Err. The returned error is non-nil only when ctx is
// cancelled, in which case unstarted transects carry ctx's error.
func (p *Pipeline) RunBatch(ctx context.Context, series []*timeseries.Series, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(series))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, s := range series {
		g.Go(func() error {
			err := gctx.Err()
			if err != nil {
				results[i] = Result{Transect: nameOf(s), Raw: s, Err: err}

				return err
			}

			res, runErr := p.Run(gctx, s)
			if runErr != nil && res.Err == nil {
				res = Result{Transect: nameOf(s), Raw: s, Err: runErr}
			}

			results[i] = res

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return results, err
	}

	// Cancellation observed only inside Run is still a cancellation.
	return results, ctx.Err()
}

func nameOf(s *timeseries.Series) string {
	if s == nil {
		return ""
	}

	return s.Name
}
