package briefing

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/briefcast/briefcast/internal/pipeline"
)

// BatchResult counts the outcome of GenerateAll.
type BatchResult struct {
	Generated int
	Skipped   int
	Failed    map[string]error
}

// GenerateAll generates audio for every queued article that lacks it,
// running at most concurrency generations at once. One article failing
// does not stop the others; failures are reported per id.
func (d *Desk) GenerateAll(ctx context.Context, opts pipeline.Options, concurrency int) (BatchResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	ids := d.PendingAudio()
	res := BatchResult{Failed: make(map[string]error)}
	if len(ids) == 0 {
		return res, nil
	}
	d.logger.Info("Generating pending audio", "articles", len(ids), "concurrency", concurrency)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := d.Session(id)
			if err == nil {
				_, err = s.Generate(gctx, opts)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Generated++
			case errors.Is(err, pipeline.ErrBusy), errors.Is(err, ErrArticleNotFound):
				res.Skipped++
			default:
				d.logger.Warn("Generation failed", "article", id, "error", err)
				res.Failed[id] = err
			}
			return nil
		})
	}
	err := g.Wait()
	d.logger.Info("Pending audio done", "generated", res.Generated, "skipped", res.Skipped, "failed", len(res.Failed))
	return res, err
}
