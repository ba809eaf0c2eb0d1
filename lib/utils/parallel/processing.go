package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

type item[T any] struct {
	input T
	index int
}

// Process applies f to every input on at most nWorkers goroutines and
// returns the outputs in input order. The first error cancels the remaining
// work and is returned. A non-positive nWorkers means GOMAXPROCS.
func Process[S, T any](ctx context.Context, nWorkers int, inputs []S, f func(S) (T, error)) ([]T, error) {
	g, ctx := errgroup.WithContext(ctx)
	itemCh := make(chan item[S])
	g.Go(func() error {
		defer close(itemCh)
		for i := range inputs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case itemCh <- item[S]{inputs[i], i}:
			}
		}
		return nil
	})
	ret := make([]T, len(inputs))
	if nWorkers <= 0 {
		nWorkers = runtime.GOMAXPROCS(0)
	}
	if nWorkers > len(inputs) {
		nWorkers = len(inputs)
	}

	for i := 0; i < nWorkers; i++ {
		g.Go(func() error {
			for item := range itemCh {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
					var err error
					if ret[item.index], err = f(item.input); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}
