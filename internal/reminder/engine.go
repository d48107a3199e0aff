package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type CycleResult struct {
	Dispatch    DispatchResult
	Materialize MaterializeResult
}

// Engine runs one reminder cycle: dispatch first, then materialize.
type Engine struct {
	dispatcher   *Dispatcher
	materializer *Materializer
}

func NewEngine(dispatcher *Dispatcher, materializer *Materializer) *Engine {
	return &Engine{
		dispatcher:   dispatcher,
		materializer: materializer,
	}
}

// RunOnce runs both passes. The materializer runs even when dispatch fails;
// errors from both passes are joined.
func (e *Engine) RunOnce(ctx context.Context, now time.Time) (CycleResult, error) {
	var (
		res  CycleResult
		errs []error
		err  error
	)

	res.Dispatch, err = e.dispatcher.Dispatch(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("dispatch: %w", err))
	}

	res.Materialize, err = e.materializer.Materialize(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("materialize: %w", err))
	}

	return res, errors.Join(errs...)
}
