package sync

import (
	"context"
	"time"

	"idsync/internal/domain"
)

// watermarkFor returns the delta watermark for a system: the start time of
// the most recent completed run of the same type. The zero time on a first
// run makes every object qualify.
func (e *Engine) watermarkFor(ctx context.Context, systemID string, runType domain.RunType) (time.Time, error) {
	last, err := e.runs.LastCompleted(ctx, systemID, runType)
	if err != nil {
		return time.Time{}, err
	}
	if last == nil {
		return time.Time{}, nil
	}
	return last.StartedAt, nil
}

// forEachModified pages through the objects modified strictly after the
// watermark. The count runs first so a quiet system skips paging entirely.
// fn is called once per object; cancellation is checked at page and object
// boundaries.
func (e *Engine) forEachModified(ctx context.Context, systemID string, watermark time.Time, pageSize int, fn func(*domain.ConnectedSystemObject) error) error {
	total, err := e.objects.CountModifiedSince(ctx, systemID, watermark)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		objs, err := e.objects.ListModifiedSince(ctx, systemID, watermark, page, pageSize)
		if err != nil {
			return err
		}
		if len(objs) == 0 {
			return nil
		}
		for _, o := range objs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(o); err != nil {
				return err
			}
		}
		if len(objs) < pageSize {
			return nil
		}
	}
}

// forEachObject pages through every object of a system for a full pass.
func (e *Engine) forEachObject(ctx context.Context, systemID string, pageSize int, fn func(*domain.ConnectedSystemObject) error) error {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		objs, err := e.objects.ListBySystem(ctx, systemID, page, pageSize)
		if err != nil {
			return err
		}
		if len(objs) == 0 {
			return nil
		}
		for _, o := range objs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(o); err != nil {
				return err
			}
		}
		if len(objs) < pageSize {
			return nil
		}
	}
}
