// Package bulk applies an operation to many targets and reports an outcome
// per target instead of failing the whole batch.
package bulk

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/warden/pkg/errs"
)

const tracerName = "github.com/platinummonkey/warden/pkg/bulk"

// Result is the outcome for one target. An empty Error means success.
type Result struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// Succeeded reports whether the item succeeded
func (r Result) Succeeded() bool {
	return r.Error == ""
}

// Run applies op to every item in order. Business denials returned by op
// (see errs.IsDenial) become that item's Error; any other error stops the
// batch and is returned. An empty batch is rejected.
func Run[T any](ctx context.Context, name string, items []T, id func(T) uuid.UUID, op func(context.Context, T) error) ([]Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "bulk."+name)
	defer span.End()
	span.SetAttributes(attribute.Int("bulk.items", len(items)))

	if len(items) == 0 {
		return nil, errs.BadRequest("No items were provided.")
	}

	results := make([]Result, 0, len(items))
	failed := 0
	for _, item := range items {
		err := op(ctx, item)
		switch {
		case err == nil:
			results = append(results, Result{ID: id(item)})
		case errs.IsDenial(err):
			failed++
			results = append(results, Result{ID: id(item), Error: err.Error()})
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%s %s: %w", name, id(item), err)
		}
	}

	span.SetAttributes(attribute.Int("bulk.failed", failed))
	return results, nil
}

// Deny builds a failed result.
func Deny(id uuid.UUID, reason string) Result {
	return Result{ID: id, Error: reason}
}

// Succeeded returns the ids of the successful results, in order.
func Succeeded(results []Result) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(results))
	for _, r := range results {
		if r.Succeeded() {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Failed returns the number of failed results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Succeeded() {
			n++
		}
	}
	return n
}
