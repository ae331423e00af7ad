package provider

import (
	"context"
	"fmt"

	"github.com/tomszi/quotefeed/internal/model"
)

// Adapter integrates one upstream data source. Fetch never panics for
// expected failure modes; those come back as a typed Failure inside the
// Result. Implementations apply a bounded timeout so callers are never
// blocked indefinitely.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, inst model.Instrument) Result
}

// FailureKind classifies an adapter failure for the router.
type FailureKind string

const (
	KindRateLimited FailureKind = "rate_limited"
	KindNotFound    FailureKind = "not_found"
	KindNetwork     FailureKind = "network"
	KindMalformed   FailureKind = "malformed"
)

// Failure is the typed error half of a Result.
type Failure struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Provider, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Provider, f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

// Result is the normalized outcome of one adapter call: either a complete
// tick or a typed failure. Consumed immediately by the source router.
type Result struct {
	Provider string
	Tick     model.MarketTick
	Failure  *Failure
}

// OK reports whether the call produced a tick.
func (r Result) OK() bool { return r.Failure == nil }

func success(provider string, tick model.MarketTick) Result {
	return Result{Provider: provider, Tick: tick}
}

func failure(provider string, kind FailureKind, err error) Result {
	return Result{
		Provider: provider,
		Failure:  &Failure{Provider: provider, Kind: kind, Err: err},
	}
}
