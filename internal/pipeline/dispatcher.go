package pipeline

import "context"

// Dispatcher is the port the dispatch stage hands a settled claim to.
// Kept separate from internal/dispatcher's concrete type so the pipeline
// package has no dependency on the handler registry's wiring.
type Dispatcher interface {
	Dispatch(ctx context.Context, claim *Context) error
}
