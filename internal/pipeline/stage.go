package pipeline

import "context"

// Stage is one step of the claim pipeline. A Stage returns an error
// only for a *errors.ClaimError the processor should convert into a fate and
// a response; anything else aborts the claim as an infrastructure failure.
type Stage interface {
	Name() string
	Run(ctx context.Context, claim *Context) error
}

// StageFunc adapts a plain function to the Stage interface, named the way
// Gin's middleware chain (one file per stage for testability).
type StageFunc struct {
	name string
	fn   func(ctx context.Context, claim *Context) error
}

func NewStageFunc(name string, fn func(ctx context.Context, claim *Context) error) StageFunc {
	return StageFunc{name: name, fn: fn}
}

func (s StageFunc) Name() string { return s.name }

func (s StageFunc) Run(ctx context.Context, claim *Context) error { return s.fn(ctx, claim) }
