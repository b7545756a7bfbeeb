package input

import (
	"context"
)

// Token is the pipeline-wide stop signal. The controller cancels it to shut
// workers down; a worker cancels it only when it cannot continue.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

func (t *Token) Context() context.Context {
	return t.ctx
}

func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

func (t *Token) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Cancel requests shutdown. It is safe to call more than once.
func (t *Token) Cancel() {
	t.cancel()
}
