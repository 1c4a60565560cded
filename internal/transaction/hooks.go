package transaction

import "context"

// Hooks are the optional extension points of the commit sequence. Every
// transaction variant declares them statically; embed NopHooks and override
// only the stages the variant needs.
type Hooks interface {
	// FillDefaults runs first and may set attributes the caller left empty.
	FillDefaults(tx *Transaction)
	// PreCommit runs right before the service commit. An error aborts the commit.
	PreCommit(ctx context.Context, tx *Transaction) error
	// PostCommit runs after a successful commit, with tx.Result() populated.
	PostCommit(ctx context.Context, tx *Transaction) error
}

// NopHooks implements Hooks with no-ops.
type NopHooks struct{}

func (NopHooks) FillDefaults(*Transaction) {}

func (NopHooks) PreCommit(context.Context, *Transaction) error { return nil }

func (NopHooks) PostCommit(context.Context, *Transaction) error { return nil }

// HookFuncs builds Hooks from plain functions; nil fields are no-ops.
type HookFuncs struct {
	Fill func(tx *Transaction)
	Pre  func(ctx context.Context, tx *Transaction) error
	Post func(ctx context.Context, tx *Transaction) error
}

func (h HookFuncs) FillDefaults(tx *Transaction) {
	if h.Fill != nil {
		h.Fill(tx)
	}
}

func (h HookFuncs) PreCommit(ctx context.Context, tx *Transaction) error {
	if h.Pre != nil {
		return h.Pre(ctx, tx)
	}
	return nil
}

func (h HookFuncs) PostCommit(ctx context.Context, tx *Transaction) error {
	if h.Post != nil {
		return h.Post(ctx, tx)
	}
	return nil
}

// Chain runs several Hooks in order, stopping at the first error.
func Chain(hooks ...Hooks) Hooks {
	return chain(hooks)
}

type chain []Hooks

func (c chain) FillDefaults(tx *Transaction) {
	for _, h := range c {
		h.FillDefaults(tx)
	}
}

func (c chain) PreCommit(ctx context.Context, tx *Transaction) error {
	for _, h := range c {
		if err := h.PreCommit(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (c chain) PostCommit(ctx context.Context, tx *Transaction) error {
	for _, h := range c {
		if err := h.PostCommit(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}
