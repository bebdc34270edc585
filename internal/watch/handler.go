// SPDX-License-Identifier: MPL-2.0

package watch

import "context"

// Handler reacts to semantic changes under the watch root. Paths are
// absolute. Returning signals that the reaction finished; a non-nil error is
// that path's failure and is only logged by the engine.
//
// Implementations should return promptly or hand work off: the engine does
// not re-arm the directory until every callback of its batch returned.
type Handler interface {
	Created(ctx context.Context, path string) error
	Modified(ctx context.Context, path string) error
	Deleted(ctx context.Context, path string) error
}

// NopHandler completes every callback immediately. Embed it to override
// only the callbacks you care about.
type NopHandler struct{}

func (NopHandler) Created(context.Context, string) error  { return nil }
func (NopHandler) Modified(context.Context, string) error { return nil }
func (NopHandler) Deleted(context.Context, string) error  { return nil }

// Funcs adapts plain functions to Handler. Nil fields complete immediately.
type Funcs struct {
	OnCreated  func(ctx context.Context, path string) error
	OnModified func(ctx context.Context, path string) error
	OnDeleted  func(ctx context.Context, path string) error
}

func (f Funcs) Created(ctx context.Context, path string) error {
	if f.OnCreated == nil {
		return nil
	}
	return f.OnCreated(ctx, path)
}

func (f Funcs) Modified(ctx context.Context, path string) error {
	if f.OnModified == nil {
		return nil
	}
	return f.OnModified(ctx, path)
}

func (f Funcs) Deleted(ctx context.Context, path string) error {
	if f.OnDeleted == nil {
		return nil
	}
	return f.OnDeleted(ctx, path)
}
