package model

import (
	"context"

	"autohaus.io/cms/internal/store"
)

// HookContext is handed to model hooks. Record holds the candidate values
// during Validate and the persisted record afterwards.
type HookContext struct {
	Type    *EntityType
	Record  *store.Record
	Tx      store.Tx
	Actor   string
	Created bool
	Draft   bool
}

// Hooks is the capability interface for model-level behavior. Validate runs
// before anything is persisted; Submit runs after persistence when the write
// did not raise the draft flag; AfterInsert runs after a create. Any error
// aborts the whole write.
type Hooks interface {
	Validate(ctx context.Context, hc *HookContext) error
	Submit(ctx context.Context, hc *HookContext) error
	AfterInsert(ctx context.Context, hc *HookContext) error
}

// NopHooks is the default Hooks implementation. Embed it to override only
// the hooks a type needs.
type NopHooks struct{}

func (NopHooks) Validate(context.Context, *HookContext) error    { return nil }
func (NopHooks) Submit(context.Context, *HookContext) error      { return nil }
func (NopHooks) AfterInsert(context.Context, *HookContext) error { return nil }
