// Package actions decomposes one logical record update into a tree of
// narrow graph mutations and runs it depth-first with fail-fast
// semantics. There is no compensation on partial failure; composites
// order their side-effect-free checks before any mutating child.
package actions

import "context"

// Action is one node in an update tree. Perform may append further
// children to the node while it runs; the engine picks them up in
// order.
type Action interface {
	Name() string
	Perform(ctx context.Context) (*Result, error)
	Children() *[]Action
}

// BaseAction carries the mutable child list composites embed.
type BaseAction struct {
	children []Action
}

func (b *BaseAction) Children() *[]Action {
	return &b.children
}

// Append schedules children to run after the current node, in the
// order given.
func (b *BaseAction) Append(children ...Action) {
	b.children = append(b.children, children...)
}
