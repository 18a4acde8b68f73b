package state

import "context"

// Node is a unit of computation in a graph. It reads the current State and
// returns the values it changes. Nodes must not write to the Store.
type Node interface {
	Execute(ctx context.Context, s State) (Update, error)
}

// FunctionNode adapts a function to the Node interface.
type FunctionNode struct {
	fn func(ctx context.Context, s State) (Update, error)
}

// NewFunctionNode wraps fn as a Node.
func NewFunctionNode(fn func(ctx context.Context, s State) (Update, error)) *FunctionNode {
	return &FunctionNode{fn: fn}
}

func (n *FunctionNode) Execute(ctx context.Context, s State) (Update, error) {
	return n.fn(ctx, s)
}
