// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import "context"

// NewEndpointFunc returns a [Func] that always returns the given
// "host:port" address text.
//
// This injects the target endpoint into a dial pipeline; the open path
// resolves the target to address text before building the pipeline.
func NewEndpointFunc(address string) Func[Unit, string] {
	return constFunc[string]{address}
}

// constFunc lifts a pure value into a [Func].
type constFunc[B any] struct {
	value B
}

var _ Func[Unit, string] = constFunc[string]{}

// Call implements [Func].
func (f constFunc[B]) Call(ctx context.Context, input Unit) (B, error) {
	return f.value, nil
}
