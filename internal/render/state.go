package render

import (
	"github.com/yuin/goldmark/parser"
)

var stateKey = parser.NewContextKey()

// callState is everything one Render call hands to the transformers. It
// rides on the goldmark parser.Context, so the engine itself stays stateless.
type callState struct {
	path     string
	resolver *resolver
	embedSeq int
}

func stateFrom(pc parser.Context) *callState {
	if st, ok := pc.Get(stateKey).(*callState); ok {
		return st
	}
	// Parsed outside Render, e.g. through the bare goldmark engine.
	st := &callState{resolver: newResolver(nil)}
	pc.Set(stateKey, st)
	return st
}
