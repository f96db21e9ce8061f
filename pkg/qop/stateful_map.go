package qop

import "github.com/dbis-ilm/pipefabric-go/pkg/stream"

// StatefulMapFunc transforms an input element into an output element taking
// an operator-owned state object into account. State mutation happens on the
// calling goroutine; the state is not shared.
type StatefulMapFunc[In, Out, State any] func(data In, outdated bool, state *State) Out

// StatefulMap is a map operator with operator-private state.
type StatefulMap[In, Out, State any] struct {
	UnaryTransform[In, Out]
	fn    StatefulMapFunc[In, Out, State]
	state State
}

// NewStatefulMap creates a new stateful map operator. The state starts as the
// zero value of State.
func NewStatefulMap[In, Out, State any](fn StatefulMapFunc[In, Out, State]) *StatefulMap[In, Out, State] {
	op := &StatefulMap[In, Out, State]{fn: fn}
	op.InitUnary("StatefulMap", false, op.processElement, op.processPunctuation)
	return op
}

func (op *StatefulMap[In, Out, State]) processElement(data In, outdated bool) {
	op.PublishElement(op.fn(data, outdated, &op.state), outdated)
}

func (op *StatefulMap[In, Out, State]) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}
