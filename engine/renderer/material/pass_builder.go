package material

// PassStateMachineBuilderOption is a functional option applied to a pass state machine during
// construction via NewPassStateMachine.
type PassStateMachineBuilderOption func(*passStateMachine)

// WithOpaqueThreshold overrides DefaultOpaqueThreshold. Values outside (0, 1] are ignored.
//
// Parameters:
//   - threshold: the opacity at or above which a material is opaque
//
// Returns:
//   - PassStateMachineBuilderOption: a function that applies the threshold option
func WithOpaqueThreshold(threshold float32) PassStateMachineBuilderOption {
	return func(p *passStateMachine) {
		if threshold > 0 && threshold <= 1 {
			p.threshold = threshold
		}
	}
}

// WithLabel sets the model name attached to log records.
//
// Parameters:
//   - label: the model name
//
// Returns:
//   - PassStateMachineBuilderOption: a function that applies the label option
func WithLabel(label string) PassStateMachineBuilderOption {
	return func(p *passStateMachine) {
		p.label = label
	}
}
