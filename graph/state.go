package graph

// State is a node of the orchestration graph.
type State string

const (
	StateReasoning    State = "reasoning"
	StateToolDispatch State = "tool_dispatch"
	StateTerminal     State = "terminal"
)

// Edge is a transition between two states. Conditional edges depend on the
// model decision.
type Edge struct {
	From        State
	To          State
	Conditional bool
	Label       string
}

// Edges returns the static transition table.
func Edges() []Edge {
	return []Edge{
		{From: StateReasoning, To: StateToolDispatch, Conditional: true, Label: "tool calls"},
		{From: StateReasoning, To: StateTerminal, Conditional: true, Label: "answer"},
		{From: StateToolDispatch, To: StateReasoning},
	}
}
