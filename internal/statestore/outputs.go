package statestore

// OutputItem mirrors a completed Responses-API output item closely enough
// to drive the output->input replay rule without importing the
// openairesponses wire package here (statestore only needs the shape, not
// the wire JSON tags).
type OutputItem struct {
	Type      string // "message" or "function_call"
	Role      string // for Type=="message"
	Text      string // for Type=="message"
	Refusal   bool   // for Type=="message"; dropped entirely when true
	ToolName  string // for Type=="function_call"
	Arguments string // for Type=="function_call"
}

// OutputsToInputs implements the Responses API's output->input synthesis
// rule: a Message output becomes an InputItem preserving role and
// textualizable content; a FunctionCall becomes a synthetic assistant
// InputMessage whose text is "Called function: <name> with arguments:
// <args>"; refusals are dropped entirely.
func OutputsToInputs(outputs []OutputItem) []InputItem {
	out := make([]InputItem, 0, len(outputs))
	for _, o := range outputs {
		switch o.Type {
		case "function_call":
			out = append(out, InputItem{
				Role:    "assistant",
				Content: "Called function: " + o.ToolName + " with arguments: " + o.Arguments,
			})
		default:
			if o.Refusal {
				continue
			}
			out = append(out, InputItem{Role: o.Role, Content: o.Text})
		}
	}
	return out
}
