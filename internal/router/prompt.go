// Package router implements the orchestrator-driven route selection (C5):
// prompt construction from the conversation and declared routes, the
// orchestrator HTTP call, and parsing its returned route list back into
// (route, model) pairs.
package router

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/relaygate/relaygate/internal/dialect"
)

// Route is one declared named route: a description the orchestrator matches
// user intent against, and the model that serves it.
type Route struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Model       string `json:"model"`
}

const systemPromptTemplate = `You are a routing assistant. Given the conversation below and the list of available routes, decide which route or routes apply to the user's most recent turn. Respond with exactly one JSON object: {"route": ["route_name", ...]}.

Routes:
{routes}

Conversation:
{conversation}`

// routeJSON mirrors the compact per-route object the orchestrator is shown.
// Field order and the empty object literals for parameters matter: they are
// rendered with Python's json.dumps(indent=None, separators=(", ", ": "))
// equivalent spacing, because the orchestrator model is sensitive to this
// exact shape.
type routeJSON struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  routeParamsJSON `json:"parameters"`
}

type routeParamsJSON struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// renderRoutesJSON renders one compact JSON object per line, matching
// separators=(", ", ": ") — a space after every comma and every colon.
func renderRoutesJSON(routes []Route) string {
	var lines []string
	for _, r := range routes {
		obj := routeJSON{
			Name: r.Name, Description: r.Description,
			Parameters: routeParamsJSON{Type: "object", Properties: map[string]any{}, Required: []string{}},
		}
		lines = append(lines, marshalCompactWithSpaces(obj))
	}
	return strings.Join(lines, "\n")
}

// marshalCompactWithSpaces reproduces Python's separators=(", ", ": ")
// spacing on top of encoding/json's default compact output (which uses no
// spaces at all), by re-inserting a space after each structural comma and
// colon outside of string literals.
func marshalCompactWithSpaces(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var out bytes.Buffer
	inString := false
	escaped := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		out.WriteByte(c)
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',', ':':
			out.WriteByte(' ')
		}
	}
	return out.String()
}

// renderConversationJSON renders the filtered message window with 4-space
// pretty-JSON indentation.
func renderConversationJSON(messages []dialect.Message) string {
	type wireMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	wire := make([]wireMsg, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, wireMsg{Role: string(m.Role), Content: m.FlattenText()})
	}
	b, err := json.MarshalIndent(wire, "", "    ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

// BuildPrompt renders the fixed system prompt template with the routes and
// the token-budgeted conversation window substituted in.
func BuildPrompt(routes []Route, messages []dialect.Message) string {
	filtered := filterConversation(messages)
	p := strings.Replace(systemPromptTemplate, "{routes}", renderRoutesJSON(routes), 1)
	p = strings.Replace(p, "{conversation}", renderConversationJSON(filtered), 1)
	return p
}

// filterConversation drops messages with empty content, role=system, or
// role=tool before they enter the routing window.
func filterConversation(messages []dialect.Message) []dialect.Message {
	out := make([]dialect.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == dialect.RoleSystem || m.Role == dialect.RoleTool {
			continue
		}
		if strings.TrimSpace(m.FlattenText()) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}
