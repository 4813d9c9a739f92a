package router

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// parsedResponse mirrors the orchestrator's required {"route": [...]}
// shape.
type parsedResponse struct {
	Route []string `json:"route"`
}

// ParseResponse extracts the ordered route names from the orchestrator's
// assistant message content. It first attempts a strict json.Unmarshal; only
// when that fails does it fall back to canonicalizing the content (replacing
// ' with " and stripping literal \n sequences) and retrying, so JSON that
// already happens to be valid but contains literal \n inside a string value
// is never corrupted by the cleanup step.
func ParseResponse(content string) []string {
	var parsed parsedResponse
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		return nonEmpty(parsed.Route)
	}

	cleaned := strings.ReplaceAll(content, "'", `"`)
	cleaned = strings.ReplaceAll(cleaned, `\n`, "")
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		slog.Warn("router: could not parse orchestrator response", "error", err)
		return nil
	}
	return nonEmpty(parsed.Route)
}

func nonEmpty(route []string) []string {
	if len(route) == 0 {
		return nil
	}
	return route
}

// Resolved is one route selection resolved to a serving model.
type Resolved struct {
	RouteName string
	Model     string
}

// ResolveRoutes maps each parsed route name to a serving model. When
// preference carries a matching route name, its associated model takes
// priority over the router's own construction-time descriptor map.
// Unresolved route names are dropped with a warning.
func ResolveRoutes(names []string, routes []Route, preferences map[string]string) []Resolved {
	byName := make(map[string]Route, len(routes))
	for _, r := range routes {
		byName[r.Name] = r
	}

	out := make([]Resolved, 0, len(names))
	for _, name := range names {
		if model, ok := preferences[name]; ok {
			out = append(out, Resolved{RouteName: name, Model: model})
			continue
		}
		if r, ok := byName[name]; ok {
			out = append(out, Resolved{RouteName: name, Model: r.Model})
			continue
		}
		slog.Warn("router: orchestrator selected an unknown route", "route", name)
	}
	return out
}
