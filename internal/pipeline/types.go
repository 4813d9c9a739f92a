// Package pipeline implements the agent-listener orchestrator (C6): for
// requests addressed to an agent listener, select one or more agent
// pipelines via the router, run each pipeline's filter chain sequentially,
// and stream back the terminal agent's response.
package pipeline

import "github.com/relaygate/relaygate/internal/dialect"

// Agent is one node in a filter chain: a chat-completions-compatible
// upstream invoked with an upstream-host header so the downstream proxy
// routes the call.
type Agent struct {
	ID          string `json:"id"`
	UpstreamURL string `json:"upstream_url"`
	AgentType   string `json:"agent_type"`
	Transport   string `json:"transport"`
}

// AgentPipeline (filter chain) is an ordered list of filter agents
// terminated by a terminal agent, matched against user intent via
// Description in the router.
type AgentPipeline struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Default     bool    `json:"default"`
	Filters     []Agent `json:"filters"`
	Terminal    Agent   `json:"terminal"`
}

// Listener is one agent-listener endpoint: a name (matched against the
// x-arch-agent-listener-name header), a port, and its configured pipelines.
type Listener struct {
	Name      string          `json:"name"`
	Port      int             `json:"port"`
	Pipelines []AgentPipeline `json:"pipelines"`
}

// ByName finds a listener by its configured name.
func ByName(listeners []Listener, name string) (Listener, bool) {
	for _, l := range listeners {
		if l.Name == name {
			return l, true
		}
	}
	return Listener{}, false
}

// SelectPipelines implements the pipeline selection rule: if exactly one
// pipeline is configured, routing is skipped entirely; otherwise selectedIDs
// (already in the router's returned order) are resolved against the
// listener's pipelines, falling back to the default-marked pipeline, or the
// first pipeline, when selectedIDs is empty.
func SelectPipelines(listener Listener, selectedIDs []string) []AgentPipeline {
	if len(listener.Pipelines) == 1 {
		return listener.Pipelines
	}

	if len(selectedIDs) == 0 {
		for _, p := range listener.Pipelines {
			if p.Default {
				return []AgentPipeline{p}
			}
		}
		if len(listener.Pipelines) > 0 {
			return []AgentPipeline{listener.Pipelines[0]}
		}
		return nil
	}

	byID := make(map[string]AgentPipeline, len(listener.Pipelines))
	for _, p := range listener.Pipelines {
		byID[p.ID] = p
	}
	var out []AgentPipeline
	for _, id := range selectedIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Conversation is the working message list threaded through a pipeline run.
type Conversation = []dialect.Message
