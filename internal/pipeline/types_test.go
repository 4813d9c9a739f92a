package pipeline

import "testing"

func TestSelectPipelinesSkipsRoutingWithOneConfigured(t *testing.T) {
	listener := Listener{Pipelines: []AgentPipeline{{ID: "only"}}}
	got := SelectPipelines(listener, nil)
	if len(got) != 1 || got[0].ID != "only" {
		t.Fatalf("expected the single configured pipeline, got %+v", got)
	}
}

func TestSelectPipelinesFallsBackToDefault(t *testing.T) {
	listener := Listener{Pipelines: []AgentPipeline{
		{ID: "a"},
		{ID: "b", Default: true},
	}}
	got := SelectPipelines(listener, nil)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected default pipeline, got %+v", got)
	}
}

func TestSelectPipelinesFallsBackToFirstWithNoDefault(t *testing.T) {
	listener := Listener{Pipelines: []AgentPipeline{{ID: "a"}, {ID: "b"}}}
	got := SelectPipelines(listener, nil)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected first pipeline, got %+v", got)
	}
}

func TestSelectPipelinesPreservesOrchestratorOrder(t *testing.T) {
	listener := Listener{Pipelines: []AgentPipeline{{ID: "code-gen"}, {ID: "docs"}}}
	got := SelectPipelines(listener, []string{"docs", "code-gen"})
	if len(got) != 2 || got[0].ID != "docs" || got[1].ID != "code-gen" {
		t.Fatalf("expected orchestrator order preserved, got %+v", got)
	}
}
