package router

import (
	"strings"
	"testing"

	"github.com/relaygate/relaygate/internal/dialect"
)

func TestRenderRoutesJSONUsesPythonStyleSeparators(t *testing.T) {
	out := renderRoutesJSON([]Route{{Name: "code-gen", Description: "writes code"}})
	want := `{"name": "code-gen", "description": "writes code", "parameters": {"type": "object", "properties": {}, "required": []}}`
	if out != want {
		t.Fatalf("unexpected rendering:\n got:  %s\n want: %s", out, want)
	}
}

func TestFilterConversationDropsSystemToolAndEmpty(t *testing.T) {
	messages := []dialect.Message{
		{Role: dialect.RoleSystem, Text: "you are a bot"},
		{Role: dialect.RoleUser, Text: "hello"},
		{Role: dialect.RoleTool, Text: "tool output", ToolCallID: "tc_1"},
		{Role: dialect.RoleAssistant, Text: ""},
		{Role: dialect.RoleAssistant, Text: "hi there"},
	}
	filtered := filterConversation(messages)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 messages, got %d: %+v", len(filtered), filtered)
	}
	if filtered[0].Text != "hello" || filtered[1].Text != "hi there" {
		t.Fatalf("unexpected filtered messages: %+v", filtered)
	}
}

func TestBuildPromptSubstitutesTemplate(t *testing.T) {
	prompt := BuildPrompt(
		[]Route{{Name: "docs", Description: "answers docs questions"}},
		[]dialect.Message{{Role: dialect.RoleUser, Text: "how do I configure logging?"}},
	)
	if !strings.Contains(prompt, `"name": "docs"`) {
		t.Fatalf("expected rendered route in prompt, got: %s", prompt)
	}
	if !strings.Contains(prompt, "how do I configure logging?") {
		t.Fatalf("expected conversation content in prompt, got: %s", prompt)
	}
}
