package router

import (
	"testing"

	"github.com/relaygate/relaygate/internal/dialect"
)

func TestBudgetWindowPreservesChronologicalOrder(t *testing.T) {
	messages := []dialect.Message{
		{Role: dialect.RoleUser, Text: "first"},
		{Role: dialect.RoleAssistant, Text: "second"},
		{Role: dialect.RoleUser, Text: "third"},
	}
	got := BudgetWindow(messages, 1000)
	if len(got) != 3 {
		t.Fatalf("expected all 3 messages within budget, got %d", len(got))
	}
	if got[0].Text != "first" || got[2].Text != "third" {
		t.Fatalf("expected chronological order preserved, got %+v", got)
	}
}

func TestBudgetWindowDropsOldestWhenOverCap(t *testing.T) {
	messages := []dialect.Message{
		{Role: dialect.RoleUser, Text: "0123456789012345678901234567890123456789"}, // ~40 bytes, ~10 tokens
		{Role: dialect.RoleUser, Text: "short"},
	}
	got := BudgetWindow(messages, 3)
	if len(got) != 1 {
		t.Fatalf("expected oldest message dropped, got %d messages: %+v", len(got), got)
	}
	if got[0].Text != "short" {
		t.Fatalf("expected newest message retained, got %+v", got)
	}
}

func TestBudgetWindowNeverEmpty(t *testing.T) {
	messages := []dialect.Message{
		{Role: dialect.RoleAssistant, Text: "a very long message that exceeds any reasonable tiny cap by itself"},
	}
	got := BudgetWindow(messages, 1)
	if len(got) != 1 {
		t.Fatalf("expected window to always include at least the newest message, got %+v", got)
	}
}
