package router

import (
	"log/slog"

	"github.com/relaygate/relaygate/internal/dialect"
)

// estimateTokens approximates token count as byte_len/4, the cheap
// heuristic the router uses instead of invoking a real tokenizer (treated
// as an external collaborator out of this core's scope).
func estimateTokens(s string) int {
	return len(s) / 4
}

// BudgetWindow walks messages from newest to oldest, including each one
// whose running token estimate stays under cap. If even the most recent
// message alone exceeds cap and it is role=user, it is included alone;
// otherwise the last (newest) message is included unconditionally so the
// window is never empty. Chronological order is always preserved on
// return. Logs (but does not error) when the first or last selected
// message isn't role=user.
func BudgetWindow(messages []dialect.Message, budgetCap int) []dialect.Message {
	if len(messages) == 0 {
		return nil
	}

	newest := messages[len(messages)-1]
	if estimateTokens(newest.FlattenText()) > budgetCap {
		if newest.Role == dialect.RoleUser {
			return []dialect.Message{newest}
		}
	}

	var selected []dialect.Message
	total := 0
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		cost := estimateTokens(m.FlattenText())
		if len(selected) > 0 && total+cost >= budgetCap {
			break
		}
		selected = append(selected, m)
		total += cost
	}
	if len(selected) == 0 {
		selected = append(selected, newest)
	}

	// reverse back into chronological order
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}

	if selected[0].Role != dialect.RoleUser {
		slog.Warn("router: oldest message in budgeted window is not role=user", "role", selected[0].Role)
	}
	if last := selected[len(selected)-1]; last.Role != dialect.RoleUser {
		slog.Warn("router: newest message in budgeted window is not role=user", "role", last.Role)
	}

	return selected
}
