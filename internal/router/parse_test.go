package router

import "testing"

func TestParseResponseStrictJSON(t *testing.T) {
	names := ParseResponse(`{"route": ["code-gen", "docs"]}`)
	if len(names) != 2 || names[0] != "code-gen" || names[1] != "docs" {
		t.Fatalf("unexpected names: %+v", names)
	}
}

func TestParseResponseEmptyOrNullRoute(t *testing.T) {
	if names := ParseResponse(`{"route": []}`); names != nil {
		t.Fatalf("expected nil for empty route, got %+v", names)
	}
	if names := ParseResponse(`{"route": null}`); names != nil {
		t.Fatalf("expected nil for null route, got %+v", names)
	}
}

func TestParseResponseNonJSON(t *testing.T) {
	if names := ParseResponse("not json at all"); names != nil {
		t.Fatalf("expected nil for non-JSON content, got %+v", names)
	}
}

func TestParseResponseSingleQuoteFallback(t *testing.T) {
	names := ParseResponse(`{'route': ['code-gen']}`)
	if len(names) != 1 || names[0] != "code-gen" {
		t.Fatalf("unexpected names: %+v", names)
	}
}

func TestParseResponseDoesNotCorruptValidJSONWithLiteralNewline(t *testing.T) {
	// Valid JSON already — the literal \n inside the string must survive
	// because the fallback cleanup only runs when strict parsing fails.
	names := ParseResponse(`{"route": ["a\nb"]}`)
	if len(names) != 1 || names[0] != "a\nb" {
		t.Fatalf("expected literal newline preserved, got %+v", names)
	}
}

func TestResolveRoutesPreferencesOverrideDescriptorMap(t *testing.T) {
	routes := []Route{{Name: "code-gen", Model: "gpt-4o"}}
	resolved := ResolveRoutes([]string{"code-gen"}, routes, map[string]string{"code-gen": "claude-3-5-sonnet"})
	if len(resolved) != 1 || resolved[0].Model != "claude-3-5-sonnet" {
		t.Fatalf("expected preference to win, got %+v", resolved)
	}
}

func TestResolveRoutesDropsUnknown(t *testing.T) {
	resolved := ResolveRoutes([]string{"unknown-route"}, nil, nil)
	if len(resolved) != 0 {
		t.Fatalf("expected unknown route dropped, got %+v", resolved)
	}
}
