package transform

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"
)

func TestFromBedrockConverseCarriesToolCallArguments(t *testing.T) {
	out := &bedrockruntime.ConverseOutput{
		StopReason: brtypes.StopReasonToolUse,
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
						ToolUseId: strPtr("toolu_1"),
						Name:      strPtr("get_weather"),
						Input:     document.NewLazyDocument(map[string]any{"city": "Seattle"}),
					}},
				},
			},
		},
	}

	cr := FromBedrockConverse(out)
	if len(cr.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(cr.ToolCalls))
	}
	tc := cr.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Name != "get_weather" {
		t.Fatalf("unexpected tool call identity: %+v", tc)
	}
	if tc.Arguments == "" {
		t.Fatal("expected tool call Arguments to be populated from the Bedrock Input document")
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		t.Fatalf("Arguments is not valid JSON: %v", err)
	}
	if args["city"] != "Seattle" {
		t.Fatalf("unexpected arguments: %+v", args)
	}
}

func TestFromBedrockConverseHandlesNilInput(t *testing.T) {
	out := &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
						ToolUseId: strPtr("toolu_2"),
						Name:      strPtr("no_args"),
					}},
				},
			},
		},
	}

	cr := FromBedrockConverse(out)
	if len(cr.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(cr.ToolCalls))
	}
	if cr.ToolCalls[0].Arguments != "{}" {
		t.Fatalf("expected empty-object Arguments for a nil Input document, got %q", cr.ToolCalls[0].Arguments)
	}
}

func strPtr(s string) *string { return &s }
