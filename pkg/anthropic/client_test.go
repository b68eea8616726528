package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 500_000,
	}

	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 0.001)

	assert.Zero(t, usage.EstimateCost("unknown-model"))
}

func TestEstimateCost_CacheTokens(t *testing.T) {
	usage := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}

	cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
	// Cache write at 1.25x input rate, cache read at 0.1x.
	assert.InDelta(t, 3.00*1.25+3.00*0.1, cost, 0.001)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("system text")
	require.Len(t, blocks, 1)
	assert.Equal(t, "system text", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}

func TestToSDKMessages(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[1].Role)
}

func TestToSDKSystemBlocks(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "5m"}},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "plain", blocks[0].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("5m"), blocks[1].CacheControl.TTL)
}

func TestFromSDKMessage(t *testing.T) {
	msg := &sdk.Message{
		ID:    "msg_123",
		Model: "claude-sonnet-4-5-20250929",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "first"},
			{Type: "text", Text: "second"},
		},
		StopReason: "end_turn",
		Usage: sdk.Usage{
			InputTokens:  100,
			OutputTokens: 40,
		},
	}

	resp := fromSDKMessage(msg)
	assert.Equal(t, "msg_123", resp.ID)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "first", resp.Content[0].Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int64(100), resp.Usage.InputTokens)
}
