package aichat

import "testing"

func TestToMessageParamsPreservesOrderAndRole(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleAssistant, Text: "hello"},
	}
	params := toMessageParams(history)
	if len(params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(params))
	}
}

func TestEstimateCostUSDKnownModel(t *testing.T) {
	cost := EstimateCostUSD("claude-haiku-3-5-20241022", Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	if cost != 0.80+4.00 {
		t.Fatalf("EstimateCostUSD = %v, want %v", cost, 0.80+4.00)
	}
}

func TestEstimateCostUSDUnknownModelFallsBackToDefault(t *testing.T) {
	cost := EstimateCostUSD("some-unreleased-model", Usage{InputTokens: 1_000_000, OutputTokens: 0})
	want := pricePerMillionUSD[DefaultModel][0]
	if cost != want {
		t.Fatalf("EstimateCostUSD fallback = %v, want %v", cost, want)
	}
}

func TestNewClientDefaultsModel(t *testing.T) {
	c := NewClient("test-key", "")
	if c.model != DefaultModel {
		t.Fatalf("model = %q, want default %q", c.model, DefaultModel)
	}
}
