package llm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()

	if calls := tracker.Calls(); calls != 0 {
		t.Errorf("fresh tracker calls = %d, want 0", calls)
	}
	in, out := tracker.Total()
	if in != 0 || out != 0 {
		t.Errorf("fresh tracker totals = %d/%d, want 0/0", in, out)
	}

	tracker.Add(100, 40)
	tracker.Add(250, 60)

	if calls := tracker.Calls(); calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	in, out = tracker.Total()
	if in != 350 {
		t.Errorf("input tokens = %d, want 350", in)
	}
	if out != 100 {
		t.Errorf("output tokens = %d, want 100", out)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	got := translateModelForBedrock(anthropic.ModelClaudeSonnet4_20250514)
	if got != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("translated model = %q", got)
	}

	// Unknown models pass through unchanged.
	custom := anthropic.Model("custom-model")
	if got := translateModelForBedrock(custom); got != custom {
		t.Errorf("unknown model translated to %q", got)
	}
}
