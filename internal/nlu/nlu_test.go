package nlu

import "testing"

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		message string
		want    Intent
	}{
		{"I want to book a consultation", IntentBookNew},
		{"can we schedule something", IntentBookNew},
		{"I need to reschedule my appointment", IntentReschedule},
		{"please cancel my booking", IntentCancel},
		{"what documents do I need to prepare", IntentWhatToPrepare},
		{"what slots are available", IntentAvailability},
		{"hello there", IntentGreeting},
		{"the weather is nice", IntentUnknown},
	}

	for _, c := range cases {
		if got := DetectIntent(c.message); got != c.want {
			t.Errorf("DetectIntent(%q) = %q, want %q", c.message, got, c.want)
		}
	}
}

func TestExtractInlineCalls(t *testing.T) {
	calls, cleaned := extractInlineCalls(`Sure, noted. <function=select_topic>{"topic":"SIP/Mandates"}`)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != FnSelectTopic {
		t.Errorf("expected %s, got %s", FnSelectTopic, calls[0].Name)
	}
	if calls[0].Arguments["topic"] != "SIP/Mandates" {
		t.Errorf("unexpected arguments: %v", calls[0].Arguments)
	}
	if cleaned != "Sure, noted." {
		t.Errorf("expected cleaned message, got %q", cleaned)
	}
}

func TestExtractInlineCalls_NoCalls(t *testing.T) {
	calls, cleaned := extractInlineCalls("Just a normal reply.")
	if len(calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(calls))
	}
	if cleaned != "Just a normal reply." {
		t.Errorf("message should be unchanged, got %q", cleaned)
	}
}
