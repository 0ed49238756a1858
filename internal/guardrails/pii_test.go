package guardrails

import "testing"

func TestDetectPII_Phone(t *testing.T) {
	res := DetectPII("call me at 9876543210")
	if !res.Detected {
		t.Fatal("expected phone number to be detected")
	}
	if res.Message != PIIRefusal {
		t.Errorf("expected refusal message, got %q", res.Message)
	}
	found := false
	for _, typ := range res.Types {
		if typ == "phone" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected phone in detected types, got %v", res.Types)
	}
}

func TestDetectPII_Email(t *testing.T) {
	res := DetectPII("my email is user@example.com")
	if !res.Detected {
		t.Fatal("expected email to be detected")
	}
}

func TestDetectPII_PAN(t *testing.T) {
	res := DetectPII("my pan is ABCDE1234F")
	if !res.Detected {
		t.Fatal("expected PAN to be detected")
	}
}

func TestDetectPII_Aadhaar(t *testing.T) {
	res := DetectPII("aadhaar 1234 5678 9012")
	if !res.Detected {
		t.Fatal("expected aadhaar to be detected")
	}
}

func TestDetectPII_CleanMessage(t *testing.T) {
	for _, msg := range []string{
		"I want to book a consultation",
		"tomorrow afternoon works",
		"NL-A742",
		"slot 1 please",
	} {
		if res := DetectPII(msg); res.Detected {
			t.Errorf("false positive on %q: %v", msg, res.Types)
		}
	}
}
