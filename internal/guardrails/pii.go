package guardrails

import "regexp"

// PII patterns checked against every inbound message before any
// state mutation. A hit blocks the turn entirely.
var piiPatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"phone", regexp.MustCompile(`\b(?:\+91|0)?[6-9]\d{9}\b`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"account_number", regexp.MustCompile(`\b\d{10,}\b`)},
	{"pan", regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`)},
	{"aadhaar", regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`)},
}

const PIIRefusal = "For security reasons, please don't share personal information like phone numbers, email addresses, or account numbers during this conversation. We'll collect contact details through a secure link after booking."

// RedactionPlaceholder is stored in history in place of a message
// that contained PII. The raw message is never recorded.
const RedactionPlaceholder = "[PII detected - message redacted]"

type PIIResult struct {
	Detected bool
	Types    []string
	Message  string
}

func DetectPII(text string) PIIResult {
	var types []string
	for _, p := range piiPatterns {
		if p.re.MatchString(text) {
			types = append(types, p.kind)
		}
	}

	res := PIIResult{
		Detected: len(types) > 0,
		Types:    types,
	}
	if res.Detected {
		res.Message = PIIRefusal
	}
	return res
}
