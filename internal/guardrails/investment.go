package guardrails

import "strings"

// Phrases that indicate the user is asking for investment advice,
// which the assistant must refuse to give.
var investmentAdvicePhrases = []string{
	"should i invest",
	"is it good to invest",
	"recommend",
	"best investment",
	"which stock",
	"which mutual fund",
	"buy or sell",
	"investment advice",
	"financial advice",
	"what should i do",
	"tell me what to invest",
}

const InvestmentAdviceRefusal = "I cannot provide investment advice. For personalized investment guidance, please consult with a qualified financial advisor. Here are some educational resources: [Educational Links]"

type AdviceResult struct {
	Detected         bool
	Message          string
	EducationalLinks []string
}

// DetectInvestmentAdvice checks the message for advice-seeking phrases.
// linksForTopic resolves educational links for the session's current
// topic; an empty topic returns the full link set.
func DetectInvestmentAdvice(text, topic string, linksForTopic func(topic string) []string) AdviceResult {
	lower := strings.ToLower(text)

	for _, phrase := range investmentAdvicePhrases {
		if strings.Contains(lower, phrase) {
			return AdviceResult{
				Detected:         true,
				Message:          InvestmentAdviceRefusal,
				EducationalLinks: linksForTopic(topic),
			}
		}
	}

	return AdviceResult{}
}
