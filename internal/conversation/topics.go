package conversation

import (
	"strings"

	"github.com/northlane/advisor-scheduling/internal/booking"
)

var topicDescriptions = map[booking.Topic]string{
	booking.TopicKYC:         "Know Your Customer verification and account onboarding processes",
	booking.TopicSIP:         "Systematic Investment Plans and mandate-related queries",
	booking.TopicStatements:  "Account statements and tax documentation",
	booking.TopicWithdrawals: "Withdrawal processes and timeline information",
	booking.TopicAccount:     "Account modifications and nominee updates",
}

var topicKeywords = map[booking.Topic][]string{
	booking.TopicKYC:         {"kyc", "onboarding", "verification", "account setup", "documentation"},
	booking.TopicSIP:         {"sip", "mandate", "systematic", "investment plan", "auto-debit"},
	booking.TopicStatements:  {"statement", "tax", "document", "form 16", "consolidated statement"},
	booking.TopicWithdrawals: {"withdrawal", "redeem", "timeline", "processing time", "fund transfer"},
	booking.TopicAccount:     {"nominee", "account change", "update", "modification", "beneficiary"},
}

var educationalLinks = map[booking.Topic][]string{
	booking.TopicKYC:         {"https://help.northlane.in/kyc-process", "https://help.northlane.in/account-setup-guide"},
	booking.TopicSIP:         {"https://help.northlane.in/sip-guide", "https://help.northlane.in/mandate-setup"},
	booking.TopicStatements:  {"https://help.northlane.in/tax-documents", "https://help.northlane.in/statement-guide"},
	booking.TopicWithdrawals: {"https://help.northlane.in/withdrawal-process", "https://help.northlane.in/processing-times"},
	booking.TopicAccount:     {"https://help.northlane.in/nominee-update", "https://help.northlane.in/account-changes"},
}

// DetectTopic matches the message against topic names and keyword
// sets, case-insensitive. First matching topic in menu order wins.
func DetectTopic(message string) (booking.Topic, bool) {
	lower := strings.ToLower(message)

	for _, topic := range booking.Topics {
		if strings.Contains(lower, strings.ToLower(string(topic))) {
			return topic, true
		}
		for _, kw := range topicKeywords[topic] {
			if strings.Contains(lower, kw) {
				return topic, true
			}
		}
	}
	return "", false
}

// LinksForTopic returns the educational links for a topic, or the
// full set in menu order when no topic is selected yet.
func LinksForTopic(topic string) []string {
	if links, ok := educationalLinks[booking.Topic(topic)]; ok {
		return links
	}
	var all []string
	for _, t := range booking.Topics {
		all = append(all, educationalLinks[t]...)
	}
	return all
}

func topicMenu() string {
	var b strings.Builder
	b.WriteString(MsgTopicSelection)
	for i, t := range booking.Topics {
		b.WriteString("\n")
		b.WriteString(string(rune('1' + i)))
		b.WriteString(". ")
		b.WriteString(string(t))
	}
	return b.String()
}
