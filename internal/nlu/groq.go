package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const groqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// GroqClient talks to the Groq OpenAI-compatible chat completions API
// with tool calling enabled.
type GroqClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
	topics     []string
	disclaimer string
}

var _ Client = (*GroqClient)(nil)

func NewGroqClient(apiKey, model string, topics []string, disclaimer string) *GroqClient {
	return &GroqClient{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		topics:     topics,
		disclaimer: disclaimer,
	}
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolDef struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDef     `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GroqClient) Process(ctx context.Context, userMessage string, snapshot SessionSnapshot) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrNotConfigured
	}

	req := chatRequest{
		Model:       c.model,
		Messages:    c.buildMessages(userMessage, snapshot),
		Tools:       c.toolDefs(),
		ToolChoice:  "auto",
		Temperature: 0.3,
		MaxTokens:   1000,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, groqEndpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("groq request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read groq response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode groq response: %w", err)
	}
	if parsed.Error != nil {
		return Result{}, fmt.Errorf("groq api error: %s", parsed.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("groq api status %d", httpResp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("groq returned no choices")
	}

	msg := parsed.Choices[0].Message

	res := Result{
		Message: strings.TrimSpace(msg.Content),
		Intent:  DetectIntent(userMessage),
	}

	for _, tc := range msg.ToolCalls {
		args := map[string]string{}
		if tc.Function.Arguments != "" {
			var raw map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &raw); err == nil {
				for k, v := range raw {
					args[k] = fmt.Sprint(v)
				}
			}
		}
		res.FunctionCalls = append(res.FunctionCalls, FunctionCall{
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	// Some models leak tool calls as <function=name>{...} text instead
	// of using the tool API. Recover them rather than failing the turn.
	if len(res.FunctionCalls) == 0 {
		res.FunctionCalls, res.Message = extractInlineCalls(res.Message)
	}

	return res, nil
}

var inlineCallRe = regexp.MustCompile(`<function=([^>]+)>(\{.*?\})`)

func extractInlineCalls(message string) ([]FunctionCall, string) {
	var calls []FunctionCall

	for _, m := range inlineCallRe.FindAllStringSubmatch(message, -1) {
		var raw map[string]any
		if err := json.Unmarshal([]byte(m[2]), &raw); err != nil {
			continue
		}
		args := map[string]string{}
		for k, v := range raw {
			args[k] = fmt.Sprint(v)
		}
		calls = append(calls, FunctionCall{Name: strings.TrimSpace(m[1]), Arguments: args})
	}

	cleaned := strings.TrimSpace(inlineCallRe.ReplaceAllString(message, ""))
	return calls, cleaned
}

func (c *GroqClient) buildMessages(userMessage string, snapshot SessionSnapshot) []chatMessage {
	msgs := []chatMessage{{Role: "system", Content: c.systemPrompt(snapshot)}}

	for _, turn := range snapshot.History {
		if turn.Role == "system" || strings.Contains(turn.Content, "<function") {
			continue
		}
		msgs = append(msgs, chatMessage{Role: turn.Role, Content: turn.Content})
	}

	return append(msgs, chatMessage{Role: "user", Content: userMessage})
}

func (c *GroqClient) systemPrompt(snapshot SessionSnapshot) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant helping users schedule advisor consultations.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Always open with a greeting and the disclaimer: " + c.disclaimer + "\n")
	b.WriteString("2. Never provide investment advice. If asked, redirect to educational resources.\n")
	b.WriteString("3. Do not collect PII (phone, email, account numbers) during the conversation.\n")
	b.WriteString("4. All times are in the advisor's business timezone.\n")
	b.WriteString("5. Always confirm important information before proceeding.\n")
	b.WriteString("6. Record information through the tool system only; never write function-call syntax in your text.\n\n")

	b.WriteString("Current conversation state: " + snapshot.CurrentStep + "\n")
	if snapshot.Topic != "" {
		b.WriteString("Selected topic: " + snapshot.Topic + "\n")
	}
	if snapshot.DatePreference != "" {
		b.WriteString("Date preference: " + snapshot.DatePreference + "\n")
	}
	if snapshot.TimePreference != "" {
		b.WriteString("Time preference: " + snapshot.TimePreference + "\n")
	}

	b.WriteString("\nAvailable topics:\n")
	for _, t := range c.topics {
		b.WriteString("- " + t + "\n")
	}

	return b.String()
}

func (c *GroqClient) toolDefs() []toolDef {
	topicEnum, _ := json.Marshal(c.topics)

	defs := []struct {
		name, description, params string
	}{
		{
			FnSelectTopic,
			"Select or confirm the consultation topic",
			`{"type":"object","properties":{"topic":{"type":"string","enum":` + string(topicEnum) + `,"description":"The selected consultation topic"}},"required":["topic"]}`,
		},
		{
			FnCollectTimePreference,
			"Collect user preference for date and time",
			`{"type":"object","properties":{"datePreference":{"type":"string","description":"User preferred date (e.g. tomorrow, Jan 6, next Monday)"},"timePreference":{"type":"string","description":"User preferred time (e.g. 2pm, morning, afternoon)"}}}`,
		},
		{
			FnSelectSlot,
			"User selects a specific time slot",
			`{"type":"object","properties":{"slotId":{"type":"string","description":"The ID of the selected slot"}},"required":["slotId"]}`,
		},
		{
			FnProvideBookingCode,
			"Provide booking code for reschedule or cancel operations",
			`{"type":"object","properties":{"bookingCode":{"type":"string","description":"The booking code (format: NL-XXXX)"}},"required":["bookingCode"]}`,
		},
		{
			FnConfirmAction,
			"User confirms an action (booking, reschedule, cancel)",
			`{"type":"object","properties":{"action":{"type":"string","enum":["confirm_booking","confirm_reschedule","confirm_cancel"],"description":"The action being confirmed"}},"required":["action"]}`,
		},
	}

	out := make([]toolDef, 0, len(defs))
	for _, d := range defs {
		var td toolDef
		td.Type = "function"
		td.Function.Name = d.name
		td.Function.Description = d.description
		td.Function.Parameters = json.RawMessage(d.params)
		out = append(out, td)
	}
	return out
}
