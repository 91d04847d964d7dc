// Package advisor generates a short natural-language commentary for a
// monthly report. It is strictly optional: report generation proceeds
// without commentary when no API key is configured or the model call fails.
package advisor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"budgeteer/internal/core"
)

const (
	maxTokens   = 300
	temperature = 0.4
)

const systemPrompt = "You are a personal finance assistant. Given a monthly " +
	"50/30/20 budget summary, write two to three plain sentences about how the " +
	"month is going. Be concrete about amounts and pacing. No markdown, no lists."

// chatClient is the slice of the OpenAI client the generator needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Generator struct {
	client chatClient
	model  string
}

// NewGenerator returns nil when no API key is configured; a nil generator
// means commentary is disabled.
func NewGenerator(apiKey, model string) *Generator {
	if apiKey == "" {
		return nil
	}
	return &Generator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Commentary produces a short narrative for the report. A nil receiver
// returns an empty commentary without error.
func (g *Generator) Commentary(ctx context.Context, r *core.BudgetReport, statuses core.ReportStatuses, year, month int) (string, error) {
	if g == nil {
		return "", nil
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(r, statuses, year, month)},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildPrompt renders the report as a compact text block the model can
// reason about.
func buildPrompt(r *core.BudgetReport, statuses core.ReportStatuses, year, month int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Budget summary for %d-%02d.\n", year, month)
	fmt.Fprintf(&b, "Income: %s\n", r.Income.Total)
	fmt.Fprintf(&b, "Needs (%d%% budget): spent %s. %s\n",
		r.Needs.BudgetPercent, r.Needs.Total, statuses.Needs.Message)
	writeSubcategories(&b, &r.Needs)
	fmt.Fprintf(&b, "Wants (%d%% budget): spent %s. %s\n",
		r.Wants.BudgetPercent, r.Wants.Total, statuses.Wants.Message)
	writeSubcategories(&b, &r.Wants)
	fmt.Fprintf(&b, "Savings (%d%% goal): %s remaining. %s\n",
		r.Savings.BudgetPercent, r.Savings.Total, statuses.Savings.Message)
	if d := r.Deficit(); !d.IsZero() {
		fmt.Fprintf(&b, "Spending exceeded income by %s.\n", d)
	}
	return b.String()
}

func writeSubcategories(b *strings.Builder, s *core.BucketSection) {
	subs := make([]string, 0, len(s.Subcategories))
	for sub := range s.Subcategories {
		subs = append(subs, sub)
	}
	sort.Strings(subs)
	for _, sub := range subs {
		fmt.Fprintf(b, "  %s: %s\n", sub, s.SubcategoryTotal(sub))
	}
}
