package llm

import (
	"context"
	"strings"
)

// Generate is a single-shot convenience wrapper over Chat: one system
// prompt, one user prompt, the reply text and usage back. Every agent in
// internal/agents builds its prompt directly and calls this rather than
// going through a shared prompt-assembly layer (DESIGN.md: superseded
// session.BuildWorkerContext family).
func Generate(ctx context.Context, client ChatClient, system, user string) (text string, promptTokens, completionTokens int, err error) {
	resp, err := client.Chat(ctx, []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		return "", 0, 0, err
	}
	return firstChoice(resp), resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil
}

func firstChoice(resp *ChatResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

// ExtractJSONArray returns the text from the first '[' to the last ']' in
// text, for feeding to json.Unmarshal. LLMs routinely wrap JSON in
// prose or markdown fences; this mirrors the existing convention
// (planning/perspectives.go's parseResponse) generalized to a shared helper.
func ExtractJSONArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// ExtractJSONObject is ExtractJSONArray's object-shaped counterpart.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// CostOf computes the dollar cost of one Generate call for a model, the
// shape every agent feeds into ResearchState.Cost.Add.
func CostOf(modelID string, promptTokens, completionTokens int) float64 {
	_, _, total := CalculateCost(modelID, promptTokens, completionTokens)
	return total
}
