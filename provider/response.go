package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractChatCompletions reads choices[0].message.content.
func extractChatCompletions(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat-completions response: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return NoAnswer, nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// extractGemini reads candidates[0].content.parts[0].text.
func extractGemini(body []byte) (string, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return NoAnswer, nil
	}
	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return NoAnswer, nil
	}
	return text, nil
}

// extractAnthropic reads content[0].text.
func extractAnthropic(body []byte) (string, error) {
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	if len(resp.Content) == 0 || strings.TrimSpace(resp.Content[0].Text) == "" {
		return NoAnswer, nil
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}

// extractGeneric reads answer, then result.
func extractGeneric(body []byte) (string, error) {
	var resp struct {
		Answer string `json:"answer"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode generic response: %w", err)
	}
	if resp.Answer != "" {
		return resp.Answer, nil
	}
	if resp.Result != "" {
		return resp.Result, nil
	}
	return NoAnswer, nil
}
