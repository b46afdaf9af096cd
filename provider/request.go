package provider

const (
	maxTokens   = 512
	temperature = 0.2
)

// chat-completions shape (openai, grok).

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func buildChatCompletions(model string) func(string, []Turn, string) any {
	return func(systemPrompt string, turns []Turn, question string) any {
		messages := []chatMessage{{Role: "system", Content: systemPrompt}}
		for _, t := range turns {
			role := t.Role
			if role == "bot" {
				role = "assistant"
			}
			messages = append(messages, chatMessage{Role: role, Content: t.Content})
		}
		messages = append(messages, chatMessage{Role: "user", Content: question})
		return chatRequest{
			Model:       model,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		}
	}
}

// content-generation shape (gemini). No system role: the system prompt is
// prepended to the final user turn.

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

func buildGemini(systemPrompt string, turns []Turn, question string) any {
	var contents []geminiContent
	for _, t := range turns {
		role := "user"
		if t.Role == "bot" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: t.Content}}})
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: systemPrompt + "\n\n" + question}},
	})
	return geminiRequest{
		Contents:         contents,
		GenerationConfig: geminiGenConfig{Temperature: temperature, MaxOutputTokens: maxTokens},
	}
}

// messages shape (anthropic). The system prompt travels as the first user
// turn rather than a dedicated field.

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

func buildAnthropic(systemPrompt string, turns []Turn, question string) any {
	messages := []chatMessage{{Role: "user", Content: systemPrompt}}
	for _, t := range turns {
		role := "user"
		if t.Role == "bot" {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: t.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: question})
	return anthropicRequest{
		Model:       "claude-3-opus-20240229",
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    messages,
	}
}

// generic fallback shape for self-hosted providers.

type genericRequest struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context"`
}

func buildGeneric(systemPrompt string, _ []Turn, question string) any {
	return genericRequest{Prompt: question, Context: systemPrompt}
}
