// Package provider defines the supported LLM providers as tagged variants:
// each carries its relay endpoint, role mapping, request builder, and
// response extractor as data. Selection is by exact name match, never by
// substring heuristics.
package provider

import (
	"fmt"
)

// Name identifies a supported provider.
type Name string

const (
	OpenAI    Name = "openai"
	Anthropic Name = "anthropic"
	Gemini    Name = "gemini"
	Grok      Name = "grok"
	Generic   Name = "generic"
)

// NoAnswer is returned when a provider response lacks the expected answer
// field. A deliberate soft fail: the UI always has something to display.
const NoAnswer = "No answer."

// Turn is one real conversation turn handed to a request builder.
// Role is "user" or "bot"; builders map "bot" to the provider's
// assistant-role name.
type Turn struct {
	Role    string
	Content string
}

// Config is one provider variant.
type Config struct {
	Name Name
	// Path is the relay endpoint the request is POSTed to.
	Path string
	// Model sent in the request body, where the shape carries one.
	Model string
	// Build assembles the provider-native request body.
	Build func(systemPrompt string, turns []Turn, question string) any
	// Extract pulls the answer text out of the provider-native response.
	// Returns an error only for undecodable JSON; a decodable response
	// missing the expected path yields NoAnswer.
	Extract func(body []byte) (string, error)
}

// Parse resolves a provider name. Unknown names are an error, not a guess.
func Parse(s string) (Name, error) {
	switch Name(s) {
	case OpenAI, Anthropic, Gemini, Grok, Generic:
		return Name(s), nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// For returns the Config for a provider name.
func For(name Name) Config {
	switch name {
	case OpenAI:
		return Config{
			Name:    OpenAI,
			Path:    "/api/openai",
			Model:   "gpt-3.5-turbo",
			Build:   buildChatCompletions("gpt-3.5-turbo"),
			Extract: extractChatCompletions,
		}
	case Grok:
		return Config{
			Name:    Grok,
			Path:    "/api/grok",
			Model:   "grok-1",
			Build:   buildChatCompletions("grok-1"),
			Extract: extractChatCompletions,
		}
	case Gemini:
		return Config{
			Name:    Gemini,
			Path:    "/api/gemini",
			Build:   buildGemini,
			Extract: extractGemini,
		}
	case Anthropic:
		return Config{
			Name:    Anthropic,
			Path:    "/api/anthropic",
			Model:   "claude-3-opus-20240229",
			Build:   buildAnthropic,
			Extract: extractAnthropic,
		}
	default:
		return Config{
			Name:    Generic,
			Path:    "/api/generic",
			Build:   buildGeneric,
			Extract: extractGeneric,
		}
	}
}
