package provider

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	for _, s := range []string{"openai", "anthropic", "gemini", "grok", "generic"} {
		if _, err := Parse(s); err != nil {
			t.Errorf("Parse(%q): %v", s, err)
		}
	}
	// Exact match only: substring lookalikes must not resolve.
	for _, s := range []string{"grokster", "openai2", "OPENAI", ""} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) accepted", s)
		}
	}
}

func TestBuildChatCompletions(t *testing.T) {
	cfg := For(OpenAI)
	body := cfg.Build("SYS", []Turn{{Role: "user", Content: "q1"}, {Role: "bot", Content: "a1"}}, "q2")
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	var req struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatal(err)
	}
	if req.Model != "gpt-3.5-turbo" || req.MaxTokens != 512 || req.Temperature != 0.2 {
		t.Errorf("request fields: %+v", req)
	}
	roles := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		roles[i] = m.Role
	}
	want := "system user assistant user"
	if got := strings.Join(roles, " "); got != want {
		t.Errorf("roles = %q, want %q", got, want)
	}
	if req.Messages[0].Content != "SYS" || req.Messages[3].Content != "q2" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestBuildGemini(t *testing.T) {
	cfg := For(Gemini)
	raw, _ := json.Marshal(cfg.Build("SYS", []Turn{{Role: "bot", Content: "a1"}}, "q"))
	var req struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig struct {
			Temperature     float64 `json:"temperature"`
			MaxOutputTokens int     `json:"maxOutputTokens"`
		} `json:"generationConfig"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatal(err)
	}
	if len(req.Contents) != 2 {
		t.Fatalf("contents = %+v", req.Contents)
	}
	if req.Contents[0].Role != "model" {
		t.Errorf("bot turn role = %q, want model", req.Contents[0].Role)
	}
	last := req.Contents[1]
	if last.Role != "user" || !strings.HasPrefix(last.Parts[0].Text, "SYS\n\n") || !strings.HasSuffix(last.Parts[0].Text, "q") {
		t.Errorf("final turn = %+v", last)
	}
	if req.GenerationConfig.MaxOutputTokens != 512 || req.GenerationConfig.Temperature != 0.2 {
		t.Errorf("generationConfig = %+v", req.GenerationConfig)
	}
}

func TestBuildAnthropic_SystemAsFirstUserTurn(t *testing.T) {
	cfg := For(Anthropic)
	raw, _ := json.Marshal(cfg.Build("SYS", []Turn{{Role: "user", Content: "q1"}, {Role: "bot", Content: "a1"}}, "q2"))
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatal(err)
	}
	if req.Messages[0].Role != "user" || req.Messages[0].Content != "SYS" {
		t.Errorf("first message = %+v", req.Messages[0])
	}
	if req.Messages[2].Role != "assistant" {
		t.Errorf("bot turn role = %q", req.Messages[2].Role)
	}
}

func TestExtract_HappyPaths(t *testing.T) {
	cases := []struct {
		name Name
		body string
		want string
	}{
		{OpenAI, `{"choices":[{"message":{"content":"  hi  "}}]}`, "hi"},
		{Grok, `{"choices":[{"message":{"content":"yo"}}]}`, "yo"},
		{Gemini, `{"candidates":[{"content":{"parts":[{"text":"ga"}]}}]}`, "ga"},
		{Anthropic, `{"content":[{"type":"text","text":"ca"}]}`, "ca"},
		{Generic, `{"answer":"aa"}`, "aa"},
		{Generic, `{"result":"rr"}`, "rr"},
	}
	for _, c := range cases {
		got, err := For(c.name).Extract([]byte(c.body))
		if err != nil || got != c.want {
			t.Errorf("%s: got (%q, %v), want %q", c.name, got, err, c.want)
		}
	}
}

func TestExtract_MissingPathYieldsNoAnswer(t *testing.T) {
	cases := []struct {
		name Name
		body string
	}{
		{OpenAI, `{}`},
		{OpenAI, `{"choices":[]}`},
		{OpenAI, `{"choices":[{"message":{}}]}`},
		{Gemini, `{"candidates":[{"content":{"parts":[]}}]}`},
		{Anthropic, `{"content":[]}`},
		{Generic, `{}`},
	}
	for _, c := range cases {
		got, err := For(c.name).Extract([]byte(c.body))
		if err != nil {
			t.Errorf("%s %s: unexpected error %v", c.name, c.body, err)
			continue
		}
		if got != NoAnswer {
			t.Errorf("%s %s: got %q, want %q", c.name, c.body, got, NoAnswer)
		}
	}
}

func TestExtract_UndecodableBodyIsError(t *testing.T) {
	if _, err := For(OpenAI).Extract([]byte("<html>gateway timeout</html>")); err == nil {
		t.Error("non-JSON body accepted")
	}
}
