package tools

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/agentoven/studyhall/internal/errs"
)

// stripFence removes one surrounding markdown code fence, with or without
// a language tag, and trims whitespace.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("json", "JSON", ...).
		if info := strings.TrimSpace(s[:nl]); !strings.ContainsAny(info, "{[\"") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeModelJSON parses a model reply into v. Unknown fields are allowed;
// any syntax or type error is InvalidToolOutput.
func decodeModelJSON(content string, v any) error {
	body := stripFence(content)
	if body == "" {
		return errs.New(errs.InvalidToolOutput, "model returned an empty response")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.InvalidToolOutput, err, "model response is not valid JSON for this tool")
	}
	if dec.More() {
		return errs.New(errs.InvalidToolOutput, "model response has trailing data")
	}
	return nil
}

func (p *PracticeQuestions) validate() error {
	if p.Questions == nil {
		return errs.New(errs.InvalidToolOutput, "response must contain a questions array")
	}
	for _, q := range p.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return errs.New(errs.InvalidToolOutput, "each question must have a prompt")
		}
		if strings.TrimSpace(q.Answer) == "" {
			return errs.New(errs.InvalidToolOutput, "each question must have an answer")
		}
	}
	return nil
}

// decodeSummary accepts plain prose; a fenced reply is unwrapped.
func decodeSummary(content string) (*ModuleSummary, error) {
	s := stripFence(content)
	if s == "" {
		return nil, errs.New(errs.InvalidToolOutput, "model returned an empty summary")
	}
	return &ModuleSummary{Summary: s}, nil
}
