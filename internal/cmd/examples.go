package cmd

import (
	"math/rand"
	"regexp"

	"github.com/dotcommander/kbagent/internal/present"
)

var examples = map[string]string{
	"Ask the agent a single question":   `kbagent "What is our refund policy?"`,
	"Keep context across questions":     `kbagent --session-id onboarding "Which regions do we support?"`,
	"Search the knowledge base as JSON": `kbagent retrieve --json "rotate access keys" | jq '.[0].content'`,
	"Resync documents and wait":         `kbagent ingest start --wait --timeout 30m`,
}

func randomExample() string {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	desc := keys[rand.Intn(len(keys))] //nolint:gosec
	return desc
}

var (
	quotedRe = regexp.MustCompile(`"([^"\\]|\\.)*"`)
	flagRe   = regexp.MustCompile(`(^|\s)(--?[\w-]+)`)
)

func cheapHighlighting(s present.Styles, code string) string {
	code = quotedRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.InlineCode.Render(x)
	})
	code = flagRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Flag.Render(x)
	})
	return code
}
