// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package nlu implements the conversational understanding components: an
// intent classifier and an entity extractor. Both run a model-backed
// primary path and degrade to a deterministic fallback whenever the
// backend is unavailable or its reply cannot be parsed, so they never
// fail a call.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/scholar-nlu/internal/llm"
	"github.com/pdiddy/scholar-nlu/pkg/types"
)

// classifyPromptTmpl is the system prompt for intent classification. It
// enumerates the closed intent set so the model cannot invent labels;
// labels outside the set are still rejected during parsing.
var classifyPromptTmpl = template.Must(template.New("classify").Parse(`You are the intent classifier for a scientific research assistant bot. Users write in Russian or English.

Classify the user's message as exactly one intent:
- search: find articles or information ("найди статьи про...", "что есть по теме...")
- save_article: save an article to the library ("сохрани", "добавь в библиотеку")
- list_library: show saved articles ("мои статьи", "покажи библиотеку")
- get_summary: summarize an article ("сделай резюме", "проанализируй статью")
- explain: explain something about an article ("объясни", "что значит")
- compare: compare articles ("сравни", "чем отличаются")
- delete_article: remove an article from the library ("удали", "убери из библиотеки")
- help: ask for help ("помощь", "что ты умеешь")
- greeting: a greeting ("привет", "здравствуй")
- chat: ordinary conversation requiring no action
- unknown: cannot be determined
{{if .Context}}
Conversation context:
{{.Context}}
{{end}}
Respond with ONLY a JSON object:
{"intent": "label", "confidence": 0.0-1.0, "reasoning": "one short sentence"}`))

// Classifier labels a message with one of the closed intents. The zero
// backend (nil) routes every call straight to the fallback.
type Classifier struct {
	backend llm.Backend
	vocab   types.Vocabulary
	log     *zap.Logger
}

// NewClassifier builds a classifier. A nil logger disables logging.
func NewClassifier(backend llm.Backend, vocab types.Vocabulary, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{backend: backend, vocab: vocab, log: log.Named("intent")}
}

// Classify labels the message. It never fails: backend unavailability,
// transport errors and unparsable replies all degrade to the keyword
// fallback, which always produces a result.
func (c *Classifier) Classify(ctx context.Context, text string, uctx *types.UserContext) types.IntentResult {
	if c.backend == nil || !c.backend.IsAvailable(ctx) {
		c.log.Debug("backend unavailable, using fallback")
		return c.fallbackClassify(text)
	}

	prompt, err := renderClassifyPrompt(uctx)
	if err != nil {
		c.log.Warn("rendering classification prompt failed", zap.Error(err))
		return c.fallbackClassify(text)
	}

	reply, err := c.backend.Chat(ctx, []llm.ChatMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: "User message: " + text},
	}, 0.1)
	if err != nil {
		c.log.Warn("classification chat call failed", zap.Error(err))
		return c.fallbackClassify(text)
	}

	result, ok := parseIntentReply(reply)
	if !ok {
		c.log.Warn("unparsable classification reply", zap.String("reply", truncateForLog(reply)))
		result = c.fallbackClassify(text)
		result.RawResponse = reply
	}
	return result
}

func renderClassifyPrompt(uctx *types.UserContext) (string, error) {
	summary := ""
	if uctx != nil && (uctx.CurrentTopic != "" || len(uctx.CurrentArticles) > 0 || len(uctx.ConversationHistory) > 0) {
		summary = uctx.ConversationSummary(2)
	}
	var buf bytes.Buffer
	err := classifyPromptTmpl.Execute(&buf, struct{ Context string }{Context: summary})
	return buf.String(), err
}

// parseIntentReply extracts the first balanced JSON object from the reply
// and validates the label against the closed intent set. An off-enum label
// downgrades to unknown with confidence capped at 0.3.
func parseIntentReply(reply string) (types.IntentResult, bool) {
	obj, ok := firstJSONObject(reply)
	if !ok {
		return types.IntentResult{}, false
	}

	var payload struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return types.IntentResult{}, false
	}

	confidence := clamp01(payload.Confidence)
	intent, valid := types.ParseIntent(payload.Intent)
	if !valid {
		intent = types.IntentUnknown
		if confidence > 0.3 {
			confidence = 0.3
		}
	}

	return types.IntentResult{
		Intent:      intent,
		Confidence:  confidence,
		RawResponse: reply,
	}, true
}

// fallbackRules fixes the keyword-test order and per-intent confidence
// for the deterministic path. First match wins.
type fallbackRule struct {
	intent     types.Intent
	confidence float64
	words      func(v types.Vocabulary) []string
}

var fallbackRules = []fallbackRule{
	{types.IntentGreeting, 0.9, func(v types.Vocabulary) []string { return v.Greetings }},
	{types.IntentHelp, 0.9, func(v types.Vocabulary) []string { return v.HelpWords }},
	{types.IntentSearch, 0.8, func(v types.Vocabulary) []string { return v.SearchWords }},
	{types.IntentListLibrary, 0.8, func(v types.Vocabulary) []string { return v.LibraryWords }},
	{types.IntentGetSummary, 0.8, func(v types.Vocabulary) []string { return v.SummaryWords }},
	{types.IntentCompare, 0.8, func(v types.Vocabulary) []string { return v.CompareWords }},
	{types.IntentExplain, 0.7, func(v types.Vocabulary) []string { return v.ExplainWords }},
	{types.IntentSaveArticle, 0.7, func(v types.Vocabulary) []string { return v.SaveWords }},
}

// fallbackClassify runs ordered keyword-membership tests against the
// vocabulary. Unmatched short messages default to search: in this domain
// a few bare words are overwhelmingly a search continuation.
func (c *Classifier) fallbackClassify(text string) types.IntentResult {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, rule := range fallbackRules {
		for _, w := range rule.words(c.vocab) {
			if strings.Contains(lower, w) {
				return types.IntentResult{Intent: rule.intent, Confidence: rule.confidence}
			}
		}
	}

	if len(strings.Fields(text)) <= 3 {
		return types.IntentResult{
			Intent:       types.IntentSearch,
			Confidence:   0.5,
			Alternatives: []types.IntentScore{{Intent: types.IntentChat, Score: 0.3}},
		}
	}
	return types.IntentResult{
		Intent:       types.IntentChat,
		Confidence:   0.5,
		Alternatives: []types.IntentScore{{Intent: types.IntentSearch, Score: 0.3}},
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
