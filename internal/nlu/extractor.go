// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/scholar-nlu/internal/llm"
	"github.com/pdiddy/scholar-nlu/pkg/types"
)

// extractPromptTmpl is the system prompt for entity extraction. The model
// must answer with strict JSON; anything else falls through to the regex
// fallback.
var extractPromptTmpl = template.Must(template.New("extract").Parse(`You are the entity extractor for a scientific research assistant bot. Extract ONLY meaningful entities from the message.

Entity types:
- topic: ONLY the search subject, stripped of command words ("найди статьи по vibe coding" -> topic "vibe coding")
- author: an article author ("Hinton", "Иванов")
- year: publication year ("2023")
- source: a paper source (arxiv, pubmed, ieee)
- doi: a DOI identifier ("10.1000/xyz")
- arxiv_id: an arXiv identifier ("2401.12345")
- url: a link to an article
- article_ref: a reference into the current result list ("первая", "статья 2")
- count: a requested number of results ("5 статей")
{{if .ArticleCount}}
There are {{.ArticleCount}} articles in context; the user may reference them by number.
{{end}}
Respond with ONLY a JSON object:
{"entities": [{"type": "label", "value": "text", "confidence": 0.0-1.0}]}

If there are no entities, respond: {"entities": []}`))

// Fallback extraction patterns. Year phrase variants and identifier
// formats follow the source services this engine feeds (arXiv, DOI, URL).
var (
	yearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(19|20)\d{2}\b`),
		regexp.MustCompile(`за (\d{4}) год`),
		regexp.MustCompile(`в (\d{4}) году`),
	}
	doiPattern   = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)
	arxivPattern = regexp.MustCompile(`\b\d{4}\.\d{4,5}\b`)
	urlPattern   = regexp.MustCompile(`https?://\S+`)

	articleRefPatterns = []struct {
		re         *regexp.Regexp
		normalized string
	}{
		// \w does not cover Cyrillic, hence the explicit classes.
		{regexp.MustCompile(`перв[а-яё]+\s+стать`), "первая"},
		{regexp.MustCompile(`втор[а-яё]+\s+стать`), "вторая"},
		{regexp.MustCompile(`треть[а-яё]+\s+стать`), "третья"},
		{regexp.MustCompile(`четв[её]рт[а-яё]+\s+стать`), "четвертая"},
		{regexp.MustCompile(`пят[а-яё]+\s+стать`), "пятая"},
		{regexp.MustCompile(`стать[яюией]*\s*(\d+)`), ""},
		{regexp.MustCompile(`номер\s*(\d+)`), ""},
	}

	// topicStripPatterns remove command phrasings around a topic when the
	// dictionary lookup finds nothing. Ordered; first match wins.
	topicStripPatterns = []*regexp.Regexp{
		regexp.MustCompile(`статьи?\s+по\s+(.+?)(?:\s+за\s+\d.*|\s+от\s+автора.*|\s+в\s+\d.*|$)`),
		regexp.MustCompile(`(?:найди|найти|поищи|искать|ищи)\s+(?:статьи?\s+)?по\s+(.+?)(?:\s+за\s+\d.*|\s+от.*|$)`),
		regexp.MustCompile(`(?:^|\s)по\s+(?:теме\s+)?(.+?)(?:\s+за\s+\d.*|\s+в\s+\d.*|\s+от.*|$)`),
		regexp.MustCompile(`(?:статьи?\s+)?про\s+(.+?)(?:\s+за\s+\d.*|\s+в\s+\d.*|\s+от\s+автора.*|$)`),
		regexp.MustCompile(`на\s+тему\s+(.+?)(?:\s+за\s+\d.*|\s+в\s+\d.*|$)`),
		regexp.MustCompile(`поиск\s+(.+?)(?:\s+за\s+\d.*|\s+в\s+\d.*|$)`),
	}
	topicTrailerPattern = regexp.MustCompile(`\s+(статьи?|статей)\s*$`)
)

// Extractor pulls typed entities out of a message. The zero backend (nil)
// routes every call straight to the regex fallback.
type Extractor struct {
	backend llm.Backend
	vocab   types.Vocabulary
	log     *zap.Logger

	topicOrder []string
}

// NewExtractor builds an extractor. A nil logger disables logging.
func NewExtractor(backend llm.Backend, vocab types.Vocabulary, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		backend:    backend,
		vocab:      vocab,
		log:        log.Named("entities"),
		topicOrder: topicScanOrder(vocab),
	}
}

// topicScanOrder fixes a deterministic scan order over the topic
// dictionary: the configured order first, then any remaining keys sorted.
func topicScanOrder(vocab types.Vocabulary) []string {
	seen := make(map[string]bool, len(vocab.TopicOrder))
	var order []string
	for _, k := range vocab.TopicOrder {
		if _, ok := vocab.Topics[k]; ok && !seen[k] {
			order = append(order, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range vocab.Topics {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Extract pulls entities from the message. It never fails: backend
// unavailability, transport errors and unparsable replies all degrade to
// the regex fallback.
func (e *Extractor) Extract(ctx context.Context, text string, uctx *types.UserContext) types.EntityExtractionResult {
	if e.backend == nil || !e.backend.IsAvailable(ctx) {
		e.log.Debug("backend unavailable, using fallback")
		return e.fallbackExtract(text)
	}

	prompt, err := renderExtractPrompt(uctx)
	if err != nil {
		e.log.Warn("rendering extraction prompt failed", zap.Error(err))
		return e.fallbackExtract(text)
	}

	reply, err := e.backend.Chat(ctx, []llm.ChatMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: "Text: " + text},
	}, 0.1)
	if err != nil {
		e.log.Warn("extraction chat call failed", zap.Error(err))
		return e.fallbackExtract(text)
	}

	result, ok := e.parseExtractReply(reply, text)
	if !ok {
		e.log.Warn("unparsable extraction reply", zap.String("reply", truncateForLog(reply)))
		result = e.fallbackExtract(text)
		result.RawResponse = reply
	}
	return result
}

func renderExtractPrompt(uctx *types.UserContext) (string, error) {
	count := 0
	if uctx != nil {
		count = len(uctx.CurrentArticles)
	}
	var buf bytes.Buffer
	err := extractPromptTmpl.Execute(&buf, struct{ ArticleCount int }{ArticleCount: count})
	return buf.String(), err
}

// parseExtractReply reads the strict-JSON entity list from the reply.
// Entities with an off-enum type label are dropped, not fatal.
func (e *Extractor) parseExtractReply(reply, text string) (types.EntityExtractionResult, bool) {
	obj, ok := firstJSONObject(reply)
	if !ok {
		return types.EntityExtractionResult{}, false
	}

	var payload struct {
		Entities []struct {
			Type       string  `json:"type"`
			Value      string  `json:"value"`
			Confidence float64 `json:"confidence"`
		} `json:"entities"`
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return types.EntityExtractionResult{}, false
	}

	var entities []types.Entity
	for _, raw := range payload.Entities {
		t, valid := types.ParseEntityType(raw.Type)
		if !valid {
			e.log.Debug("dropping entity with unknown type", zap.String("type", raw.Type))
			continue
		}
		confidence := raw.Confidence
		if confidence == 0 {
			confidence = 0.8
		}
		entities = append(entities, types.NewEntity(t, raw.Value, clamp01(confidence)))
	}

	return types.EntityExtractionResult{
		Entities:    dedupe(entities),
		RawText:     text,
		RawResponse: reply,
	}, true
}

// fallbackExtract runs the ordered deterministic passes: independent regex
// sweeps for years and identifiers, article references, source vocabulary
// membership, then topic resolution.
func (e *Extractor) fallbackExtract(text string) types.EntityExtractionResult {
	lower := strings.ToLower(text)
	var entities []types.Entity

	add := func(t types.EntityType, value string, confidence float64, start int) {
		ent := types.NewEntity(t, value, confidence)
		ent.Start = start
		entities = append(entities, ent)
	}

	for _, p := range yearPatterns {
		for _, m := range p.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			// Prefer the capture group when the pattern has one that spans
			// the full year (the phrase variants).
			if len(m) >= 4 && m[3]-m[2] == 4 {
				start, end = m[2], m[3]
			}
			add(types.EntityYear, text[start:end], 0.9, start)
		}
	}

	for _, m := range doiPattern.FindAllStringIndex(text, -1) {
		add(types.EntityDOI, text[m[0]:m[1]], 0.95, m[0])
	}
	for _, m := range arxivPattern.FindAllStringIndex(text, -1) {
		add(types.EntityArxivID, text[m[0]:m[1]], 0.95, m[0])
	}
	for _, m := range urlPattern.FindAllStringIndex(text, -1) {
		add(types.EntityURL, text[m[0]:m[1]], 0.95, m[0])
	}

	for _, p := range articleRefPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(lower, -1) {
			value := p.normalized
			if value == "" && len(m) >= 4 {
				value = lower[m[2]:m[3]]
			}
			if value != "" {
				add(types.EntityArticleRef, value, 0.8, m[0])
			}
		}
	}

	for _, source := range e.vocab.Sources {
		if idx := strings.Index(lower, source); idx >= 0 {
			add(types.EntitySource, source, 0.9, idx)
		}
	}

	if topic, ok := e.resolveTopic(lower); ok {
		entities = append(entities, topic)
	}

	return types.EntityExtractionResult{
		Entities: dedupe(entities),
		RawText:  text,
	}
}

// resolveTopic looks the lower-cased text up in the topic dictionary
// (first hit in scan order wins), then falls back to stripping command
// phrasings. The stripped remainder is kept only when its length lands
// in [3, 100).
func (e *Extractor) resolveTopic(lower string) (types.Entity, bool) {
	for _, phrase := range e.topicOrder {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			ent := types.NewEntity(types.EntityTopic, phrase, 0.85)
			ent.Normalized = e.vocab.Topics[phrase]
			ent.Start = idx
			return ent, true
		}
	}

	for _, p := range topicStripPatterns {
		m := p.FindStringSubmatchIndex(lower)
		if m == nil {
			continue
		}
		topic := strings.TrimSpace(lower[m[2]:m[3]])
		topic = strings.TrimSpace(topicTrailerPattern.ReplaceAllString(topic, ""))
		if len(topic) >= 3 && len(topic) < 100 {
			ent := types.NewEntity(types.EntityTopic, topic, 0.7)
			ent.Start = m[2]
			return ent, true
		}
	}
	return types.Entity{}, false
}

// dedupe drops exact (type, normalized value) duplicates and orders
// entities by start position. Redundant matches are expected: the fallback
// passes run independently.
func dedupe(entities []types.Entity) []types.Entity {
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Start < entities[j].Start
	})

	seen := make(map[string]bool, len(entities))
	out := entities[:0]
	for _, e := range entities {
		key := fmt.Sprintf("%s|%v", e.Type, e.Normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
