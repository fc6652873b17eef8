// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the full understanding sequence for one incoming
// message: load the user's dialogue context, classify intent and extract
// entities concurrently, enrich the results from context, and shape the
// downstream query parameters. The pipeline never fails a message; every
// stage degrades to a deterministic result.
package pipeline

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/scholar-nlu/internal/dialogue"
	"github.com/pdiddy/scholar-nlu/internal/nlu"
	"github.com/pdiddy/scholar-nlu/pkg/types"
)

// Result is the understanding outcome for one message. QueryParams is
// shaped for the downstream action handler named by ResponseType.
type Result struct {
	Intent       types.IntentResult           `json:"intent"`
	Entities     types.EntityExtractionResult `json:"entities"`
	QueryParams  map[string]any               `json:"query_params"`
	ResponseType string                       `json:"response_type"`
	NeedsCloud   bool                         `json:"needs_cloud"`
}

// responseTypes maps each intent to the handler that renders its reply.
var responseTypes = map[types.Intent]string{
	types.IntentSearch:        "search_results",
	types.IntentSaveArticle:   "confirmation",
	types.IntentDeleteArticle: "confirmation",
	types.IntentListLibrary:   "article_list",
	types.IntentGetSummary:    "summary",
	types.IntentExplain:       "explanation",
	types.IntentCompare:       "comparison",
	types.IntentHelp:          "help_message",
	types.IntentGreeting:      "greeting_message",
	types.IntentChat:          "chat_response",
	types.IntentUnknown:       "clarification",
}

// queryPrefixPatterns strip command boilerplate off a search message when
// no topic entity was extracted, leaving the free-text query.
var queryPrefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:найди|найти|ищи|искать|поищи)\s+(?:стать[июи]\s+)?(?:про\s+|по\s+|о\s+|об\s+)?`),
	regexp.MustCompile(`(?i)^(?:покажи|показать)\s+(?:стать[июи]\s+)?(?:про\s+|по\s+|о\s+)?`),
	regexp.MustCompile(`(?i)^поиск\s+`),
	regexp.MustCompile(`(?i)^(?:search|find)\s+(?:(?:for|articles?|papers?)\s+)*(?:about\s+|on\s+)?`),
}

// articleRefIntents resolve an article mention against the last search
// results before the handler runs.
var articleRefIntents = map[types.Intent]bool{
	types.IntentGetSummary:  true,
	types.IntentExplain:     true,
	types.IntentSaveArticle: true,
}

// Pipeline ties the classifier, the extractor and the dialogue store
// together.
type Pipeline struct {
	classifier *nlu.Classifier
	extractor  *nlu.Extractor
	store      *dialogue.Store
	vocab      types.Vocabulary
	cfg        types.ContextConfig
	log        *zap.Logger
}

func New(classifier *nlu.Classifier, extractor *nlu.Extractor, store *dialogue.Store, vocab types.Vocabulary, cfg types.ContextConfig, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		classifier: classifier,
		extractor:  extractor,
		store:      store,
		vocab:      vocab,
		cfg:        cfg,
		log:        log.Named("pipeline"),
	}
}

// Process runs understanding for one message. Whitespace runs are
// collapsed before classification; the original casing is kept because
// identifiers like DOIs are case-sensitive.
func (p *Pipeline) Process(ctx context.Context, userID int64, text string) (Result, error) {
	text = strings.Join(strings.Fields(text), " ")

	uctx, err := p.store.GetContext(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	var (
		wg        sync.WaitGroup
		intentRes types.IntentResult
		entityRes types.EntityExtractionResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		intentRes = p.classifier.Classify(ctx, text, uctx)
	}()
	go func() {
		defer wg.Done()
		entityRes = p.extractor.Extract(ctx, text, uctx)
	}()
	wg.Wait()

	resolved := p.enrich(intentRes.Intent, &entityRes, uctx)

	res := Result{
		Intent:       intentRes,
		Entities:     entityRes,
		QueryParams:  p.buildQueryParams(text, intentRes.Intent, entityRes, uctx, resolved),
		ResponseType: responseTypes[intentRes.Intent],
		NeedsCloud:   intentRes.Intent.RequiresCloud(),
	}

	p.log.Debug("message processed",
		zap.Int64("user_id", userID),
		zap.String("intent", string(intentRes.Intent)),
		zap.Float64("confidence", intentRes.Confidence),
		zap.Int("entities", len(entityRes.Entities)))
	if !intentRes.IsConfident(0.5) {
		p.log.Info("low-confidence classification",
			zap.Int64("user_id", userID),
			zap.String("intent", string(intentRes.Intent)),
			zap.Float64("confidence", intentRes.Confidence))
	}

	return res, nil
}

// enrich folds dialogue context into the extraction result: a search with
// no topic inherits the sticky topic, and an article mention under a
// summary, explain or save intent is resolved to the referenced article's
// identifier. It returns the resolved article, if any.
func (p *Pipeline) enrich(intent types.Intent, entityRes *types.EntityExtractionResult, uctx *types.UserContext) types.Article {
	if intent == types.IntentSearch && !entityRes.HasType(types.EntityTopic) {
		if topic := p.stickyTopic(uctx); topic != "" {
			e := types.NewEntity(types.EntityTopic, topic, 0.7)
			entityRes.Entities = append(entityRes.Entities, e)
		}
	}

	if !articleRefIntents[intent] {
		return nil
	}
	ref, ok := entityRes.First(types.EntityArticleRef)
	if !ok {
		return nil
	}
	article, ok := uctx.ArticleByReference(ref.NormalizedString(), p.vocab.Ordinals)
	if !ok {
		// Leave the mention unresolved; the handler asks for clarification.
		return nil
	}
	if doi := article.DOI(); doi != "" {
		entityRes.Entities = append(entityRes.Entities, types.NewEntity(types.EntityDOI, doi, 0.95))
	} else if url := article.URL(); url != "" {
		entityRes.Entities = append(entityRes.Entities, types.NewEntity(types.EntityURL, url, 0.95))
	}
	return article
}

// stickyTopic is the current topic, falling back to the most recent topic
// entity inside the context window.
func (p *Pipeline) stickyTopic(uctx *types.UserContext) string {
	if uctx.CurrentTopic != "" {
		return uctx.CurrentTopic
	}
	recent := uctx.RecentEntities(types.EntityTopic, p.cfg.ContextWindow())
	if len(recent) == 0 {
		return ""
	}
	return recent[len(recent)-1].NormalizedString()
}

func (p *Pipeline) buildQueryParams(text string, intent types.Intent, entityRes types.EntityExtractionResult, uctx *types.UserContext, resolved types.Article) map[string]any {
	params := entityRes.SearchParams()
	params["intent"] = string(intent)

	switch intent {
	case types.IntentSearch:
		if _, ok := params["query"]; !ok {
			if q := stripQueryPrefix(text); q != "" {
				params["query"] = q
			} else {
				params["query"] = text
			}
		}
	case types.IntentCompare:
		if len(uctx.CurrentArticles) > 0 {
			params["articles"] = uctx.CurrentArticles
		}
	case types.IntentGetSummary, types.IntentExplain:
		if resolved != nil {
			params["article"] = resolved
		}
	}
	return params
}

// stripQueryPrefix removes command boilerplate from the front of a search
// message. A remainder identical to the input means no prefix matched.
func stripQueryPrefix(text string) string {
	for _, re := range queryPrefixPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			return strings.TrimSpace(text[loc[1]:])
		}
	}
	return strings.TrimSpace(text)
}

// UpdateContext records the outcome of a handled message. The transport
// layer calls this after rendering a reply so the next message sees the
// turn.
func (p *Pipeline) UpdateContext(ctx context.Context, userID int64, message string, res Result, botResponse string, searchResults []types.Article) error {
	return p.store.UpdateContext(ctx, userID, message, res.Intent.Intent, res.Entities.Entities, botResponse, searchResults)
}

// GetContext returns a snapshot of the user's dialogue state.
func (p *Pipeline) GetContext(ctx context.Context, userID int64) (*types.UserContext, error) {
	return p.store.GetContext(ctx, userID)
}

// SetCurrentArticles replaces the user's article snapshot, for callers
// that fetched results outside a processed turn.
func (p *Pipeline) SetCurrentArticles(ctx context.Context, userID int64, articles []types.Article) error {
	return p.store.SetCurrentArticles(ctx, userID, articles)
}

// ClearContext drops the user's dialogue state.
func (p *Pipeline) ClearContext(ctx context.Context, userID int64) error {
	return p.store.ClearContext(ctx, userID)
}

// Close flushes the dialogue store.
func (p *Pipeline) Close(ctx context.Context) error {
	return p.store.Close(ctx)
}
