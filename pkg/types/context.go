// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Article is an opaque search-result record carried through the dialogue
// context. The engine never interprets it beyond the identifier accessors
// below; the shape belongs to the paper-source adapters.
type Article map[string]any

func (a Article) stringField(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// DOI returns the record's DOI, if present.
func (a Article) DOI() string { return a.stringField("doi") }

// URL returns the record's URL, if present.
func (a Article) URL() string { return a.stringField("url") }

// Title returns the record's title, if present.
func (a Article) Title() string { return a.stringField("title") }

// ConversationTurn is one user-message/bot-response pair. Turns are
// immutable once appended to a context.
type ConversationTurn struct {
	Timestamp     time.Time `json:"timestamp"`
	UserMessage   string    `json:"user_message"`
	Intent        Intent    `json:"intent"`
	Entities      []Entity  `json:"entities"`
	BotResponse   string    `json:"bot_response,omitempty"`
	SearchResults []Article `json:"search_results,omitempty"`
}

// HasEntity reports whether the turn carries an entity of the given type.
func (t ConversationTurn) HasEntity(et EntityType) bool {
	for _, e := range t.Entities {
		if e.Type == et {
			return true
		}
	}
	return false
}

// UserContext is the per-user mutable dialogue state: bounded turn history,
// the sticky topic, and the last search-result snapshot. One aggregate per
// user_id; mutations go through the dialogue store, which refreshes
// UpdatedAt on every change.
type UserContext struct {
	UserID              int64          `json:"user_id"`
	ConversationHistory []ConversationTurn `json:"conversation_history"`
	CurrentTopic        string         `json:"current_topic,omitempty"`
	CurrentArticles     []Article      `json:"current_articles"`
	UserPreferences     map[string]any `json:"user_preferences"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// NewUserContext builds an empty context for a user.
func NewUserContext(userID int64) *UserContext {
	now := time.Now()
	return &UserContext{
		UserID:          userID,
		UserPreferences: make(map[string]any),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// AddTurn appends a turn and truncates the history to the most recent
// maxHistory turns, oldest dropped first.
func (c *UserContext) AddTurn(turn ConversationTurn, maxHistory int) {
	c.ConversationHistory = append(c.ConversationHistory, turn)
	if maxHistory > 0 && len(c.ConversationHistory) > maxHistory {
		c.ConversationHistory = c.ConversationHistory[len(c.ConversationHistory)-maxHistory:]
	}
	c.UpdatedAt = time.Now()
}

// RecentTurns returns the most recent n turns, newest last.
func (c *UserContext) RecentTurns(n int) []ConversationTurn {
	if n <= 0 || n >= len(c.ConversationHistory) {
		return c.ConversationHistory
	}
	return c.ConversationHistory[len(c.ConversationHistory)-n:]
}

// RecentEntities returns entities of the given type from turns within the
// window, oldest first.
func (c *UserContext) RecentEntities(t EntityType, window time.Duration) []Entity {
	cutoff := time.Now().Add(-window)
	var out []Entity
	for _, turn := range c.ConversationHistory {
		if turn.Timestamp.Before(cutoff) {
			continue
		}
		for _, e := range turn.Entities {
			if e.Type == t {
				out = append(out, e)
			}
		}
	}
	return out
}

// LastSearchResults returns the most recent search-result snapshot: the
// newest SEARCH turn carrying results, falling back to CurrentArticles.
func (c *UserContext) LastSearchResults() []Article {
	for i := len(c.ConversationHistory) - 1; i >= 0; i-- {
		turn := c.ConversationHistory[i]
		if turn.Intent == IntentSearch && len(turn.SearchResults) > 0 {
			return turn.SearchResults
		}
	}
	return c.CurrentArticles
}

var refDigits = regexp.MustCompile(`\d+`)

// ArticleByReference resolves an ordinal or numeric mention ("вторая", "2",
// "статья 3") against the last search-result snapshot. The ordinals map
// comes from the vocabulary. Unknown references and out-of-range indices
// resolve to nothing; the caller treats that as "article not found".
func (c *UserContext) ArticleByReference(ref string, ordinals map[string]int) (Article, bool) {
	articles := c.LastSearchResults()
	if len(articles) == 0 {
		return nil, false
	}

	key := strings.ToLower(strings.TrimSpace(ref))
	index, ok := ordinals[key]
	if !ok {
		m := refDigits.FindString(key)
		if m == "" {
			return nil, false
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, false
		}
		index = n
	}

	if index < 1 || index > len(articles) {
		return nil, false
	}
	return articles[index-1], true
}

// ConversationSummary renders a short description of the context for
// inclusion in a classification prompt: sticky topic, in-context article
// count, and the tail of the transcript.
func (c *UserContext) ConversationSummary(maxTurns int) string {
	var lines []string

	if c.CurrentTopic != "" {
		lines = append(lines, fmt.Sprintf("Current topic: %s", c.CurrentTopic))
	}
	if len(c.CurrentArticles) > 0 {
		lines = append(lines, fmt.Sprintf("%d articles from the last search are in context", len(c.CurrentArticles)))
	}

	recent := c.RecentTurns(maxTurns)
	if len(recent) > 0 {
		lines = append(lines, "Recent messages:")
		for _, turn := range recent {
			lines = append(lines, "  User: "+truncate(turn.UserMessage, 100))
			if turn.BotResponse != "" {
				lines = append(lines, "  Bot: "+truncate(turn.BotResponse, 100))
			}
		}
	}

	if len(lines) == 0 {
		return "New conversation"
	}
	return strings.Join(lines, "\n")
}

// Clear resets history, topic and articles but preserves the user's
// identity, preferences and CreatedAt.
func (c *UserContext) Clear() {
	c.ConversationHistory = nil
	c.CurrentTopic = ""
	c.CurrentArticles = nil
	c.UpdatedAt = time.Now()
}

// Clone returns a deep copy. The dialogue store hands clones to callers so
// that cached state is only ever mutated through store operations.
func (c *UserContext) Clone() *UserContext {
	cp := *c
	cp.ConversationHistory = make([]ConversationTurn, len(c.ConversationHistory))
	copy(cp.ConversationHistory, c.ConversationHistory)
	cp.CurrentArticles = make([]Article, len(c.CurrentArticles))
	for i, a := range c.CurrentArticles {
		dup := make(Article, len(a))
		for k, v := range a {
			dup[k] = v
		}
		cp.CurrentArticles[i] = dup
	}
	cp.UserPreferences = make(map[string]any, len(c.UserPreferences))
	for k, v := range c.UserPreferences {
		cp.UserPreferences[k] = v
	}
	return &cp
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
