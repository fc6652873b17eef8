// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the scholar-nlu engine:
// the intent and entity taxonomies, dialogue context aggregates, vocabulary,
// and per-component configuration.
package types

import "strings"

// Intent is the classified communicative purpose of a user message.
// The set is closed: labels outside it are rejected at parse time.
type Intent string

const (
	IntentSearch        Intent = "search"
	IntentSaveArticle   Intent = "save_article"
	IntentListLibrary   Intent = "list_library"
	IntentGetSummary    Intent = "get_summary"
	IntentExplain       Intent = "explain"
	IntentCompare       Intent = "compare"
	IntentDeleteArticle Intent = "delete_article"
	IntentHelp          Intent = "help"
	IntentGreeting      Intent = "greeting"
	IntentChat          Intent = "chat"
	IntentUnknown       Intent = "unknown"
)

// Intents lists every valid intent label.
var Intents = []Intent{
	IntentSearch,
	IntentSaveArticle,
	IntentListLibrary,
	IntentGetSummary,
	IntentExplain,
	IntentCompare,
	IntentDeleteArticle,
	IntentHelp,
	IntentGreeting,
	IntentChat,
	IntentUnknown,
}

// ParseIntent validates a label against the closed intent set.
// Unknown labels report ok=false; callers downgrade to IntentUnknown
// rather than propagating an error.
func ParseIntent(label string) (Intent, bool) {
	l := Intent(strings.ToLower(strings.TrimSpace(label)))
	for _, in := range Intents {
		if l == in {
			return in, true
		}
	}
	return IntentUnknown, false
}

// cloudIntents marks intents whose fulfilment needs the heavyweight
// cloud model rather than the local one.
var cloudIntents = map[Intent]bool{
	IntentGetSummary: true,
	IntentExplain:    true,
	IntentCompare:    true,
}

// RequiresCloud reports whether fulfilling the intent needs the cloud backend.
func (i Intent) RequiresCloud() bool {
	return cloudIntents[i]
}

// RequiresAction reports whether the intent maps to a concrete bot action,
// as opposed to free-form chat.
func (i Intent) RequiresAction() bool {
	switch i {
	case IntentSearch, IntentSaveArticle, IntentListLibrary, IntentGetSummary,
		IntentExplain, IntentCompare, IntentDeleteArticle, IntentHelp:
		return true
	}
	return false
}

// IntentScore pairs an intent with a classifier score, used for ranked
// alternatives.
type IntentScore struct {
	Intent Intent  `json:"intent"`
	Score  float64 `json:"score"`
}

// IntentResult is the outcome of classifying one message.
type IntentResult struct {
	// Intent is the winning label.
	Intent Intent `json:"intent"`

	// Confidence is the classifier's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Alternatives lists lower-ranked candidates, best first.
	Alternatives []IntentScore `json:"alternatives,omitempty"`

	// RawResponse preserves the backend reply for diagnostics.
	RawResponse string `json:"raw_response,omitempty"`
}

// IsConfident reports whether the classification clears the threshold.
func (r IntentResult) IsConfident(threshold float64) bool {
	return r.Confidence >= threshold
}
