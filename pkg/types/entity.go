// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

// EntityType classifies an extracted span. The set is closed; spans with
// labels outside it are dropped during parsing, never surfaced as errors.
type EntityType string

const (
	EntityTopic         EntityType = "topic"
	EntityAuthor        EntityType = "author"
	EntityYear          EntityType = "year"
	EntityYearRange     EntityType = "year_range"
	EntityJournal       EntityType = "journal"
	EntityKeyword       EntityType = "keyword"
	EntityURL           EntityType = "url"
	EntityDOI           EntityType = "doi"
	EntityArxivID       EntityType = "arxiv_id"
	EntityPubmedID      EntityType = "pubmed_id"
	EntityIEEEID        EntityType = "ieee_id"
	EntityArticleRef    EntityType = "article_ref"
	EntityCitationCount EntityType = "citation_count"
	EntitySource        EntityType = "source"
	EntityCount         EntityType = "count"
)

// EntityTypes lists every valid entity type label.
var EntityTypes = []EntityType{
	EntityTopic, EntityAuthor, EntityYear, EntityYearRange, EntityJournal,
	EntityKeyword, EntityURL, EntityDOI, EntityArxivID, EntityPubmedID,
	EntityIEEEID, EntityArticleRef, EntityCitationCount, EntitySource,
	EntityCount,
}

// ParseEntityType validates a label against the closed entity type set.
func ParseEntityType(label string) (EntityType, bool) {
	for _, et := range EntityTypes {
		if EntityType(label) == et {
			return et, true
		}
	}
	return "", false
}

// intEntityTypes normalize their value to an int.
var intEntityTypes = map[EntityType]bool{
	EntityYear:          true,
	EntityCount:         true,
	EntityCitationCount: true,
	EntityPubmedID:      true,
	EntityIEEEID:        true,
}

// Entity is a typed span extracted from a message.
type Entity struct {
	// Type classifies the span.
	Type EntityType `json:"type"`

	// Value is the raw text as it appeared in the message.
	Value string `json:"value"`

	// Confidence is the extractor's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Normalized is the type-dependent canonical value: int for years and
	// counts, lower-cased string for topics, DOIs and sources, title-cased
	// string for authors. Nil when the raw value cannot be normalized.
	Normalized any `json:"normalized_value"`

	// Start is the span's byte offset in the source text, used to order
	// entities from the fallback extractor. Not persisted.
	Start int `json:"-"`
}

// NewEntity builds an entity and derives its normalized value.
func NewEntity(t EntityType, value string, confidence float64) Entity {
	e := Entity{Type: t, Value: value, Confidence: confidence}
	e.Normalized = normalizeEntityValue(t, value)
	return e
}

// NormalizedString returns the normalized value when it is a string,
// falling back to the raw value.
func (e Entity) NormalizedString() string {
	if s, ok := e.Normalized.(string); ok && s != "" {
		return s
	}
	return e.Value
}

// NormalizedInt returns the normalized value as an int.
func (e Entity) NormalizedInt() (int, bool) {
	n, ok := e.Normalized.(int)
	return n, ok
}

// UnmarshalJSON restores the int representation for numeric entity types:
// encoding/json decodes all numbers as float64, which would break the
// persisted-context round trip.
func (e *Entity) UnmarshalJSON(data []byte) error {
	type alias Entity
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Entity(a)
	if f, ok := e.Normalized.(float64); ok && intEntityTypes[e.Type] {
		e.Normalized = int(f)
	}
	if e.Normalized == nil {
		e.Normalized = normalizeEntityValue(e.Type, e.Value)
	}
	return nil
}

func normalizeEntityValue(t EntityType, value string) any {
	v := strings.TrimSpace(value)
	switch {
	case intEntityTypes[t]:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		return n
	case t == EntityTopic, t == EntityDOI, t == EntitySource:
		return strings.ToLower(v)
	case t == EntityAuthor:
		return titleCase(v)
	}
	return v
}

// titleCase upper-cases the first letter of each space-separated word.
// strings.Title is deprecated and Unicode-aware casing is not needed for
// author names coming out of this domain.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// EntityExtractionResult is the outcome of extracting entities from one
// message.
type EntityExtractionResult struct {
	Entities []Entity `json:"entities"`

	// RawText is the message the entities were extracted from.
	RawText string `json:"raw_text"`

	// RawResponse preserves the backend reply for diagnostics.
	RawResponse string `json:"raw_response,omitempty"`
}

// ByType returns all entities of the given type in extraction order.
func (r EntityExtractionResult) ByType(t EntityType) []Entity {
	var out []Entity
	for _, e := range r.Entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// First returns the first entity of the given type.
func (r EntityExtractionResult) First(t EntityType) (Entity, bool) {
	for _, e := range r.Entities {
		if e.Type == t {
			return e, true
		}
	}
	return Entity{}, false
}

// HasType reports whether any entity of the given type was extracted.
func (r EntityExtractionResult) HasType(t EntityType) bool {
	_, ok := r.First(t)
	return ok
}

// SearchParams maps the extracted entities onto search query parameters:
// topic becomes the query string, and author, year, source and article
// identifiers carry over under their own keys.
func (r EntityExtractionResult) SearchParams() map[string]any {
	params := make(map[string]any)

	if topic, ok := r.First(EntityTopic); ok {
		params["query"] = topic.NormalizedString()
	}
	if author, ok := r.First(EntityAuthor); ok {
		params["author"] = author.NormalizedString()
	}
	if year, ok := r.First(EntityYear); ok {
		if n, ok := year.NormalizedInt(); ok {
			params["year"] = n
		} else {
			params["year"] = year.Value
		}
	}
	if source, ok := r.First(EntitySource); ok {
		params["source"] = source.NormalizedString()
	}
	for _, t := range []EntityType{EntityDOI, EntityArxivID, EntityPubmedID, EntityURL} {
		if e, ok := r.First(t); ok {
			params[string(t)] = e.NormalizedString()
		}
	}
	return params
}
