// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"testing"
	"time"
)

func TestAddTurnTruncatesOldestFirst(t *testing.T) {
	c := NewUserContext(1)
	for i := 0; i < 11; i++ {
		c.AddTurn(ConversationTurn{
			Timestamp:   time.Now(),
			UserMessage: fmt.Sprintf("message %d", i),
		}, 10)
	}
	if len(c.ConversationHistory) != 10 {
		t.Fatalf("history length = %d, want 10", len(c.ConversationHistory))
	}
	if c.ConversationHistory[0].UserMessage != "message 1" {
		t.Errorf("oldest kept = %q, want message 1", c.ConversationHistory[0].UserMessage)
	}
	if c.ConversationHistory[9].UserMessage != "message 10" {
		t.Errorf("newest = %q, want message 10", c.ConversationHistory[9].UserMessage)
	}
}

func TestArticleByReference(t *testing.T) {
	ordinals := DefaultVocabulary().Ordinals
	articles := []Article{{"title": "First"}, {"title": "Second"}, {"title": "Third"}}

	c := NewUserContext(1)
	c.CurrentArticles = articles

	tests := []struct {
		ref   string
		title string
		ok    bool
	}{
		{"вторая", "Second", true},
		{"первая", "First", true},
		{"3", "Third", true},
		{"статья 2", "Second", true},
		{"пятая", "", false},
		{"0", "", false},
		{"nonsense", "", false},
	}
	for _, tt := range tests {
		got, ok := c.ArticleByReference(tt.ref, ordinals)
		if ok != tt.ok {
			t.Errorf("ArticleByReference(%q) ok = %v, want %v", tt.ref, ok, tt.ok)
			continue
		}
		if ok && got.Title() != tt.title {
			t.Errorf("ArticleByReference(%q) = %q, want %q", tt.ref, got.Title(), tt.title)
		}
	}

	empty := NewUserContext(2)
	if _, ok := empty.ArticleByReference("первая", ordinals); ok {
		t.Error("reference into an empty article list should fail")
	}
}

func TestRecentEntitiesWindow(t *testing.T) {
	c := NewUserContext(1)
	old := ConversationTurn{
		Timestamp: time.Now().Add(-48 * time.Hour),
		Entities:  []Entity{NewEntity(EntityTopic, "old topic", 0.9)},
	}
	fresh := ConversationTurn{
		Timestamp: time.Now().Add(-time.Hour),
		Entities:  []Entity{NewEntity(EntityTopic, "fresh topic", 0.9)},
	}
	c.AddTurn(old, 10)
	c.AddTurn(fresh, 10)

	got := c.RecentEntities(EntityTopic, 24*time.Hour)
	if len(got) != 1 || got[0].Value != "fresh topic" {
		t.Errorf("RecentEntities = %v, want only the fresh topic", got)
	}
}

func TestLastSearchResults(t *testing.T) {
	c := NewUserContext(1)
	c.CurrentArticles = []Article{{"title": "Snapshot"}}

	if got := c.LastSearchResults(); len(got) != 1 || got[0].Title() != "Snapshot" {
		t.Errorf("fallback to CurrentArticles failed: %v", got)
	}

	c.AddTurn(ConversationTurn{
		Timestamp:     time.Now(),
		Intent:        IntentSearch,
		SearchResults: []Article{{"title": "From turn"}},
	}, 10)
	c.AddTurn(ConversationTurn{Timestamp: time.Now(), Intent: IntentChat}, 10)

	if got := c.LastSearchResults(); len(got) != 1 || got[0].Title() != "From turn" {
		t.Errorf("newest search turn not preferred: %v", got)
	}
}

func TestClearPreservesIdentity(t *testing.T) {
	c := NewUserContext(7)
	created := c.CreatedAt
	c.UserPreferences["language"] = "ru"
	c.CurrentTopic = "nlp"
	c.CurrentArticles = []Article{{"title": "Paper"}}
	c.AddTurn(ConversationTurn{Timestamp: time.Now(), UserMessage: "hi"}, 10)

	c.Clear()

	if c.UserID != 7 || !c.CreatedAt.Equal(created) {
		t.Error("Clear changed identity or CreatedAt")
	}
	if c.UserPreferences["language"] != "ru" {
		t.Error("Clear dropped preferences")
	}
	if len(c.ConversationHistory) != 0 || c.CurrentTopic != "" || len(c.CurrentArticles) != 0 {
		t.Errorf("Clear left state behind: %+v", c)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewUserContext(1)
	c.CurrentArticles = []Article{{"title": "Paper"}}
	c.UserPreferences["language"] = "ru"
	c.AddTurn(ConversationTurn{Timestamp: time.Now(), UserMessage: "hi"}, 10)

	clone := c.Clone()
	clone.CurrentTopic = "changed"
	clone.CurrentArticles[0]["title"] = "Mutated"
	clone.UserPreferences["language"] = "en"
	clone.AddTurn(ConversationTurn{Timestamp: time.Now(), UserMessage: "more"}, 10)

	if c.CurrentTopic != "" {
		t.Error("clone shares topic")
	}
	if c.CurrentArticles[0]["title"] != "Paper" {
		t.Error("clone shares article maps")
	}
	if c.UserPreferences["language"] != "ru" {
		t.Error("clone shares preferences")
	}
	if len(c.ConversationHistory) != 1 {
		t.Error("clone shares history slice")
	}
}
