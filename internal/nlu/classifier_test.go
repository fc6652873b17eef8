// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package nlu

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pdiddy/scholar-nlu/internal/llm"
	"github.com/pdiddy/scholar-nlu/pkg/types"
)

// --- mock backend ---

type mockBackend struct {
	available bool
	reply     string
	err       error
	lastChat  []llm.ChatMessage
}

func (m *mockBackend) IsAvailable(_ context.Context) bool { return m.available }

func (m *mockBackend) Chat(_ context.Context, messages []llm.ChatMessage, _ float64) (string, error) {
	m.lastChat = messages
	return m.reply, m.err
}

func testClassifier(backend llm.Backend) *Classifier {
	return NewClassifier(backend, types.DefaultVocabulary(), nil)
}

// --- primary path ---

func TestClassifyPrimaryPath(t *testing.T) {
	backend := &mockBackend{
		available: true,
		reply:     `Sure! {"intent": "search", "confidence": 0.92, "reasoning": "search request"}`,
	}
	c := testClassifier(backend)

	result := c.Classify(context.Background(), "найди статьи про llm", nil)
	if result.Intent != types.IntentSearch {
		t.Errorf("intent = %s, want search", result.Intent)
	}
	if result.Confidence != 0.92 {
		t.Errorf("confidence = %f, want 0.92", result.Confidence)
	}
	if result.RawResponse == "" {
		t.Error("raw response not preserved")
	}
}

func TestClassifyInvalidLabelDowngradesToUnknown(t *testing.T) {
	backend := &mockBackend{
		available: true,
		reply:     `{"intent": "order_pizza", "confidence": 0.99}`,
	}
	c := testClassifier(backend)

	result := c.Classify(context.Background(), "что-то", nil)
	if result.Intent != types.IntentUnknown {
		t.Errorf("intent = %s, want unknown", result.Intent)
	}
	if result.Confidence > 0.3 {
		t.Errorf("confidence = %f, want capped at 0.3", result.Confidence)
	}
}

func TestClassifyConfidenceClamped(t *testing.T) {
	backend := &mockBackend{
		available: true,
		reply:     `{"intent": "help", "confidence": 7.5}`,
	}
	c := testClassifier(backend)

	result := c.Classify(context.Background(), "help", nil)
	if result.Confidence != 1.0 {
		t.Errorf("confidence = %f, want clamped to 1.0", result.Confidence)
	}
}

func TestClassifyContextSummaryReachesPrompt(t *testing.T) {
	backend := &mockBackend{
		available: true,
		reply:     `{"intent": "search", "confidence": 0.9}`,
	}
	c := testClassifier(backend)

	uctx := types.NewUserContext(7)
	uctx.CurrentTopic = "neural networks"

	c.Classify(context.Background(), "еще", uctx)
	if len(backend.lastChat) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(backend.lastChat))
	}
	system := backend.lastChat[0].Content
	if !strings.Contains(system, "neural networks") {
		t.Errorf("system prompt missing context summary:\n%s", system)
	}
}

// --- degradation ---

func TestClassifyNeverFails(t *testing.T) {
	tests := []struct {
		name    string
		backend *mockBackend
	}{
		{"unavailable", &mockBackend{available: false}},
		{"chat error", &mockBackend{available: true, err: errors.New("boom")}},
		{"no JSON in reply", &mockBackend{available: true, reply: "I think this is a search."}},
		{"malformed JSON", &mockBackend{available: true, reply: `{"intent": `}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClassifier(tt.backend)
			result := c.Classify(context.Background(), "найди статьи про llm", nil)
			// Fallback must still classify this as a search.
			if result.Intent != types.IntentSearch {
				t.Errorf("intent = %s, want search", result.Intent)
			}
			if result.Confidence != 0.8 {
				t.Errorf("confidence = %f, want 0.8", result.Confidence)
			}
		})
	}
}

func TestClassifyNilBackendUsesFallback(t *testing.T) {
	c := testClassifier(nil)
	result := c.Classify(context.Background(), "привет", nil)
	if result.Intent != types.IntentGreeting {
		t.Errorf("intent = %s, want greeting", result.Intent)
	}
}

// --- fallback rules ---

func TestFallbackClassify(t *testing.T) {
	tests := []struct {
		text       string
		intent     types.Intent
		confidence float64
	}{
		{"привет", types.IntentGreeting, 0.9},
		{"Добрый день!", types.IntentGreeting, 0.9},
		{"помощь", types.IntentHelp, 0.9},
		{"что ты умеешь? помощь нужна", types.IntentHelp, 0.9},
		{"найди статьи про llm", types.IntentSearch, 0.8},
		{"покажи мои статьи", types.IntentListLibrary, 0.8},
		{"сделай резюме второй статьи", types.IntentGetSummary, 0.8},
		{"сравни первую и вторую", types.IntentCompare, 0.8},
		{"объясни что это", types.IntentExplain, 0.7},
		{"сохрани вторую", types.IntentSaveArticle, 0.7},
	}
	c := testClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			result := c.fallbackClassify(tt.text)
			if result.Intent != tt.intent {
				t.Errorf("intent = %s, want %s", result.Intent, tt.intent)
			}
			if result.Confidence != tt.confidence {
				t.Errorf("confidence = %f, want %f", result.Confidence, tt.confidence)
			}
		})
	}
}

func TestFallbackShortMessageDefaultsToSearch(t *testing.T) {
	c := testClassifier(nil)

	result := c.fallbackClassify("квантовые вычисления")
	if result.Intent != types.IntentSearch {
		t.Errorf("intent = %s, want search", result.Intent)
	}
	if result.Confidence != 0.5 {
		t.Errorf("confidence = %f, want 0.5", result.Confidence)
	}
	if len(result.Alternatives) != 1 || result.Alternatives[0].Intent != types.IntentChat || result.Alternatives[0].Score != 0.3 {
		t.Errorf("alternatives = %v, want [(chat, 0.3)]", result.Alternatives)
	}
}

func TestFallbackLongMessageDefaultsToChat(t *testing.T) {
	c := testClassifier(nil)

	result := c.fallbackClassify("мне кажется сегодня отличная погода для прогулки в парке")
	if result.Intent != types.IntentChat {
		t.Errorf("intent = %s, want chat", result.Intent)
	}
	if len(result.Alternatives) != 1 || result.Alternatives[0].Intent != types.IntentSearch || result.Alternatives[0].Score != 0.3 {
		t.Errorf("alternatives = %v, want [(search, 0.3)]", result.Alternatives)
	}
}
