// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()

	if v.Topics["машинное обучение"] != "machine learning" {
		t.Errorf("topic dictionary missing RU mapping: %v", v.Topics["машинное обучение"])
	}
	if v.Ordinals["вторая"] != 2 {
		t.Errorf("Ordinals[вторая] = %d, want 2", v.Ordinals["вторая"])
	}
	if len(v.Greetings) == 0 || len(v.SearchWords) == 0 {
		t.Error("default word lists are empty")
	}
	for _, s := range []string{"arxiv", "pubmed", "ieee", "semantic scholar"} {
		found := false
		for _, have := range v.Sources {
			if have == s {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("default sources missing %q", s)
		}
	}
}

func TestLoadVocabularyPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	data := []byte("greetings:\n  - howdy\ntopics:\n  vibe coding: vibe coding\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing vocab file: %v", err)
	}

	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary: %v", err)
	}
	if len(v.Greetings) != 1 || v.Greetings[0] != "howdy" {
		t.Errorf("Greetings = %v, want override", v.Greetings)
	}
	if v.Topics["vibe coding"] != "vibe coding" {
		t.Errorf("Topics = %v, want override", v.Topics)
	}
	// Sections the file omits keep their defaults.
	if len(v.SearchWords) == 0 || v.Ordinals["первая"] != 1 {
		t.Error("omitted sections lost their defaults")
	}
}

func TestLoadVocabularyMissingFile(t *testing.T) {
	if _, err := LoadVocabulary(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
