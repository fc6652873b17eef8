// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Vocabulary holds the phrase lists and dictionaries the deterministic
// fallback paths match against. It is injected configuration rather than
// hardcoded literals so the engine stays testable independent of the
// domain vocabulary; DefaultVocabulary covers the bot's Russian/English
// research-assistant domain.
type Vocabulary struct {
	// Intent keyword lists, matched by substring in fallback order.
	Greetings   []string `yaml:"greetings" json:"greetings"`
	HelpWords   []string `yaml:"help_words" json:"help_words"`
	SearchWords []string `yaml:"search_words" json:"search_words"`
	LibraryWords []string `yaml:"library_words" json:"library_words"`
	SummaryWords []string `yaml:"summary_words" json:"summary_words"`
	CompareWords []string `yaml:"compare_words" json:"compare_words"`
	ExplainWords []string `yaml:"explain_words" json:"explain_words"`
	SaveWords    []string `yaml:"save_words" json:"save_words"`

	// Topics maps known topic phrasings to their normalized form.
	Topics map[string]string `yaml:"topics" json:"topics"`

	// TopicOrder fixes the scan order over Topics: the first phrase found
	// as a substring wins and the scan stops.
	TopicOrder []string `yaml:"topic_order" json:"topic_order"`

	// Sources is the closed source vocabulary (arxiv, pubmed, ...).
	Sources []string `yaml:"sources" json:"sources"`

	// Ordinals decodes article references to 1-based indices.
	Ordinals map[string]int `yaml:"ordinals" json:"ordinals"`
}

// DefaultVocabulary returns the built-in research-assistant vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Greetings:    []string{"привет", "здравствуй", "hello", "hi", "добрый день", "добрый вечер"},
		HelpWords:    []string{"помощь", "help", "что умеешь", "как работать"},
		SearchWords:  []string{"найди", "найти", "поиск", "ищи", "статьи про", "search"},
		LibraryWords: []string{"мои статьи", "библиотека", "сохранённые", "покажи мои"},
		SummaryWords: []string{"резюме", "суммар", "анализ", "summary"},
		CompareWords: []string{"сравни", "сравнить", "compare"},
		ExplainWords: []string{"объясни", "расскажи", "что значит", "что такое"},
		SaveWords:    []string{"сохрани", "добавь", "save"},
		Topics: map[string]string{
			"машинное обучение":               "machine learning",
			"машинного обучения":              "machine learning",
			"machine learning":                "machine learning",
			"deep learning":                   "deep learning",
			"глубокое обучение":               "deep learning",
			"нейронные сети":                  "neural networks",
			"neural networks":                 "neural networks",
			"nlp":                             "nlp",
			"обработка естественного языка":   "nlp",
			"computer vision":                 "computer vision",
			"компьютерное зрение":             "computer vision",
			"трансформеры":                    "transformers",
			"transformers":                    "transformers",
			"bert":                            "bert",
			"gpt":                             "gpt",
			"llm":                             "llm",
		},
		TopicOrder: []string{
			"машинное обучение", "машинного обучения", "machine learning",
			"deep learning", "глубокое обучение",
			"нейронные сети", "neural networks",
			"обработка естественного языка",
			"computer vision", "компьютерное зрение",
			"трансформеры", "transformers",
			"bert", "gpt", "nlp", "llm",
		},
		Sources: []string{"arxiv", "pubmed", "ieee", "semantic scholar"},
		Ordinals: map[string]int{
			"первая": 1, "первую": 1, "первой": 1, "1": 1,
			"вторая": 2, "вторую": 2, "второй": 2, "2": 2,
			"третья": 3, "третью": 3, "третьей": 3, "3": 3,
			"четвёртая": 4, "четвертая": 4, "четвёртую": 4, "4": 4,
			"пятая": 5, "пятую": 5, "пятой": 5, "5": 5,
		},
	}
}

// LoadVocabulary reads a vocabulary YAML file. Fields left empty in the
// file fall back to the defaults, so a deployment can override only the
// topic dictionary.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("reading vocabulary file %s: %w", path, err)
	}

	v := DefaultVocabulary()
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parsing vocabulary file %s: %w", path, err)
	}
	return v, nil
}
