// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package nlu

import "testing"

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare object", `{"intent": "search"}`, `{"intent": "search"}`, true},
		{"prose around", `Sure! {"intent": "chat"} Hope that helps.`, `{"intent": "chat"}`, true},
		{"nested object", `{"entities": [{"type": "year", "value": "2024"}]}`, `{"entities": [{"type": "year", "value": "2024"}]}`, true},
		{"braces inside string", `{"reasoning": "matches {pattern}"}`, `{"reasoning": "matches {pattern}"}`, true},
		{"escaped quote in string", `{"value": "say \"hi\""}`, `{"value": "say \"hi\""}`, true},
		{"first of two objects", `{"a": 1} {"b": 2}`, `{"a": 1}`, true},
		{"code fence", "```json\n{\"intent\": \"help\"}\n```", `{"intent": "help"}`, true},
		{"no object", "there is no json here", "", false},
		{"unbalanced", `{"intent": "search"`, "", false},
		{"stray closing brace before object", `} {"a": 1}`, `{"a": 1}`, true},
		{"empty input", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstJSONObject(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
