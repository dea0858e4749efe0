package service

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Arrival", "arrival"},
		{"strips punctuation", "arrival!", "arrival"},
		{"strips surrounding space", "  arrival  ", "arrival"},
		{"keeps digits", "route66", "route66"},
		{"strips inner punctuation", "don't", "dont"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Arrival!", "  I  go ", "don't", "café", ""}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestCheckWord(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		input    string
		want     bool
	}{
		{"exact", "arrival", "arrival", true},
		{"case differs", "arrival", "Arrival", true},
		{"trailing punctuation", "arrival", "arrival!", true},
		{"surrounding space", "arrival", "  arrival ", true},
		{"wrong word", "arrival", "departure", false},
		{"empty input", "arrival", "", false},
		{"empty after stripping", "arrival", "!!!", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckWord(tt.expected, tt.input); got != tt.want {
				t.Errorf("CheckWord(%q, %q) = %v, want %v", tt.expected, tt.input, got, tt.want)
			}
		})
	}
}

func TestCheckSentence(t *testing.T) {
	tests := []struct {
		name        string
		expected    []string
		input       []string
		wantPer     []bool
		wantCorrect bool
	}{
		{
			name:        "all correct",
			expected:    []string{"I", "go", "to", "school"},
			input:       []string{"i", "Go", "to", "school"},
			wantPer:     []bool{true, true, true, true},
			wantCorrect: true,
		},
		{
			name:        "one wrong token",
			expected:    []string{"I", "go", "to", "school"},
			input:       []string{"I", "go", "too", "school"},
			wantPer:     []bool{true, true, false, true},
			wantCorrect: false,
		},
		{
			name:        "missing trailing input",
			expected:    []string{"I", "go", "to", "school"},
			input:       []string{"I", "go"},
			wantPer:     []bool{true, true, false, false},
			wantCorrect: false,
		},
		{
			name:        "punctuation per token",
			expected:    []string{"Where", "is", "it?"},
			input:       []string{"where", "is", "it"},
			wantPer:     []bool{true, true, true},
			wantCorrect: true,
		},
		{
			name:        "empty input slots",
			expected:    []string{"I", "go"},
			input:       []string{"", ""},
			wantPer:     []bool{false, false},
			wantCorrect: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckSentence(tt.expected, tt.input)
			if res.AllCorrect != tt.wantCorrect {
				t.Errorf("AllCorrect = %v, want %v", res.AllCorrect, tt.wantCorrect)
			}
			if !reflect.DeepEqual(res.PerToken, tt.wantPer) {
				t.Errorf("PerToken = %v, want %v", res.PerToken, tt.wantPer)
			}
		})
	}
}
