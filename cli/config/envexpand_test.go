package config

import (
	"strings"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("COVERED_TEST_HOST", "chrome.internal")
	t.Setenv("COVERED_TEST_EMPTY", "")
	t.Setenv("COVERED_TEST_TOKEN", "s3cret")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "host: ${COVERED_TEST_HOST}", "host: chrome.internal"},
		{"unset", "host: ${COVERED_UNSET_12345}", "host: "},
		{"default when unset", "path: ${COVERED_UNSET_12345:-./out}", "path: ./out"},
		{"default when empty", "path: ${COVERED_TEST_EMPTY:-./out}", "path: ./out"},
		{"default ignored when set", "host: ${COVERED_TEST_HOST:-localhost}", "host: chrome.internal"},
		{"required and set", "token: ${COVERED_TEST_TOKEN:?token required}", "token: s3cret"},
		{"several", "${COVERED_TEST_HOST}:${COVERED_UNSET_12345:-9222}", "chrome.internal:9222"},
		{"no references", "report:\n  mode: summary", "report:\n  mode: summary"},
		{"bare dollar kept", "price: $5", "price: $5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnv(tt.input)
			if err != nil {
				t.Fatalf("ExpandEnv(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnv_AdapterSecrets(t *testing.T) {
	t.Setenv("COVERED_TEST_HOOK", "https://hooks.example.com/covered")
	t.Setenv("COVERED_TEST_TOKEN", "abc")

	input := `adapter:
  type: webhook
  url: ${COVERED_TEST_HOOK:?webhook url required}
  headers:
    Authorization: Bearer ${COVERED_TEST_TOKEN}`

	got, err := ExpandEnv(input)
	if err != nil {
		t.Fatal(err)
	}
	want := `adapter:
  type: webhook
  url: https://hooks.example.com/covered
  headers:
    Authorization: Bearer abc`
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestExpandEnv_RequiredMissing(t *testing.T) {
	t.Setenv("COVERED_TEST_EMPTY", "")

	_, err := ExpandEnv("url: ${COVERED_UNSET_12345:?webhook url required}\ntoken: ${COVERED_TEST_EMPTY:?}")
	if err == nil {
		t.Fatal("expected error for missing required variables")
	}
	msg := err.Error()
	for _, want := range []string{
		"COVERED_UNSET_12345: webhook url required",
		"COVERED_TEST_EMPTY: not set",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should contain %q", msg, want)
		}
	}
}
