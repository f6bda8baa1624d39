package validation

import (
	"strings"
	"testing"
)

func TestHTTPSURL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"https", "https://grace.example.org/giving", false},
		{"http", "http://localhost:8080", false},
		{"missing scheme", "grace.example.org", true},
		{"ftp", "ftp://files.example.org", true},
		{"too long", "https://example.org/" + strings.Repeat("a", 64), true},
	}

	validate := HTTPSURL("website", 40)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validate(tt.value)
			if (got != "") != tt.wantErr {
				t.Errorf("HTTPSURL(%q) = %q, wantErr %v", tt.value, got, tt.wantErr)
			}
		})
	}
}

func TestOneOf(t *testing.T) {
	validate := OneOf("frequency", []string{"weekly", "monthly"})

	if msg := validate(" Monthly "); msg != "" {
		t.Errorf("expected case-insensitive match, got %q", msg)
	}
	if msg := validate("daily"); msg != "frequency must be one of: weekly, monthly" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestPrintableText(t *testing.T) {
	validate := PrintableText("notes")

	if msg := validate("line one\nline two\tindented"); msg != "" {
		t.Errorf("newline and tab should be allowed, got %q", msg)
	}
	if msg := validate("bell\a"); msg == "" {
		t.Errorf("control character should be rejected")
	}
}

func TestCheck(t *testing.T) {
	custom := Check(PrintableText("notes"), HTTPSURL("notes", 100))

	if msg := custom(42.0); msg != "" {
		t.Errorf("non-string should pass through, got %q", msg)
	}
	if msg := custom("bad\x00"); msg != "notes contains invalid characters" {
		t.Errorf("first failing validator should win, got %q", msg)
	}
	if msg := custom("https://example.org"); msg != "" {
		t.Errorf("valid value rejected: %q", msg)
	}
}
