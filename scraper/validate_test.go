package scraper

import (
	"strings"
	"testing"
)

func TestValidateURL_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain http", "http://example.com", "http://example.com"},
		{"plain https", "https://example.com/path?q=1", "https://example.com/path?q=1"},
		{"surrounding whitespace trimmed", "  https://example.com  ", "https://example.com"},
		{"port and fragment", "https://example.com:8443/a#top", "https://example.com:8443/a#top"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateURL(tt.in)
			if err != nil {
				t.Fatalf("ValidateURL(%q) returned error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ValidateURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateURL_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantMsg string
	}{
		{"empty", "", "URL is required"},
		{"whitespace only", "   \t ", "URL is required"},
		{"too long", "https://example.com/" + strings.Repeat("a", 2048), "URL exceeds maximum length of 2048 characters"},
		{"ftp scheme", "ftp://example.com/file", "Only http:// and https:// URLs are supported"},
		{"no scheme", "example.com", "Only http:// and https:// URLs are supported"},
		{"scheme only", "http://", "Invalid URL format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateURL(tt.in)
			if err == nil {
				t.Fatalf("ValidateURL(%q) succeeded, want error", tt.in)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("ValidateURL(%q) error = %q, want %q", tt.in, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateURL_Unparseable(t *testing.T) {
	_, err := ValidateURL("http://[::1:80/")
	if err == nil {
		t.Fatal("expected error for malformed host")
	}
	if !strings.HasPrefix(err.Error(), "Invalid URL:") {
		t.Errorf("error = %q, want a message starting with %q", err.Error(), "Invalid URL:")
	}
}

func TestValidateURL_LengthBoundary(t *testing.T) {
	// Exactly at the cap passes; one over fails.
	base := "https://example.com/"
	atCap := base + strings.Repeat("a", maxURLLength-len(base))

	if _, err := ValidateURL(atCap); err != nil {
		t.Errorf("URL of exactly %d characters rejected: %v", maxURLLength, err)
	}
	if _, err := ValidateURL(atCap + "a"); err == nil {
		t.Errorf("URL of %d characters accepted, want rejection", maxURLLength+1)
	}
}
