package clipboard

import (
	"errors"
	"testing"
)

func TestExtractToken(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare token", "  aBcD3fGh1jKlMn0p_-xy \n", "aBcD3fGh1jKlMn0p_-xy"},
		{"xml url", "http://192.168.1.5:32400/library/sections?X-Plex-Token=aBcD3fGh1jKlMn0p", "aBcD3fGh1jKlMn0p"},
		{"url without token", "https://app.plex.tv/desktop", ""},
		{"unsafe scheme", "file:///etc/passwd?X-Plex-Token=aBcD3fGh1jKlMn0p", ""},
		{"too short", "abc", ""},
		{"multi line", "aBcD3fGh1jKlMn0p\naBcD3fGh1jKlMn0p", ""},
		{"spaces inside", "not a token at all", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.ExtractToken(tt.text); got != tt.want {
				t.Fatalf("ExtractToken(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestReadToken(t *testing.T) {
	src := &TokenSource{Read: func() (string, error) { return "aBcD3fGh1jKlMn0p", nil }}
	token, err := src.ReadToken()
	if err != nil || token != "aBcD3fGh1jKlMn0p" {
		t.Fatalf("ReadToken = %q, %v", token, err)
	}

	src.Read = func() (string, error) { return "hello", nil }
	if _, err := src.ReadToken(); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	src.Read = func() (string, error) { return "", errors.New("no display") }
	if _, err := src.ReadToken(); !errors.Is(err, ErrClipboardRead) {
		t.Fatalf("expected ErrClipboardRead, got %v", err)
	}
}
