package clipboard

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/atotto/clipboard"
)

const (
	// maxClipboardLength rejects pastes far longer than any token or media URL.
	maxClipboardLength = 4096

	tokenQueryParam = "X-Plex-Token"
)

var (
	// ErrClipboardRead indicates an error reading from the clipboard
	ErrClipboardRead = errors.New("failed to read from clipboard")
	// ErrInvalidToken indicates the clipboard content is not a plex token
	ErrInvalidToken = errors.New("clipboard does not contain a plex token")

	tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,128}$`)
)

// Validator extracts a plex token from pasted text: either the bare token or
// a URL carrying it as the X-Plex-Token query parameter, as copied from a
// server's "View XML" page.
type Validator struct {
	allowedSchemes map[string]bool
}

func NewValidator() *Validator {
	// Restrict to HTTP/S to avoid unsafe schemes from clipboard.
	return &Validator{
		allowedSchemes: map[string]bool{"http": true, "https": true},
	}
}

// ExtractToken returns the token found in text, or "" when there is none.
func (v *Validator) ExtractToken(text string) string {
	text = strings.TrimSpace(text)

	// Quick reject: empty, too long, or contains newlines
	if text == "" || len(text) > maxClipboardLength || strings.ContainsAny(text, "\n\r") {
		return ""
	}

	if tokenPattern.MatchString(text) {
		return text
	}

	parsed, err := url.Parse(text)
	if err != nil {
		return ""
	}
	if !v.allowedSchemes[parsed.Scheme] || strings.TrimSpace(parsed.Host) == "" {
		return ""
	}

	token := parsed.Query().Get(tokenQueryParam)
	if !tokenPattern.MatchString(token) {
		return ""
	}
	return token
}

// Reader returns the clipboard's text.
type Reader func() (string, error)

// TokenSource reads plex tokens from the system clipboard.
type TokenSource struct {
	Read Reader
}

// NewTokenSource reads from the system clipboard.
func NewTokenSource() *TokenSource {
	return &TokenSource{Read: clipboard.ReadAll}
}

// ReadToken reads the clipboard and returns a plex token if found.
func (s *TokenSource) ReadToken() (string, error) {
	read := s.Read
	if read == nil {
		read = clipboard.ReadAll
	}
	text, err := read()
	if err != nil {
		return "", ErrClipboardRead
	}

	token := NewValidator().ExtractToken(text)
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
