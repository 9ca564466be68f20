package ticket

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrMissingReference is returned when no ticket reference is present.
var ErrMissingReference = errors.New("no ticket reference found")

// MatchMode selects which reference forms are accepted.
type MatchMode string

const (
	// MatchURL accepts only keys embedded in a browse link.
	MatchURL MatchMode = "url"
	// MatchLoose prefers a browse link and falls back to a bare key.
	MatchLoose MatchMode = "loose"
)

var (
	browseLinkRe = regexp.MustCompile(`https://[^\s/]+(?:/[^\s]*?)?/browse/([A-Z]+-\d+)`)
	bareKeyRe    = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])([A-Z]+-\d+)`)
)

// Reference identifies a ticket. URL is empty when the key was found bare.
type Reference struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// Content is the ticket text compared against a pull request.
type Content struct {
	Key         string `json:"key"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// Repository fetches ticket content by key.
type Repository interface {
	GetTicket(ctx context.Context, key string) (Content, error)
}

// ParseMatchMode converts a config string into a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case MatchURL, "":
		return MatchURL, nil
	case MatchLoose:
		return MatchLoose, nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}

// ExtractReference returns the leftmost ticket reference in text.
func ExtractReference(text string, mode MatchMode) (Reference, error) {
	if m := browseLinkRe.FindStringSubmatch(text); m != nil {
		return Reference{Key: m[1], URL: m[0]}, nil
	}
	if mode == MatchLoose {
		if m := bareKeyRe.FindStringSubmatch(text); m != nil {
			return Reference{Key: m[1]}, nil
		}
	}
	return Reference{}, ErrMissingReference
}
