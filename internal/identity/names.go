package identity

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var adjectives = [...]string{
	"brave", "calm", "swift", "wise", "bold", "keen", "fair", "glad",
	"warm", "cool", "bright", "quick", "sharp", "fresh", "clear", "pure",
}

var animals = [...]string{
	"falcon", "otter", "tiger", "wolf", "eagle", "fox", "bear", "hawk",
	"lion", "lynx", "raven", "owl", "deer", "crane", "heron", "swan",
}

const maxNameLen = 64

// GenerateName picks an adjective-animal pair from the sub-second part of t.
// Names are memorable, not unique.
func GenerateName(t time.Time) string {
	nanos := t.Nanosecond()
	adjective := adjectives[nanos%len(adjectives)]
	animal := animals[(nanos/len(adjectives))%len(animals)]
	return adjective + "-" + animal
}

var folder = cases.Lower(language.Und)

// NormalizeName trims and lower-cases name and checks that it is safe to use
// as a file name.
func NormalizeName(name string) (string, error) {
	normalized := folder.String(strings.TrimSpace(name))
	switch {
	case normalized == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	case len(normalized) > maxNameLen:
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, maxNameLen)
	case strings.HasPrefix(normalized, "."):
		return "", fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, normalized)
	case strings.ContainsAny(normalized, "/\\\x00"):
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, normalized)
	case strings.ContainsFunc(normalized, func(r rune) bool { return r <= ' ' }):
		return "", fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidName, normalized)
	}
	return normalized, nil
}
