package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// FigKind distinguishes emoji figurines from hacker (user-linked) figurines.
type FigKind string

const (
	FigKindEmoji  FigKind = "emoji"
	FigKindHacker FigKind = "hacker"
)

// Figurine identifies a collectible token. Two figurines are the same
// entity iff Kind and ID match. The display string is derived from the
// identity, never the other way around.
type Figurine struct {
	Kind FigKind
	ID   string
}

var (
	emojiRegex  = regexp.MustCompile(`^:(.+):$`)
	hackerRegex = regexp.MustCompile(`^<@([a-zA-Z0-9]+)(?:\|.+)?>$`)
)

// ParseFigurine parses a figurine reference as users write it: ":yay:"
// for emoji figurines, "<@U123ABC>" (optionally "<@U123ABC|name>") for
// hacker figurines. Returns a BadInputError for anything else.
func ParseFigurine(text string) (Figurine, error) {
	if m := emojiRegex.FindStringSubmatch(text); m != nil {
		return Figurine{Kind: FigKindEmoji, ID: m[1]}, nil
	}
	if m := hackerRegex.FindStringSubmatch(text); m != nil {
		return Figurine{Kind: FigKindHacker, ID: m[1]}, nil
	}
	return Figurine{}, &BadInputError{Message: "expected ping or emoji, not: " + text}
}

// ParseFigurineKey parses the canonical "kind:id" registry key produced
// by Key. Used when restoring persisted registry state.
func ParseFigurineKey(key string) (Figurine, error) {
	kind, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return Figurine{}, fmt.Errorf("malformed figurine key %q", key)
	}
	switch FigKind(kind) {
	case FigKindEmoji, FigKindHacker:
		return Figurine{Kind: FigKind(kind), ID: id}, nil
	}
	return Figurine{}, fmt.Errorf("unknown figurine kind in key %q", key)
}

// Key returns the canonical registry key for the figurine.
func (f Figurine) Key() string {
	return string(f.Kind) + ":" + f.ID
}

// Display renders the figurine the way the chat platform shows it.
func (f Figurine) Display() string {
	if f.Kind == FigKindHacker {
		return "<@" + f.ID + ">"
	}
	return ":" + f.ID + ":"
}

// IsZero reports whether the figurine is the zero value.
func (f Figurine) IsZero() bool {
	return f.Kind == "" && f.ID == ""
}

// Valid reports whether the figurine has a known kind and a non-empty
// id. Figurines built from external input must be validated before they
// reach the registry: an invalid figurine would produce a key that
// ParseFigurineKey rejects on restore.
func (f Figurine) Valid() bool {
	switch f.Kind {
	case FigKindEmoji, FigKindHacker:
		return f.ID != ""
	}
	return false
}
