// Package filter reduces the three mutually exclusive catalog filter
// dimensions (category, letter, search) to the single active selection.
package filter

import (
	"errors"
	"strings"
)

// Kind identifies the active filter dimension
type Kind string

const (
	KindNone     Kind = "none"
	KindCategory Kind = "category"
	KindLetter   Kind = "letter"
	KindSearch   Kind = "search"
)

var ErrInvalidLetter = errors.New("letter must be a single character A-Z")

// Selection is the active filter. The zero value selects nothing.
type Selection struct {
	kind  Kind
	value string
}

// None returns the empty selection
func None() Selection { return Selection{kind: KindNone} }

// Category selects products in the named category. An empty name selects nothing.
func Category(name string) Selection {
	if name == "" {
		return None()
	}
	return Selection{kind: KindCategory, value: name}
}

// Letter selects products whose domain name starts with ch. Invalid letters are rejected.
func Letter(ch string) (Selection, error) {
	if ch == "" {
		return None(), nil
	}
	normalized, err := NormalizeLetter(ch)
	if err != nil {
		return None(), err
	}
	return Selection{kind: KindLetter, value: normalized}, nil
}

// Search selects products matching a free-text term. Whitespace-only terms select nothing.
func Search(term string) Selection {
	term = strings.TrimSpace(term)
	if term == "" {
		return None()
	}
	return Selection{kind: KindSearch, value: term}
}

// Kind returns the active dimension
func (s Selection) Kind() Kind {
	if s.kind == "" {
		return KindNone
	}
	return s.kind
}

// Value returns the active value, empty for KindNone
func (s Selection) Value() string { return s.value }

// IsNone reports whether no filter is active
func (s Selection) IsNone() bool { return s.Kind() == KindNone }

// CategoryName returns the selected category, if any
func (s Selection) CategoryName() (string, bool) {
	if s.Kind() != KindCategory {
		return "", false
	}
	return s.value, true
}

// Letter returns the selected letter, if any
func (s Selection) Letter() (string, bool) {
	if s.Kind() != KindLetter {
		return "", false
	}
	return s.value, true
}

// SearchTerm returns the selected search term, if any
func (s Selection) SearchTerm() (string, bool) {
	if s.Kind() != KindSearch {
		return "", false
	}
	return s.value, true
}

// NormalizeLetter upper-cases ch and checks that it is exactly one letter A-Z
func NormalizeLetter(ch string) (string, error) {
	if len(ch) != 1 {
		return "", ErrInvalidLetter
	}
	upper := strings.ToUpper(ch)
	if upper[0] < 'A' || upper[0] > 'Z' {
		return "", ErrInvalidLetter
	}
	return upper, nil
}

// Reduce picks the active selection from three independently supplied values
// using the priority search > letter > category.
func Reduce(category, letter, search string) (Selection, error) {
	if s := Search(search); !s.IsNone() {
		return s, nil
	}
	if letter != "" {
		return Letter(letter)
	}
	return Category(category), nil
}
