package rsvp

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultMinChars = 2
)

// Searcher is the user search endpoint.
type Searcher interface {
	SearchUsers(ctx context.Context, query string) ([]User, error)
}

// Pending is a query waiting out its debounce window.
type Pending struct {
	Gen   uint64
	Query string
}

// Search is the debounced search box. Every keystroke starts a new
// generation; only the newest generation may fire or land results.
type Search struct {
	MinChars int
	Window   time.Duration

	gen     uint64
	results []User
}

func NewSearch(minChars int, window time.Duration) *Search {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Search{MinChars: minChars, Window: window}
}

// Input records the box's new value. When the trimmed value is longer than
// MinChars it returns a Pending to fire after Window; otherwise results are
// cleared immediately and nothing is scheduled.
func (s *Search) Input(value string) (Pending, bool) {
	s.gen++
	query := strings.TrimSpace(value)
	if utf8.RuneCountInString(query) <= s.MinChars {
		s.results = nil
		return Pending{}, false
	}
	return Pending{Gen: s.gen, Query: query}, true
}

// Due reports whether p is still the latest keystroke.
func (s *Search) Due(p Pending) bool {
	return p.Gen != 0 && p.Gen == s.gen
}

// Accept stores users as the result list if p has not been superseded.
func (s *Search) Accept(p Pending, users []User) bool {
	if !s.Due(p) {
		return false
	}
	s.results = users
	return true
}

// Results is the disposable result list currently shown.
func (s *Search) Results() []User {
	return s.results
}

// Clear empties the result list and invalidates anything in flight.
func (s *Search) Clear() {
	s.gen++
	s.results = nil
}

