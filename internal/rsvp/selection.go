package rsvp

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// User is one row of the user search endpoint.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Display renders "username (first last)" the way the invite list shows users.
func (u User) Display() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	return fmt.Sprintf("%s (%s)", u.Username, full)
}

// Selection is the set of users picked for one invite form session.
// It keeps insertion order so the rendered list stays stable.
type Selection struct {
	users map[int64]User
	order []int64
}

func NewSelection() *Selection {
	return &Selection{users: make(map[int64]User)}
}

// Add inserts u unless a user with the same id is already selected.
func (s *Selection) Add(u User) bool {
	if _, exists := s.users[u.ID]; exists {
		return false
	}
	s.users[u.ID] = u
	s.order = append(s.order, u.ID)
	return true
}

// Remove drops the user with id, reporting whether anything was removed.
func (s *Selection) Remove(id int64) bool {
	if _, exists := s.users[id]; !exists {
		return false
	}
	delete(s.users, id)
	s.order = lo.Without(s.order, id)
	return true
}

func (s *Selection) Has(id int64) bool {
	_, ok := s.users[id]
	return ok
}

func (s *Selection) Len() int {
	return len(s.users)
}

// Users returns the selected users in the order they were added.
func (s *Selection) Users() []User {
	return lo.Map(s.order, func(id int64, _ int) User { return s.users[id] })
}

// IDs returns the selected ids in the order they were added.
func (s *Selection) IDs() []int64 {
	return append([]int64(nil), s.order...)
}

// Reset empties the selection after a successful submit.
func (s *Selection) Reset() {
	s.users = make(map[int64]User)
	s.order = nil
}
