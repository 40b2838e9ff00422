package chat

import (
	"time"

	"github.com/samber/lo"
)

// TabSet holds one tab and one container per chat. It is built once from the
// initial chat listing and is not rebuilt by polling.
type TabSet struct {
	panels []*Panel
	active int
}

// NewTabSet creates a panel per chat, rendering any messages the listing
// already carried. The chat matching activeID is marked active, else the first.
func NewTabSet(chats []Chat, activeID int64, currentUser string, loc *time.Location) *TabSet {
	set := &TabSet{
		panels: make([]*Panel, 0, len(chats)),
		active: -1,
	}
	for _, c := range chats {
		panel := &Panel{ChatID: c.ID, Name: c.Name, EventPK: c.EventPK}
		panel.Apply(Snapshot{Warning: c.Warning, Messages: c.Messages}, currentUser, loc)
		set.panels = append(set.panels, panel)
	}
	if len(set.panels) == 0 {
		return set
	}
	set.active = 0
	if _, idx, ok := lo.FindIndexOf(set.panels, func(p *Panel) bool { return p.ChatID == activeID }); ok {
		set.active = idx
	}
	return set
}

func (s *TabSet) Len() int {
	return len(s.panels)
}

// Panels returns the panels in tab order.
func (s *TabSet) Panels() []*Panel {
	return s.panels
}

// Active returns the active panel or nil when there are no chats.
func (s *TabSet) Active() *Panel {
	if s.active < 0 || s.active >= len(s.panels) {
		return nil
	}
	return s.panels[s.active]
}

func (s *TabSet) IsActive(chatID int64) bool {
	active := s.Active()
	return active != nil && active.ChatID == chatID
}

// Panel looks up a container by chat id.
func (s *TabSet) Panel(chatID int64) (*Panel, bool) {
	return lo.Find(s.panels, func(p *Panel) bool { return p.ChatID == chatID })
}

// Select deactivates every tab and activates the one for chatID.
// Unknown ids leave the current selection alone.
func (s *TabSet) Select(chatID int64) bool {
	_, idx, ok := lo.FindIndexOf(s.panels, func(p *Panel) bool { return p.ChatID == chatID })
	if !ok {
		return false
	}
	s.active = idx
	return true
}

// Step moves the active tab by delta, wrapping around.
func (s *TabSet) Step(delta int) {
	n := len(s.panels)
	if n == 0 {
		return
	}
	s.active = ((s.active+delta)%n + n) % n
}

// IDs returns chat ids in tab order.
func (s *TabSet) IDs() []int64 {
	return lo.Map(s.panels, func(p *Panel, _ int) int64 { return p.ChatID })
}
