package chat

import (
	"time"

	"github.com/google/uuid"
)

// Align says which side of the pane a bubble sits on.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

func (a Align) String() string {
	if a == AlignRight {
		return "right"
	}
	return "left"
}

// Bubble is one rendered message. Label is empty for the current user's own messages.
type Bubble struct {
	Key     string
	Align   Align
	Label   string
	Text    string
	Time    string
	Pending bool
}

// Pane is the full rendered content of one chat container: the optional
// warning banner above the message list and the list itself.
type Pane struct {
	Warning string
	Bubbles []Bubble
}

// HasWarning reports whether the banner element should exist at all.
func (p Pane) HasWarning() bool {
	return p.Warning != ""
}

// RenderPane turns a poll snapshot into a pane. Order follows the server array.
// The result depends only on its inputs, so re-rendering an unchanged snapshot
// yields an equal pane.
func RenderPane(snapshot Snapshot, currentUser string, loc *time.Location) Pane {
	pane := Pane{
		Warning: snapshot.Warning,
		Bubbles: make([]Bubble, 0, len(snapshot.Messages)),
	}
	for _, msg := range snapshot.Messages {
		pane.Bubbles = append(pane.Bubbles, renderBubble(msg, currentUser, loc))
	}
	return pane
}

func renderBubble(msg Message, currentUser string, loc *time.Location) Bubble {
	bubble := Bubble{Text: msg.Message}
	if !msg.CreatedAt.IsZero() {
		bubble.Time = FormatTimestamp(msg.CreatedAt.Time, loc)
	}
	if currentUser != "" && msg.User == currentUser {
		bubble.Align = AlignRight
	} else {
		bubble.Align = AlignLeft
		bubble.Label = msg.User
	}
	return bubble
}

// Panel is the live state of one chat container.
type Panel struct {
	ChatID  int64
	Name    string
	EventPK int64
	Pane    Pane

	// last applied poll sequence, zero before the first poll lands
	Seq uint64
}

// Apply replaces the pane wholesale with a fresh render of snapshot.
// Optimistic bubbles do not survive; the server copy is the only truth.
func (p *Panel) Apply(snapshot Snapshot, currentUser string, loc *time.Location) {
	p.Pane = RenderPane(snapshot, currentUser, loc)
}

// AppendPending adds an optimistic, right-aligned bubble for text sent at now.
// It returns the bubble key so callers can log it next to the POST.
func (p *Panel) AppendPending(text string, now time.Time, loc *time.Location) string {
	key := uuid.NewString()
	p.Pane.Bubbles = append(p.Pane.Bubbles, Bubble{
		Key:     key,
		Align:   AlignRight,
		Text:    text,
		Time:    FormatTimestamp(now, loc),
		Pending: true,
	})
	return key
}
