package tasks

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/samber/lo"

	"eventchat/internal/fragment"
)

// ErrNotConfirmed is returned when a delete was not confirmed; nothing is sent.
var ErrNotConfirmed = errors.New("delete not confirmed")

// ActionError is a failed delete or toggle. Message is the text shown to the
// user; Err, when set, is the transport failure behind it.
type ActionError struct {
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ActionError) Unwrap() error { return e.Err }

var taskTarget = regexp.MustCompile(`/tasks/(\d+)/(toggle|edit|delete)/?$`)

// Entry is one task row with the actions its markup offers.
type Entry struct {
	ID         int64
	Text       string
	TogglePath string
	EditPath   string
	DeletePath string
}

// List is a parsed task list fragment.
type List struct {
	Lines   []string
	Entries []Entry
	// CreatePath is the new-task form URL when the fragment links one.
	CreatePath string
}

// ParseList reads a task list fragment. Rows without any task action are
// kept in Lines only.
func ParseList(html string) (List, error) {
	var list List
	lines, err := fragment.Lines(html)
	if err != nil {
		return list, err
	}
	list.Lines = lines

	items, err := fragment.ListItems(html)
	if err != nil {
		return list, err
	}
	for _, item := range items {
		entry, ok := entryOf(item)
		if ok {
			list.Entries = append(list.Entries, entry)
		}
	}

	urls, err := fragment.AttrValues(html, "data-task-url")
	if err != nil {
		return list, err
	}
	if create, ok := lo.Find(urls, func(u string) bool { return !taskTarget.MatchString(u) }); ok {
		list.CreatePath = create
	}
	return list, nil
}

func entryOf(item fragment.Item) (Entry, bool) {
	entry := Entry{Text: item.Text}
	for _, target := range item.Targets {
		m := taskTarget.FindStringSubmatch(target)
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		entry.ID = id
		switch m[2] {
		case "toggle":
			entry.TogglePath = target
		case "edit":
			entry.EditPath = target
		case "delete":
			entry.DeletePath = target
		}
	}
	return entry, entry.ID != 0
}

// Find returns the entry with id.
func (l List) Find(id int64) (Entry, bool) {
	return lo.Find(l.Entries, func(e Entry) bool { return e.ID == id })
}

// Delete removes a task once confirmed and returns the reloaded list markup.
func Delete(ctx context.Context, backend Backend, eventPK int64, path string, confirmed bool) (string, error) {
	if !confirmed {
		return "", ErrNotConfirmed
	}
	ok, err := backend.DeleteTask(ctx, path)
	if err != nil {
		return "", &ActionError{Message: MsgDeleteFailed, Err: err}
	}
	if !ok {
		return "", &ActionError{Message: MsgDeleteFailed}
	}
	return backend.TaskList(ctx, eventPK)
}

// Toggle flips a task's completion and returns the reloaded list markup.
func Toggle(ctx context.Context, backend Backend, eventPK int64, path string) (string, error) {
	if err := backend.ToggleTask(ctx, path); err != nil {
		return "", &ActionError{Message: MsgToggleFailed, Err: err}
	}
	return backend.TaskList(ctx, eventPK)
}

// Submit posts an open modal and, when the server accepted it, reloads the
// task list. closed reports whether the modal closed.
func Submit(ctx context.Context, backend Backend, eventPK int64, m *Modal) (closed bool, listHTML string, err error) {
	path, values, err := m.BeginSubmit()
	if err != nil {
		return false, "", err
	}
	result, err := backend.SubmitTaskForm(ctx, path, values)
	if !m.Submitted(result, err) {
		return false, "", err
	}
	listHTML, err = backend.TaskList(ctx, eventPK)
	return true, listHTML, err
}

// Load fetches the form for path into m.
func Load(ctx context.Context, backend Backend, m *Modal, path string, editing bool) {
	m.Begin(path, editing)
	html, err := backend.TaskForm(ctx, path)
	m.Loaded(html, err)
}
