// Package tasks drives the task modal and the task list of an event page.
package tasks

import (
	"context"
	"errors"
	"net/url"

	"eventchat/internal/fragment"
)

const (
	TitleCreate = "Create task"
	TitleEdit   = "Edit task"

	MsgLoadFailed   = "Failed to load the form. Please try again later."
	MsgSubmitFailed = "An error occurred. Please try again."
	MsgDeleteFailed = "Failed to delete the task."
	MsgToggleFailed = "Failed to toggle task completion."
	DeletePrompt    = "Are you sure you want to delete this task?"
)

var ErrNotOpen = errors.New("task form is not open")

// SubmitResult is the reply to a create or edit submit. HTML carries the
// re-rendered form when validation failed.
type SubmitResult struct {
	Success bool   `json:"success"`
	HTML    string `json:"html"`
}

// Backend is the slice of the API the task views need.
type Backend interface {
	TaskForm(ctx context.Context, path string) (string, error)
	SubmitTaskForm(ctx context.Context, path string, values url.Values) (SubmitResult, error)
	TaskList(ctx context.Context, eventPK int64) (string, error)
	DeleteTask(ctx context.Context, path string) (bool, error)
	ToggleTask(ctx context.Context, path string) error
}

type State int

const (
	Closed State = iota
	Loading
	Open
	Submitting
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Loading:
		return "loading"
	case Open:
		return "open"
	case Submitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Modal is the create/edit dialog. The server owns the form markup; the modal
// keeps the parsed controls and the URL they post back to.
type Modal struct {
	State State
	Title string
	Path  string
	Form  fragment.Form
	// Err replaces the form body when loading or submitting failed.
	Err string
}

// Begin opens the modal in the loading state for the form at path. editing
// picks the title.
func (m *Modal) Begin(path string, editing bool) {
	m.State = Loading
	m.Title = TitleCreate
	if editing {
		m.Title = TitleEdit
	}
	m.Path = path
	m.Form = fragment.Form{}
	m.Err = ""
}

// Loaded applies the form fetch. The modal opens either way; a failed fetch
// shows MsgLoadFailed in place of the form.
func (m *Modal) Loaded(html string, err error) {
	if m.State != Loading {
		return
	}
	m.State = Open
	if err != nil {
		m.Err = MsgLoadFailed
		return
	}
	form, err := fragment.ParseForm(html)
	if err != nil {
		m.Err = MsgLoadFailed
		return
	}
	m.Form = form
}

// BeginSubmit moves an open modal to submitting and returns where and what to post.
func (m *Modal) BeginSubmit() (string, url.Values, error) {
	if m.State != Open || m.Err != "" {
		return "", nil, ErrNotOpen
	}
	m.State = Submitting
	target := m.Path
	if m.Form.Action != "" {
		target = m.Form.Action
	}
	return target, Values(m.Form), nil
}

// Submitted applies the submit reply and reports whether the modal closed.
// A validation failure reopens with the server's re-rendered form.
func (m *Modal) Submitted(result SubmitResult, err error) bool {
	if m.State != Submitting {
		return false
	}
	m.State = Open
	switch {
	case err != nil:
		m.Err = MsgSubmitFailed
		return false
	case result.Success:
		m.Close()
		return true
	}
	form, perr := fragment.ParseForm(result.HTML)
	if perr != nil {
		m.Err = MsgSubmitFailed
		return false
	}
	if form.CSRFToken == "" {
		form.CSRFToken = m.Form.CSRFToken
	}
	m.Form = form
	return false
}

func (m *Modal) Close() {
	*m = Modal{}
}

func (m *Modal) IsOpen() bool {
	return m.State != Closed
}

// SetValue sets a text, textarea or select field.
func (m *Modal) SetValue(name, value string) bool {
	field := m.field(name)
	if field == nil || field.Kind == fragment.KindCheckbox {
		return false
	}
	field.Value = value
	if field.Kind == fragment.KindSelect {
		for i := range field.Options {
			field.Options[i].Selected = field.Options[i].Value == value
		}
	}
	return true
}

// Toggle flips a checkbox field.
func (m *Modal) Toggle(name string) bool {
	field := m.field(name)
	if field == nil || field.Kind != fragment.KindCheckbox {
		return false
	}
	field.Checked = !field.Checked
	return true
}

// Cycle moves a select field by delta options, wrapping around.
func (m *Modal) Cycle(name string, delta int) bool {
	field := m.field(name)
	if field == nil || field.Kind != fragment.KindSelect || len(field.Options) == 0 {
		return false
	}
	current := 0
	for i, opt := range field.Options {
		if opt.Value == field.Value {
			current = i
			break
		}
	}
	n := len(field.Options)
	next := ((current+delta)%n + n) % n
	return m.SetValue(name, field.Options[next].Value)
}

func (m *Modal) field(name string) *fragment.Field {
	for i := range m.Form.Fields {
		if m.Form.Fields[i].Name == name {
			return &m.Form.Fields[i]
		}
	}
	return nil
}

// Values encodes form the way a browser would submit it: unchecked boxes are
// omitted and checked ones send their value or "on".
func Values(form fragment.Form) url.Values {
	values := url.Values{}
	if form.CSRFToken != "" {
		values.Set(fragment.CSRFFieldName, form.CSRFToken)
	}
	for _, field := range form.Fields {
		if field.Name == "" {
			continue
		}
		if field.Kind == fragment.KindCheckbox {
			if !field.Checked {
				continue
			}
			value := field.Value
			if value == "" {
				value = "on"
			}
			values.Add(field.Name, value)
			continue
		}
		values.Add(field.Name, field.Value)
	}
	return values
}
