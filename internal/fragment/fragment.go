// Package fragment reads the HTML snippets the server returns inside
// {"html": ...} envelopes: task forms, the task list and the RSVP list.
package fragment

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CSRFFieldName is the hidden input Django puts in every form.
const CSRFFieldName = "csrfmiddlewaretoken"

// FieldKind is the widget a form field is drawn with.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindTextArea FieldKind = "textarea"
	KindCheckbox FieldKind = "checkbox"
	KindSelect   FieldKind = "select"
	KindHidden   FieldKind = "hidden"
)

// Option is one entry of a select field.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Field is one editable control of a form.
type Field struct {
	Name    string
	ID      string
	Label   string
	Kind    FieldKind
	Value   string
	Checked bool
	Options []Option
}

// Form is everything needed to redraw and resubmit a server-rendered form.
type Form struct {
	Action    string
	CSRFToken string
	Fields    []Field
	Errors    []string
}

// Visible returns the fields a user edits, skipping hidden inputs.
func (f Form) Visible() []Field {
	out := make([]Field, 0, len(f.Fields))
	for _, field := range f.Fields {
		if field.Kind != KindHidden {
			out = append(out, field)
		}
	}
	return out
}

// ParseForm extracts the controls, labels and validation errors of the first
// form in src, or of the bare controls when src is a partial without a <form>.
func ParseForm(src string) (Form, error) {
	root, err := parse(src)
	if err != nil {
		return Form{}, err
	}
	var form Form
	labels := map[string]string{}

	walk(root, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.Form:
			if form.Action == "" {
				form.Action = attr(n, "action")
			}
		case atom.Label:
			if target := attr(n, "for"); target != "" {
				labels[target] = strings.TrimSuffix(collapse(textOf(n)), ":")
			}
			return false
		case atom.Input:
			field := inputField(n)
			if field.Name == CSRFFieldName {
				form.CSRFToken = field.Value
				return false
			}
			if field.Name != "" && !isButton(attr(n, "type")) {
				form.Fields = append(form.Fields, field)
			}
			return false
		case atom.Textarea:
			form.Fields = append(form.Fields, Field{
				Name:  attr(n, "name"),
				ID:    attr(n, "id"),
				Kind:  KindTextArea,
				Value: strings.TrimPrefix(textOf(n), "\n"),
			})
			return false
		case atom.Select:
			form.Fields = append(form.Fields, selectField(n))
			return false
		case atom.Ul, atom.Div, atom.Span, atom.P:
			if hasClass(n, "errorlist") || hasClass(n, "invalid-feedback") || hasClass(n, "text-danger") {
				form.Errors = append(form.Errors, errorLines(n)...)
				return false
			}
		}
		return true
	})

	for i := range form.Fields {
		field := &form.Fields[i]
		if label, ok := labels[field.ID]; ok {
			field.Label = label
		}
		if field.Label == "" {
			field.Label = humanize(field.Name)
		}
	}
	return form, nil
}

// CSRFToken returns the csrfmiddlewaretoken hidden value in src, if any.
func CSRFToken(src string) string {
	root, err := parse(src)
	if err != nil {
		return ""
	}
	var token string
	walk(root, func(n *html.Node) bool {
		if token != "" {
			return false
		}
		if n.DataAtom == atom.Input && attr(n, "name") == CSRFFieldName {
			token = attr(n, "value")
			return false
		}
		return true
	})
	return token
}

func inputField(n *html.Node) Field {
	kind := strings.ToLower(attr(n, "type"))
	field := Field{
		Name:  attr(n, "name"),
		ID:    attr(n, "id"),
		Value: attr(n, "value"),
	}
	switch kind {
	case "checkbox":
		field.Kind = KindCheckbox
		_, field.Checked = lookup(n, "checked")
	case "hidden":
		field.Kind = KindHidden
	default:
		field.Kind = KindText
	}
	return field
}

func selectField(n *html.Node) Field {
	field := Field{
		Name: attr(n, "name"),
		ID:   attr(n, "id"),
		Kind: KindSelect,
	}
	walk(n, func(c *html.Node) bool {
		if c.DataAtom != atom.Option {
			return true
		}
		opt := Option{
			Value: attr(c, "value"),
			Label: collapse(textOf(c)),
		}
		_, opt.Selected = lookup(c, "selected")
		if opt.Selected {
			field.Value = opt.Value
		}
		field.Options = append(field.Options, opt)
		return false
	})
	// With nothing selected a browser submits the first option.
	if len(field.Options) > 0 && lo.NoneBy(field.Options, func(o Option) bool { return o.Selected }) {
		field.Options[0].Selected = true
		field.Value = field.Options[0].Value
	}
	return field
}

func errorLines(n *html.Node) []string {
	var lines []string
	walk(n, func(c *html.Node) bool {
		if c.DataAtom == atom.Li {
			if line := collapse(textOf(c)); line != "" {
				lines = append(lines, line)
			}
			return false
		}
		return true
	})
	if len(lines) == 0 {
		if line := collapse(textOf(n)); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func isButton(kind string) bool {
	switch strings.ToLower(kind) {
	case "submit", "button", "reset", "image":
		return true
	}
	return false
}

func humanize(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
