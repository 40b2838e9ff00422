package tasks

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formPartial = `<input type="hidden" name="csrfmiddlewaretoken" value="tok">
<label for="id_assigned_to">Assigned to:</label>
<select name="assigned_to" id="id_assigned_to">
  <option value="">---------</option>
  <option value="2" selected>alice</option>
  <option value="3">bob</option>
</select>
<label for="id_description">Description:</label>
<textarea name="description" id="id_description">Buy snacks</textarea>
<label for="id_is_completed">Is completed:</label>
<input type="checkbox" name="is_completed" id="id_is_completed">`

const invalidPartial = `<input type="hidden" name="csrfmiddlewaretoken" value="tok">
<textarea name="description" id="id_description"></textarea>
<ul class="errorlist"><li>This field is required.</li></ul>`

const listPartial = `<ul class="task-list">
<li>Buy snacks <a href="/tasks/5/toggle/">Done</a>
<button data-task-url="/tasks/5/edit/" data-task-id="5">Edit</button>
<form class="delete-task-form" action="/tasks/5/delete/" method="post"><button>Delete</button></form></li>
<li>Book venue <a href="/tasks/6/toggle/">Done</a></li>
</ul>
<button data-task-url="/events/3/tasks/create/">Create task</button>`

type fakeBackend struct {
	formHTML  string
	formErr   error
	submit    SubmitResult
	submitErr error
	posted    url.Values
	postedTo  string
	deleteOK  bool
	deleteErr error
	deletes   int
	toggles   []string
	toggleErr error
	reloads   int
}

func (f *fakeBackend) TaskForm(context.Context, string) (string, error) {
	return f.formHTML, f.formErr
}

func (f *fakeBackend) SubmitTaskForm(_ context.Context, path string, values url.Values) (SubmitResult, error) {
	f.postedTo = path
	f.posted = values
	return f.submit, f.submitErr
}

func (f *fakeBackend) TaskList(context.Context, int64) (string, error) {
	f.reloads++
	return listPartial, nil
}

func (f *fakeBackend) DeleteTask(context.Context, string) (bool, error) {
	f.deletes++
	return f.deleteOK, f.deleteErr
}

func (f *fakeBackend) ToggleTask(_ context.Context, path string) error {
	f.toggles = append(f.toggles, path)
	return f.toggleErr
}

func TestModalTitles(t *testing.T) {
	var m Modal
	m.Begin("/events/3/tasks/create/", false)
	assert.Equal(t, TitleCreate, m.Title)
	assert.Equal(t, Loading, m.State)

	m.Begin("/tasks/5/edit/", true)
	assert.Equal(t, TitleEdit, m.Title)
}

func TestModalLoadFailureOpensWithError(t *testing.T) {
	backend := &fakeBackend{formErr: errors.New("500")}
	var m Modal
	Load(context.Background(), backend, &m, "/tasks/5/edit/", true)

	assert.Equal(t, Open, m.State)
	assert.Equal(t, MsgLoadFailed, m.Err)
	_, _, err := m.BeginSubmit()
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestModalSubmitSuccessClosesAndReloads(t *testing.T) {
	backend := &fakeBackend{formHTML: formPartial, submit: SubmitResult{Success: true}}
	var m Modal
	Load(context.Background(), backend, &m, "/events/3/tasks/create/", false)
	require.Equal(t, Open, m.State)
	require.True(t, m.SetValue("description", "Bring chairs"))
	require.True(t, m.Toggle("is_completed"))

	closed, list, err := Submit(context.Background(), backend, 3, &m)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Equal(t, listPartial, list)
	assert.Equal(t, Closed, m.State)
	assert.Equal(t, 1, backend.reloads)

	assert.Equal(t, "/events/3/tasks/create/", backend.postedTo)
	assert.Equal(t, "Bring chairs", backend.posted.Get("description"))
	assert.Equal(t, "on", backend.posted.Get("is_completed"))
	assert.Equal(t, "2", backend.posted.Get("assigned_to"))
	assert.Equal(t, "tok", backend.posted.Get("csrfmiddlewaretoken"))
}

func TestModalValidationFailureShowsNewForm(t *testing.T) {
	backend := &fakeBackend{formHTML: formPartial, submit: SubmitResult{Success: false, HTML: invalidPartial}}
	var m Modal
	Load(context.Background(), backend, &m, "/events/3/tasks/create/", false)

	closed, _, err := Submit(context.Background(), backend, 3, &m)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Equal(t, Open, m.State)
	assert.Empty(t, m.Err)
	assert.Equal(t, []string{"This field is required."}, m.Form.Errors)
	assert.Equal(t, 0, backend.reloads)
}

func TestModalSubmitErrorShowsGenericMessage(t *testing.T) {
	backend := &fakeBackend{formHTML: formPartial, submitErr: errors.New("reset")}
	var m Modal
	Load(context.Background(), backend, &m, "/events/3/tasks/create/", false)

	closed, _, err := Submit(context.Background(), backend, 3, &m)
	require.Error(t, err)
	assert.False(t, closed)
	assert.Equal(t, Open, m.State)
	assert.Equal(t, MsgSubmitFailed, m.Err)
}

func TestUncheckedBoxIsOmitted(t *testing.T) {
	backend := &fakeBackend{formHTML: formPartial}
	var m Modal
	Load(context.Background(), backend, &m, "/x/", false)
	values := Values(m.Form)
	_, present := values["is_completed"]
	assert.False(t, present)
}

func TestCycleWrapsSelect(t *testing.T) {
	backend := &fakeBackend{formHTML: formPartial}
	var m Modal
	Load(context.Background(), backend, &m, "/x/", false)

	require.True(t, m.Cycle("assigned_to", 1))
	assert.Equal(t, "3", Values(m.Form).Get("assigned_to"))
	require.True(t, m.Cycle("assigned_to", 1))
	assert.Equal(t, "", Values(m.Form).Get("assigned_to"))
	require.True(t, m.Cycle("assigned_to", -1))
	assert.Equal(t, "3", Values(m.Form).Get("assigned_to"))
	assert.False(t, m.Cycle("description", 1))
}

func TestSelectWithoutSelectionSubmitsFirstOption(t *testing.T) {
	backend := &fakeBackend{formHTML: `<select name="priority" id="id_priority">
  <option value="low">Low</option>
  <option value="high">High</option>
</select>`}
	var m Modal
	Load(context.Background(), backend, &m, "/x/", false)

	assert.Equal(t, "low", Values(m.Form).Get("priority"))
	require.True(t, m.Cycle("priority", 1))
	assert.Equal(t, "high", Values(m.Form).Get("priority"))
	require.True(t, m.Cycle("priority", 1))
	assert.Equal(t, "low", Values(m.Form).Get("priority"))
}

func TestParseList(t *testing.T) {
	list, err := ParseList(listPartial)
	require.NoError(t, err)
	require.Len(t, list.Entries, 2)

	first := list.Entries[0]
	assert.Equal(t, int64(5), first.ID)
	assert.Equal(t, "Buy snacks", first.Text)
	assert.Equal(t, "/tasks/5/toggle/", first.TogglePath)
	assert.Equal(t, "/tasks/5/edit/", first.EditPath)
	assert.Equal(t, "/tasks/5/delete/", first.DeletePath)

	second, ok := list.Find(6)
	require.True(t, ok)
	assert.Empty(t, second.DeletePath)
	assert.Equal(t, "/events/3/tasks/create/", list.CreatePath)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	backend := &fakeBackend{deleteOK: true}
	_, err := Delete(context.Background(), backend, 3, "/tasks/5/delete/", false)
	require.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, 0, backend.deletes)

	html, err := Delete(context.Background(), backend, 3, "/tasks/5/delete/", true)
	require.NoError(t, err)
	assert.Equal(t, listPartial, html)
	assert.Equal(t, 1, backend.deletes)
	assert.Equal(t, 1, backend.reloads)
}

func TestDeleteFailure(t *testing.T) {
	backend := &fakeBackend{deleteOK: false}
	_, err := Delete(context.Background(), backend, 3, "/tasks/5/delete/", true)
	require.EqualError(t, err, MsgDeleteFailed)
	assert.Equal(t, 0, backend.reloads)
}

func TestToggleFailureCarriesUserMessage(t *testing.T) {
	cause := errors.New("server returned 500")
	backend := &fakeBackend{toggleErr: cause}
	_, err := Toggle(context.Background(), backend, 3, "/tasks/5/toggle/")
	require.ErrorIs(t, err, cause)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, MsgToggleFailed, actionErr.Message)
	assert.Equal(t, 0, backend.reloads)
}

func TestToggleReloads(t *testing.T) {
	backend := &fakeBackend{}
	html, err := Toggle(context.Background(), backend, 3, "/tasks/5/toggle/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/tasks/5/toggle/"}, backend.toggles)
	assert.Equal(t, listPartial, html)
}
