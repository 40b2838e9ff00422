package tui

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventchat/internal/chat"
	"eventchat/internal/poller"
	"eventchat/internal/rsvp"
	"eventchat/internal/tasks"
)

const taskListHTML = `<ul class="task-list">
<li>Buy snacks <a href="/tasks/5/toggle/">Done</a>
<form class="delete-task-form" action="/tasks/5/delete/" method="post"><button>Delete</button></form></li>
</ul>`

type fakeBackend struct {
	mu        sync.Mutex
	chats     []chat.Chat
	snapshot  chat.Snapshot
	sendErr   error
	sent      []string
	invites   int
	deletes   []string
	toggles   []string
	toggleErr error
	submits   []url.Values
	formHTML  string
	submit    tasks.SubmitResult
}

func (f *fakeBackend) Chats(context.Context, int64) ([]chat.Chat, error) {
	return f.chats, nil
}

func (f *fakeBackend) Messages(context.Context, int64) (chat.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, nil
}

func (f *fakeBackend) SendMessage(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.sendErr
}

func (f *fakeBackend) SearchUsers(context.Context, string) ([]rsvp.User, error) {
	return []rsvp.User{{ID: 4, Username: "alice"}}, nil
}

func (f *fakeBackend) Invite(context.Context, int64, []int64) (rsvp.InviteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites++
	return rsvp.InviteResult{Message: "Invitations sent successfully"}, nil
}

func (f *fakeBackend) RSVPList(context.Context, int64) (string, error) {
	return "<ul><li>alice - MAYBE</li></ul>", nil
}

func (f *fakeBackend) TaskForm(context.Context, string) (string, error) {
	return f.formHTML, nil
}

func (f *fakeBackend) SubmitTaskForm(_ context.Context, _ string, values url.Values) (tasks.SubmitResult, error) {
	f.submits = append(f.submits, values)
	return f.submit, nil
}

func (f *fakeBackend) TaskList(context.Context, int64) (string, error) {
	return taskListHTML, nil
}

func (f *fakeBackend) DeleteTask(_ context.Context, path string) (bool, error) {
	f.deletes = append(f.deletes, path)
	return true, nil
}

func (f *fakeBackend) ToggleTask(_ context.Context, path string) error {
	f.toggles = append(f.toggles, path)
	return f.toggleErr
}

func newTestModel(t *testing.T, backend *fakeBackend, activeChat int64) *Model {
	t.Helper()
	model := NewModel(Options{
		Backend:    backend,
		Username:   "me",
		EventPK:    3,
		ActiveChat: activeChat,
		Location:   time.UTC,
		Poller:     poller.New(backend, poller.Config{Interval: time.Hour}),
	})
	t.Cleanup(model.Shutdown)
	return model
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, model *Model, msg tea.Msg) tea.Cmd {
	t.Helper()
	_, cmd := model.Update(msg)
	return cmd
}

func TestChatsLoadActivatesConfiguredChatAndPolls(t *testing.T) {
	backend := &fakeBackend{
		chats: []chat.Chat{
			{ID: 1, Name: "General"},
			{ID: 2, Name: "Planning"},
		},
		snapshot: chat.Snapshot{
			Warning:  "This chat will be deleted soon.",
			Messages: []chat.Message{{User: "me", Message: "hi"}, {User: "bob", Message: "yo"}},
		},
	}
	model := newTestModel(t, backend, 2)

	cmd := update(t, model, chatsLoadedMsg{chats: backend.chats})
	require.NotNil(t, cmd)
	assert.Equal(t, int64(2), model.tabs.Active().ChatID)

	for i := 0; i < 2; i++ {
		msg := cmd()
		require.IsType(t, pollMsg{}, msg)
		cmd = update(t, model, msg)
	}
	for _, panel := range model.tabs.Panels() {
		require.Len(t, panel.Pane.Bubbles, 2)
		assert.Equal(t, chat.AlignRight, panel.Pane.Bubbles[0].Align)
		assert.Empty(t, panel.Pane.Bubbles[0].Label)
		assert.Equal(t, "bob", panel.Pane.Bubbles[1].Label)
		assert.Equal(t, "This chat will be deleted soon.", panel.Pane.Warning)
	}
	assert.Contains(t, model.View(), "This chat will be deleted soon.")
}

func TestSendIsOptimisticAndAlertsOnFailure(t *testing.T) {
	backend := &fakeBackend{chats: []chat.Chat{{ID: 1, Name: "General"}}, sendErr: errors.New("403")}
	model := newTestModel(t, backend, 0)
	update(t, model, chatsLoadedMsg{chats: backend.chats})

	model.input.SetValue("  hello  ")
	cmd := update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, model.input.Value())

	bubbles := model.tabs.Active().Pane.Bubbles
	require.Len(t, bubbles, 1)
	assert.True(t, bubbles[0].Pending)
	assert.Equal(t, "hello", bubbles[0].Text)

	update(t, model, cmd())
	assert.Equal(t, []string{"hello"}, backend.sent)
	assert.Equal(t, msgSendFailed, model.alert)
	assert.Len(t, model.tabs.Active().Pane.Bubbles, 1, "optimistic bubble is not rolled back")

	update(t, model, key("x"))
	assert.Empty(t, model.alert)
}

func TestEmptyMessageIsNotSent(t *testing.T) {
	backend := &fakeBackend{chats: []chat.Chat{{ID: 1, Name: "General"}}}
	model := newTestModel(t, backend, 0)
	update(t, model, chatsLoadedMsg{chats: backend.chats})

	model.input.SetValue("   ")
	assert.Nil(t, update(t, model, tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Empty(t, model.tabs.Active().Pane.Bubbles)
}

func TestTabKeySwitchesChat(t *testing.T) {
	backend := &fakeBackend{chats: []chat.Chat{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}}
	model := newTestModel(t, backend, 0)
	update(t, model, chatsLoadedMsg{chats: backend.chats})

	update(t, model, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, int64(2), model.tabs.Active().ChatID)
	update(t, model, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, int64(1), model.tabs.Active().ChatID)
}

func TestInviteWithNoSelectionAlertsWithoutCalling(t *testing.T) {
	backend := &fakeBackend{}
	model := newTestModel(t, backend, 0)
	model.screen = screenInvite

	assert.Nil(t, update(t, model, tea.KeyMsg{Type: tea.KeyCtrlS}))
	assert.Equal(t, rsvp.MsgNoneSelected, model.alert)
	assert.Equal(t, 0, backend.invites)
}

func TestInviteFlow(t *testing.T) {
	backend := &fakeBackend{}
	model := newTestModel(t, backend, 0)
	model.screen = screenInvite

	pending, ok := model.search.Input("ali")
	require.True(t, ok)
	cmd := update(t, model, debounceMsg(pending))
	require.NotNil(t, cmd)
	update(t, model, cmd())
	require.Len(t, model.search.Results(), 1)

	model.focus = focusResults
	update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 1, model.selection.Len())
	assert.Empty(t, model.search.Results())

	cmd = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	assert.True(t, model.sending)
	update(t, model, cmd())

	assert.False(t, model.sending)
	assert.Equal(t, 1, backend.invites)
	assert.Equal(t, 0, model.selection.Len())
	assert.Equal(t, stateReady, model.rsvpState)
	assert.Equal(t, []string{"• alice - MAYBE"}, model.rsvpLines)
}

func TestStaleDebounceDoesNotSearch(t *testing.T) {
	model := newTestModel(t, &fakeBackend{}, 0)
	first, _ := model.search.Input("ali")
	model.search.Input("alic")
	assert.Nil(t, update(t, model, debounceMsg(first)))
}

func TestTaskDeleteNeedsConfirmation(t *testing.T) {
	backend := &fakeBackend{}
	model := newTestModel(t, backend, 0)

	cmd := update(t, model, tea.KeyMsg{Type: tea.KeyF3})
	require.NotNil(t, cmd)
	update(t, model, cmd())
	require.Len(t, model.taskList.Entries, 1)

	update(t, model, key("d"))
	require.NotNil(t, model.confirm)
	assert.Contains(t, model.View(), tasks.DeletePrompt)
	update(t, model, key("n"))
	assert.Nil(t, model.confirm)
	assert.Empty(t, backend.deletes)

	update(t, model, key("d"))
	cmd = update(t, model, key("y"))
	require.NotNil(t, cmd)
	update(t, model, cmd())
	assert.Equal(t, []string{"/tasks/5/delete/"}, backend.deletes)
	assert.False(t, model.taskBusy)
}

func TestTaskToggleReloadsList(t *testing.T) {
	backend := &fakeBackend{}
	model := newTestModel(t, backend, 0)
	model.screen = screenTasks
	update(t, model, taskListMsg{html: taskListHTML})

	cmd := update(t, model, key("t"))
	require.NotNil(t, cmd)
	update(t, model, cmd())
	assert.Equal(t, []string{"/tasks/5/toggle/"}, backend.toggles)
	assert.Equal(t, stateReady, model.taskState)
}

func TestTaskToggleFailureAlertsFixedMessage(t *testing.T) {
	backend := &fakeBackend{toggleErr: errors.New("toggle task: server returned 500")}
	model := newTestModel(t, backend, 0)
	model.screen = screenTasks
	update(t, model, taskListMsg{html: taskListHTML})

	cmd := update(t, model, key("t"))
	require.NotNil(t, cmd)
	update(t, model, cmd())
	assert.Equal(t, tasks.MsgToggleFailed, model.alert)
	assert.False(t, model.taskBusy)
}

func TestTaskModalCreateFlow(t *testing.T) {
	backend := &fakeBackend{
		formHTML: `<input type="hidden" name="csrfmiddlewaretoken" value="tok">
<label for="id_description">Description:</label>
<textarea name="description" id="id_description"></textarea>`,
		submit: tasks.SubmitResult{Success: true},
	}
	model := newTestModel(t, backend, 0)
	model.screen = screenTasks
	model.taskState = stateReady

	cmd := update(t, model, key("n"))
	require.NotNil(t, cmd)
	assert.Equal(t, tasks.Loading, model.modal.State)
	assert.Equal(t, tasks.TitleCreate, model.modal.Title)
	assert.Equal(t, "/events/3/tasks/create/", model.modal.Path)

	update(t, model, cmd())
	require.Equal(t, tasks.Open, model.modal.State)
	update(t, model, key("B"))
	update(t, model, key("y"))

	cmd = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	assert.Equal(t, tasks.Submitting, model.modal.State)

	cmd = update(t, model, cmd())
	assert.Equal(t, tasks.Closed, model.modal.State)
	require.Len(t, backend.submits, 1)
	assert.Equal(t, "By", backend.submits[0].Get("description"))
	assert.Equal(t, "tok", backend.submits[0].Get("csrfmiddlewaretoken"))

	require.NotNil(t, cmd)
	update(t, model, cmd())
	assert.Len(t, model.taskList.Entries, 1)
}

func TestEscClosesModalBeforeQuitting(t *testing.T) {
	model := newTestModel(t, &fakeBackend{}, 0)
	model.screen = screenTasks
	model.modal.Begin("/tasks/5/edit/", true)

	assert.Nil(t, update(t, model, tea.KeyMsg{Type: tea.KeyEsc}))
	assert.False(t, model.modal.IsOpen())
}
