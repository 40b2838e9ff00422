package tui

import (
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"eventchat/internal/chat"
	"eventchat/internal/poller"
	"eventchat/internal/rsvp"
	"eventchat/internal/tasks"
)

type (
	chatsLoadedMsg struct {
		chats []chat.Chat
		err   error
	}
	pollMsg poller.Result
	sentMsg struct {
		chatID int64
		key    string
		err    error
	}
	debounceMsg     rsvp.Pending
	searchResultMsg struct {
		pending rsvp.Pending
		users   []rsvp.User
		err     error
	}
	inviteDoneMsg struct {
		outcome rsvp.Outcome
		err     error
	}
	rsvpLoadedMsg struct {
		html string
		err  error
	}
	taskListMsg struct {
		html string
		err  error
	}
	taskFormMsg struct {
		html string
		err  error
	}
	taskSubmitMsg struct {
		result tasks.SubmitResult
		err    error
	}
	taskActionMsg struct {
		html string
		err  error
	}
)

// loadChatsCmd fetches the chat collection once; tabs are never rebuilt by polling.
func (model *Model) loadChatsCmd() tea.Cmd {
	backend, eventPK := model.backend, model.eventPK
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		chats, err := backend.Chats(ctx, eventPK)
		return chatsLoadedMsg{chats: chats, err: err}
	}
}

// readPollCmd blocks for the next poll result. Update re-arms it after every
// result so exactly one read is outstanding.
func (model *Model) readPollCmd() tea.Cmd {
	results, done := model.poller.Results(), model.ctx.Done()
	return func() tea.Msg {
		select {
		case result := <-results:
			return pollMsg(result)
		case <-done:
			return nil
		}
	}
}

func (model *Model) sendCmd(chatID int64, key, text string) tea.Cmd {
	backend := model.backend
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		err := backend.SendMessage(ctx, chatID, text)
		return sentMsg{chatID: chatID, key: key, err: err}
	}
}

func debounceCmd(p rsvp.Pending, window time.Duration) tea.Cmd {
	return tea.Tick(window, func(time.Time) tea.Msg {
		return debounceMsg(p)
	})
}

func (model *Model) searchCmd(p rsvp.Pending) tea.Cmd {
	backend := model.backend
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		users, err := backend.SearchUsers(ctx, p.Query)
		return searchResultMsg{pending: p, users: users, err: err}
	}
}

// inviteCmd hands Submit its own copy of the selection; Update resets the
// real one when the reply says it worked.
func (model *Model) inviteCmd() tea.Cmd {
	backend, eventPK := model.backend, model.eventPK
	sel := rsvp.NewSelection()
	for _, u := range model.selection.Users() {
		sel.Add(u)
	}
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		outcome, err := rsvp.Submit(ctx, backend, eventPK, sel)
		return inviteDoneMsg{outcome: outcome, err: err}
	}
}

func (model *Model) rsvpCmd() tea.Cmd {
	backend, eventPK := model.backend, model.eventPK
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		html, err := backend.RSVPList(ctx, eventPK)
		return rsvpLoadedMsg{html: html, err: err}
	}
}

func (model *Model) taskListCmd() tea.Cmd {
	backend, eventPK := model.backend, model.eventPK
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		html, err := backend.TaskList(ctx, eventPK)
		return taskListMsg{html: html, err: err}
	}
}

func (model *Model) taskFormCmd(path string) tea.Cmd {
	backend := model.backend
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		html, err := backend.TaskForm(ctx, path)
		return taskFormMsg{html: html, err: err}
	}
}

func (model *Model) taskSubmitCmd(path string, values url.Values) tea.Cmd {
	backend := model.backend
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		result, err := backend.SubmitTaskForm(ctx, path, values)
		return taskSubmitMsg{result: result, err: err}
	}
}

func (model *Model) taskDeleteCmd(path string) tea.Cmd {
	backend, eventPK := model.backend, model.eventPK
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		html, err := tasks.Delete(ctx, backend, eventPK, path, true)
		return taskActionMsg{html: html, err: err}
	}
}

func (model *Model) taskToggleCmd(path string) tea.Cmd {
	backend, eventPK := model.backend, model.eventPK
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		html, err := tasks.Toggle(ctx, backend, eventPK, path)
		return taskActionMsg{html: html, err: err}
	}
}
