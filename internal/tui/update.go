package tui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"eventchat/internal/api"
	"eventchat/internal/chat"
	"eventchat/internal/fragment"
	"eventchat/internal/rsvp"
	"eventchat/internal/tasks"
)

const msgSendFailed = "Failed to send message."

func (model *Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := message.(type) {
	case tea.WindowSizeMsg:
		model.width, model.height = typed.Width, typed.Height
		return model, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		model.spinner, cmd = model.spinner.Update(typed)
		return model, cmd
	case tea.KeyMsg:
		return model.handleKey(typed)

	case chatsLoadedMsg:
		if typed.err != nil {
			model.chatState = stateFailed
			model.chatErr = typed.err
			model.log.Error("load chats", zap.Int64("event", model.eventPK), zap.Error(typed.err))
			return model, nil
		}
		model.chatState = stateReady
		model.tabs = chat.NewTabSet(typed.chats, model.activeID, model.username, model.loc)
		if model.tabs.Len() == 0 {
			return model, nil
		}
		model.poller.Start(model.ctx, model.tabs.IDs())
		return model, model.readPollCmd()
	case pollMsg:
		model.applyPoll(typed)
		return model, model.readPollCmd()
	case sentMsg:
		if typed.err != nil {
			model.log.Warn("send failed", zap.Int64("chat_id", typed.chatID), zap.String("key", typed.key), zap.Error(typed.err))
			model.alert = msgSendFailed
			return model, nil
		}
		model.poller.Refresh(typed.chatID)
		return model, nil

	case debounceMsg:
		pending := rsvp.Pending(typed)
		if !model.search.Due(pending) {
			return model, nil
		}
		return model, model.searchCmd(pending)
	case searchResultMsg:
		if typed.err != nil {
			model.log.Warn("search users", zap.String("query", typed.pending.Query), zap.Error(typed.err))
			return model, nil
		}
		if model.search.Accept(typed.pending, typed.users) {
			model.cursor = 0
		}
		return model, nil
	case inviteDoneMsg:
		model.sending = false
		if typed.err != nil {
			model.log.Warn("invite", zap.Int64("event", model.eventPK), zap.Error(typed.err))
			if errors.Is(typed.err, rsvp.ErrNoneSelected) {
				model.alert = rsvp.MsgNoneSelected
			} else {
				model.alert = rsvp.MsgInviteFailed
			}
			return model, nil
		}
		model.selection.Reset()
		model.cursor = 0
		model.applyRSVP(typed.outcome.RSVPHTML, typed.outcome.RSVPErr)
		return model, nil
	case rsvpLoadedMsg:
		model.applyRSVP(typed.html, typed.err)
		return model, nil

	case taskListMsg:
		model.applyTaskList(typed.html, typed.err)
		return model, nil
	case taskFormMsg:
		model.modal.Loaded(typed.html, typed.err)
		if typed.err != nil {
			model.log.Warn("load task form", zap.String("path", model.modal.Path), zap.Error(typed.err))
		}
		model.fieldIdx = 0
		model.syncFieldInput()
		return model, nil
	case taskSubmitMsg:
		if typed.err != nil {
			model.log.Warn("submit task", zap.Error(typed.err))
		}
		if model.modal.Submitted(typed.result, typed.err) {
			model.taskState = stateLoading
			return model, model.taskListCmd()
		}
		model.fieldIdx = 0
		model.syncFieldInput()
		return model, nil
	case taskActionMsg:
		model.taskBusy = false
		if typed.err != nil {
			model.log.Warn("task action", zap.Int("status", api.StatusOf(typed.err)), zap.Error(typed.err))
			model.alert = typed.err.Error()
			var actionErr *tasks.ActionError
			if errors.As(typed.err, &actionErr) {
				model.alert = actionErr.Message
			}
			return model, nil
		}
		model.applyTaskList(typed.html, nil)
		return model, nil
	}
	return model, nil
}

func (model *Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		model.Shutdown()
		return model, tea.Quit
	}
	if model.alert != "" {
		model.alert = ""
		return model, nil
	}
	switch key.Type {
	case tea.KeyEsc:
		if model.closeOverlay() {
			return model, nil
		}
		model.Shutdown()
		return model, tea.Quit
	case tea.KeyF1:
		return model, model.switchTo(screenChat)
	case tea.KeyF2:
		return model, model.switchTo(screenInvite)
	case tea.KeyF3:
		return model, model.switchTo(screenTasks)
	case tea.KeyCtrlT:
		if !model.modal.IsOpen() && model.confirm == nil {
			return model, model.switchTo((model.screen + 1) % screen(len(screenNames)))
		}
	}

	switch model.screen {
	case screenInvite:
		return model.handleInviteKey(key)
	case screenTasks:
		return model.handleTasksKey(key)
	default:
		return model.handleChatKey(key)
	}
}

// closeOverlay dismisses the delete prompt or the task modal.
func (model *Model) closeOverlay() bool {
	switch {
	case model.confirm != nil:
		model.confirm = nil
		return true
	case model.modal.IsOpen():
		model.modal.Close()
		model.fieldInput.Blur()
		return true
	}
	return false
}

func (model *Model) switchTo(target screen) tea.Cmd {
	model.screen = target
	model.input.Blur()
	model.searchInput.Blur()
	switch target {
	case screenChat:
		return model.input.Focus()
	case screenInvite:
		model.focus = focusSearch
		focus := model.searchInput.Focus()
		if model.rsvpState == stateIdle {
			model.rsvpState = stateLoading
			return tea.Batch(focus, model.rsvpCmd())
		}
		return focus
	case screenTasks:
		if model.taskState == stateIdle {
			model.taskState = stateLoading
			return model.taskListCmd()
		}
	}
	return nil
}

func (model *Model) handleChatKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyTab:
		model.tabs.Step(1)
		return model, nil
	case tea.KeyShiftTab:
		model.tabs.Step(-1)
		return model, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(model.input.Value())
		panel := model.tabs.Active()
		if text == "" || panel == nil {
			return model, nil
		}
		bubbleKey := panel.AppendPending(text, time.Now(), model.loc)
		model.input.SetValue("")
		return model, model.sendCmd(panel.ChatID, bubbleKey, text)
	}
	var cmd tea.Cmd
	model.input, cmd = model.input.Update(key)
	return model, cmd
}

func (model *Model) applyPoll(result pollMsg) {
	panel, ok := model.tabs.Panel(result.ChatID)
	if !ok || result.Err != nil {
		return
	}
	panel.Apply(result.Snapshot, model.username, model.loc)
	panel.Seq = result.Seq
}

func (model *Model) handleInviteKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyTab:
		model.focus = (model.focus + 1) % 3
		model.cursor = 0
		return model, model.focusSearchIf()
	case tea.KeyShiftTab:
		model.focus = (model.focus + 2) % 3
		model.cursor = 0
		return model, model.focusSearchIf()
	case tea.KeyCtrlS:
		if model.sending {
			return model, nil
		}
		if model.selection.Len() == 0 {
			model.alert = rsvp.MsgNoneSelected
			return model, nil
		}
		model.sending = true
		return model, model.inviteCmd()
	case tea.KeyCtrlL:
		model.rsvpState = stateLoading
		return model, model.rsvpCmd()
	}

	switch model.focus {
	case focusResults:
		results := model.search.Results()
		switch key.Type {
		case tea.KeyUp:
			model.cursor = clamp(model.cursor-1, len(results))
		case tea.KeyDown:
			model.cursor = clamp(model.cursor+1, len(results))
		case tea.KeyEnter:
			if len(results) == 0 {
				return model, nil
			}
			model.selection.Add(results[clamp(model.cursor, len(results))])
			model.searchInput.SetValue("")
			model.search.Clear()
			model.focus = focusSearch
			return model, model.searchInput.Focus()
		}
		return model, nil
	case focusSelected:
		selected := model.selection.Users()
		switch key.String() {
		case "up":
			model.cursor = clamp(model.cursor-1, len(selected))
		case "down":
			model.cursor = clamp(model.cursor+1, len(selected))
		case "d", "delete", "backspace":
			if len(selected) > 0 {
				model.selection.Remove(selected[clamp(model.cursor, len(selected))].ID)
				model.cursor = clamp(model.cursor, model.selection.Len())
			}
		}
		return model, nil
	}

	if key.Type == tea.KeyEnter || key.Type == tea.KeyDown {
		if len(model.search.Results()) > 0 {
			model.focus = focusResults
			model.cursor = 0
			model.searchInput.Blur()
		}
		return model, nil
	}
	before := model.searchInput.Value()
	var cmd tea.Cmd
	model.searchInput, cmd = model.searchInput.Update(key)
	if value := model.searchInput.Value(); value != before {
		if pending, ok := model.search.Input(value); ok {
			return model, tea.Batch(cmd, debounceCmd(pending, model.search.Window))
		}
	}
	return model, cmd
}

func (model *Model) focusSearchIf() tea.Cmd {
	if model.focus == focusSearch {
		return model.searchInput.Focus()
	}
	model.searchInput.Blur()
	return nil
}

func (model *Model) applyRSVP(html string, err error) {
	if err != nil {
		model.log.Warn("reload rsvps", zap.Int64("event", model.eventPK), zap.Error(err))
		model.rsvpState = stateFailed
		model.rsvpLines = nil
		return
	}
	lines, perr := fragment.Lines(html)
	if perr != nil {
		model.rsvpState = stateFailed
		return
	}
	model.rsvpState = stateReady
	model.rsvpLines = lines
}

func (model *Model) handleTasksKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model.confirm != nil {
		switch key.String() {
		case "y", "Y":
			entry := *model.confirm
			model.confirm = nil
			model.taskBusy = true
			return model, model.taskDeleteCmd(deletePath(entry))
		case "n", "N":
			model.confirm = nil
		}
		return model, nil
	}
	if model.modal.IsOpen() {
		return model.handleModalKey(key)
	}
	if model.taskBusy {
		return model, nil
	}

	entries := model.taskList.Entries
	switch key.String() {
	case "up", "k":
		model.taskCursor = clamp(model.taskCursor-1, len(entries))
	case "down", "j":
		model.taskCursor = clamp(model.taskCursor+1, len(entries))
	case "r":
		model.taskState = stateLoading
		return model, model.taskListCmd()
	case "n":
		path := model.taskList.CreatePath
		if path == "" {
			path = api.CreateTaskPath(model.eventPK)
		}
		return model, model.openModal(path, false)
	case "e", "enter":
		if entry, ok := model.selectedTask(); ok {
			path := entry.EditPath
			if path == "" {
				path = api.EditTaskPath(entry.ID)
			}
			return model, model.openModal(path, true)
		}
	case "d":
		if entry, ok := model.selectedTask(); ok {
			model.confirm = &entry
		}
	case " ", "t":
		if entry, ok := model.selectedTask(); ok {
			path := entry.TogglePath
			if path == "" {
				path = api.ToggleTaskPath(entry.ID)
			}
			model.taskBusy = true
			return model, model.taskToggleCmd(path)
		}
	}
	return model, nil
}

func (model *Model) openModal(path string, editing bool) tea.Cmd {
	model.modal.Begin(path, editing)
	model.fieldIdx = 0
	return model.taskFormCmd(path)
}

func (model *Model) selectedTask() (tasks.Entry, bool) {
	entries := model.taskList.Entries
	if len(entries) == 0 {
		return tasks.Entry{}, false
	}
	return entries[clamp(model.taskCursor, len(entries))], true
}

func deletePath(entry tasks.Entry) string {
	if entry.DeletePath != "" {
		return entry.DeletePath
	}
	return api.DeleteTaskPath(entry.ID)
}

func (model *Model) handleModalKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model.modal.State != tasks.Open {
		return model, nil
	}
	if model.modal.Err != "" {
		if key.Type == tea.KeyEnter {
			model.closeOverlay()
		}
		return model, nil
	}
	fields := model.modal.Form.Visible()
	switch key.Type {
	case tea.KeyCtrlS:
		path, values, err := model.modal.BeginSubmit()
		if err != nil {
			return model, nil
		}
		model.fieldInput.Blur()
		return model, model.taskSubmitCmd(path, values)
	case tea.KeyTab, tea.KeyDown:
		if len(fields) > 0 {
			model.fieldIdx = (model.fieldIdx + 1) % len(fields)
			return model, model.syncFieldInput()
		}
		return model, nil
	case tea.KeyShiftTab, tea.KeyUp:
		if len(fields) > 0 {
			model.fieldIdx = (model.fieldIdx - 1 + len(fields)) % len(fields)
			return model, model.syncFieldInput()
		}
		return model, nil
	}

	field, ok := model.currentField()
	if !ok {
		return model, nil
	}
	switch field.Kind {
	case fragment.KindCheckbox:
		if key.Type == tea.KeySpace || key.Type == tea.KeyEnter {
			model.modal.Toggle(field.Name)
		}
		return model, nil
	case fragment.KindSelect:
		switch key.Type {
		case tea.KeyLeft:
			model.modal.Cycle(field.Name, -1)
		case tea.KeyRight, tea.KeySpace, tea.KeyEnter:
			model.modal.Cycle(field.Name, 1)
		}
		return model, nil
	}
	var cmd tea.Cmd
	model.fieldInput, cmd = model.fieldInput.Update(key)
	model.modal.SetValue(field.Name, model.fieldInput.Value())
	return model, cmd
}

func (model *Model) currentField() (fragment.Field, bool) {
	fields := model.modal.Form.Visible()
	if len(fields) == 0 {
		return fragment.Field{}, false
	}
	return fields[clamp(model.fieldIdx, len(fields))], true
}

// syncFieldInput points the shared text input at the focused field.
func (model *Model) syncFieldInput() tea.Cmd {
	field, ok := model.currentField()
	if !ok || (field.Kind != fragment.KindText && field.Kind != fragment.KindTextArea) {
		model.fieldInput.Blur()
		return nil
	}
	model.fieldInput.SetValue(field.Value)
	model.fieldInput.CursorEnd()
	return model.fieldInput.Focus()
}

func (model *Model) applyTaskList(html string, err error) {
	if err != nil {
		model.log.Warn("reload tasks", zap.Int64("event", model.eventPK), zap.Error(err))
		model.taskState = stateFailed
		return
	}
	list, perr := tasks.ParseList(html)
	if perr != nil {
		model.taskState = stateFailed
		return
	}
	model.taskList = list
	model.taskState = stateReady
	model.taskCursor = clamp(model.taskCursor, len(list.Entries))
}

func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
