package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"eventchat/internal/chat"
	"eventchat/internal/fragment"
	"eventchat/internal/rsvp"
	"eventchat/internal/tasks"
)

var (
	appTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	headerStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	tabStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	activeTabStyle    = tabStyle.Copy().Foreground(lipgloss.Color("213")).Bold(true).Underline(true)
	boxStyle          = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	modalStyle        = lipgloss.NewStyle().BorderStyle(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("213")).Padding(1, 2).MarginTop(1)
	warningStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Bold(true).Padding(0, 1)
	alertStyle        = lipgloss.NewStyle().BorderStyle(lipgloss.ThickBorder()).BorderForeground(lipgloss.Color("196")).Foreground(lipgloss.Color("196")).Bold(true).Padding(0, 2).MarginTop(1)
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	loadingStyle      = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle        = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	timestampStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle     = lipgloss.NewStyle().Bold(true)
	messageBodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	ownBodyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("24")).Padding(0, 1)
	pendingStyle      = ownBodyStyle.Copy().Italic(true).Background(lipgloss.Color("238"))
	itemStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	sectionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Bold(true).MarginTop(1)
	dividerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
	userColorPalette  = []lipgloss.Color{
		lipgloss.Color("45"),
		lipgloss.Color("81"),
		lipgloss.Color("141"),
		lipgloss.Color("98"),
		lipgloss.Color("63"),
		lipgloss.Color("135"),
		lipgloss.Color("32"),
	}
)

const defaultPaneWidth = 72

func (model *Model) View() string {
	sections := []string{model.renderHeader()}
	switch model.screen {
	case screenInvite:
		sections = append(sections, model.renderInviteView())
	case screenTasks:
		sections = append(sections, model.renderTasksView())
	default:
		sections = append(sections, model.renderChatView())
	}
	if model.alert != "" {
		sections = append(sections, alertStyle.Render(model.alert+"  (any key)"))
	}
	sections = append(sections, statusStyle.Render(model.poller.Stats().String()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model *Model) renderHeader() string {
	segments := []string{"EventChat"}
	for i, name := range screenNames {
		label := fmt.Sprintf("F%d %s", i+1, name)
		if screen(i) == model.screen {
			label = "[" + label + "]"
		}
		segments = append(segments, label)
	}
	if model.username != "" {
		segments = append(segments, "User "+model.username)
	}
	segments = append(segments, fmt.Sprintf("Event %d", model.eventPK))
	return headerStyle.Render(strings.Join(segments, dividerStyle))
}

func (model *Model) paneWidth() int {
	if model.width > 8 {
		return model.width - 8
	}
	return defaultPaneWidth
}

func (model *Model) renderChatView() string {
	switch model.chatState {
	case stateLoading:
		return loadingStyle.Render(model.spinner.View() + " Loading chats…")
	case stateFailed:
		return errorStyle.Render("Could not load chats: " + model.chatErr.Error())
	}
	if model.tabs.Len() == 0 {
		return hintStyle.Render("This event has no chats.")
	}

	var tabs []string
	for _, panel := range model.tabs.Panels() {
		style := tabStyle
		if model.tabs.IsActive(panel.ChatID) {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(panel.Name))
	}
	sections := []string{lipgloss.JoinHorizontal(lipgloss.Top, tabs...)}

	panel := model.tabs.Active()
	if panel.Pane.HasWarning() {
		sections = append(sections, warningStyle.Render(panel.Pane.Warning))
	}
	sections = append(sections, boxStyle.Render(renderPane(panel.Pane, model.paneWidth())))
	sections = append(sections,
		inputBoxStyle.Render(model.input.View()),
		hintStyle.Render("Enter send • Tab/Shift+Tab switch chat • F2 invite • F3 tasks • Esc quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderPane(pane chat.Pane, width int) string {
	if len(pane.Bubbles) == 0 {
		return hintStyle.Render("No messages yet.")
	}
	lines := make([]string, 0, len(pane.Bubbles))
	for _, bubble := range pane.Bubbles {
		lines = append(lines, renderBubble(bubble, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderBubble draws one message. Own messages sit on the right without a
// name; everyone else's are on the left with a colored name.
func renderBubble(bubble chat.Bubble, width int) string {
	stamp := timestampStyle.Render(bubble.Time)
	if bubble.Align == chat.AlignRight {
		style := ownBodyStyle
		if bubble.Pending {
			style = pendingStyle
		}
		line := lipgloss.JoinHorizontal(lipgloss.Left, style.Render(bubble.Text), " ", stamp)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, line)
	}
	name := usernameStyle.Copy().Foreground(colorForUser(bubble.Label)).Render(bubble.Label)
	body := messageBodyStyle.Render(strings.ReplaceAll(bubble.Text, "\n", "\n   "))
	return lipgloss.JoinHorizontal(lipgloss.Left, name, ": ", body, " ", stamp)
}

func (model *Model) renderInviteView() string {
	sections := []string{appTitleStyle.Render("Invite users")}
	sections = append(sections, inputBoxStyle.Render(model.searchInput.View()))

	results := model.search.Results()
	if len(results) > 0 {
		sections = append(sections, sectionStyle.Render("Results"), renderUsers(results, model.focus == focusResults, model.cursor))
	}

	sections = append(sections, sectionStyle.Render(fmt.Sprintf("Selected (%d)", model.selection.Len())))
	if model.selection.Len() == 0 {
		sections = append(sections, hintStyle.Render("Nobody selected yet."))
	} else {
		sections = append(sections, renderUsers(model.selection.Users(), model.focus == focusSelected, model.cursor))
	}
	if model.sending {
		sections = append(sections, loadingStyle.Render(model.spinner.View()+" Sending..."))
	}

	sections = append(sections, sectionStyle.Render("RSVPs"))
	switch model.rsvpState {
	case stateLoading:
		sections = append(sections, loadingStyle.Render(rsvp.MsgRSVPLoading))
	case stateFailed:
		sections = append(sections, errorStyle.Render(rsvp.MsgRSVPLoadError))
	case stateReady:
		sections = append(sections, boxStyle.Render(strings.Join(model.rsvpLines, "\n")))
	}
	sections = append(sections, hintStyle.Render("Tab focus • Enter add • d remove • Ctrl+S send invitations • Ctrl+L reload RSVPs"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderUsers(users []rsvp.User, focused bool, cursor int) string {
	lines := make([]string, 0, len(users))
	for i, u := range users {
		if focused && i == clamp(cursor, len(users)) {
			lines = append(lines, selectedItemStyle.Render("➤ "+u.Display()))
			continue
		}
		lines = append(lines, itemStyle.Render("  "+u.Display()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (model *Model) renderTasksView() string {
	sections := []string{appTitleStyle.Render("Tasks")}
	switch model.taskState {
	case stateLoading:
		sections = append(sections, loadingStyle.Render(model.spinner.View()+" Loading tasks…"))
	case stateFailed:
		sections = append(sections, errorStyle.Render("Failed to load tasks."))
	case stateReady:
		sections = append(sections, boxStyle.Render(model.renderTaskList()))
	}
	if model.confirm != nil {
		sections = append(sections, alertStyle.Render(tasks.DeletePrompt+"  (y/n)"))
	}
	if model.modal.IsOpen() {
		sections = append(sections, model.renderModal())
	} else {
		sections = append(sections, hintStyle.Render("↑/↓ select • n new • e edit • space toggle • d delete • r reload"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model *Model) renderTaskList() string {
	entries := model.taskList.Entries
	if len(entries) == 0 {
		if len(model.taskList.Lines) == 0 {
			return hintStyle.Render("No tasks yet.")
		}
		return strings.Join(model.taskList.Lines, "\n")
	}
	lines := make([]string, 0, len(entries))
	for i, entry := range entries {
		text := entry.Text
		if text == "" {
			text = fmt.Sprintf("Task #%d", entry.ID)
		}
		if i == model.taskCursor {
			lines = append(lines, selectedItemStyle.Render("➤ "+text))
			continue
		}
		lines = append(lines, itemStyle.Render("  "+text))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (model *Model) renderModal() string {
	m := model.modal
	sections := []string{appTitleStyle.Render(m.Title)}
	switch {
	case m.State == tasks.Loading:
		sections = append(sections, loadingStyle.Render(model.spinner.View()+" Loading…"))
	case m.Err != "":
		sections = append(sections, errorStyle.Render(m.Err), hintStyle.Render("Enter or Esc to close"))
	default:
		for _, line := range m.Form.Errors {
			sections = append(sections, errorStyle.Render(line))
		}
		for i, field := range m.Form.Visible() {
			sections = append(sections, model.renderField(field, i == model.fieldIdx))
		}
		if m.State == tasks.Submitting {
			sections = append(sections, loadingStyle.Render(model.spinner.View()+" Saving…"))
		} else {
			sections = append(sections, hintStyle.Render("Tab next field • Space toggle • ←/→ choose • Ctrl+S save • Esc cancel"))
		}
	}
	return modalStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (model *Model) renderField(field fragment.Field, focused bool) string {
	label := itemStyle.Render(field.Label + ":")
	if focused {
		label = selectedItemStyle.Render(field.Label + ":")
	}
	var value string
	switch field.Kind {
	case fragment.KindCheckbox:
		value = "[ ]"
		if field.Checked {
			value = "[x]"
		}
	case fragment.KindSelect:
		value = "‹ " + selectedLabel(field) + " ›"
	default:
		if focused {
			value = model.fieldInput.View()
		} else {
			value = field.Value
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, label, " ", value)
}

func selectedLabel(field fragment.Field) string {
	for _, opt := range field.Options {
		if opt.Value == field.Value {
			return opt.Label
		}
	}
	return field.Value
}

func colorForUser(name string) lipgloss.Color {
	if name == "" {
		return userColorPalette[0]
	}
	var sum int
	for _, r := range name {
		sum += int(r)
	}
	return userColorPalette[sum%len(userColorPalette)]
}
