// Package tui is the terminal front end: chat tabs with live polling, the
// invite form with the RSVP list, and the task list with its modal.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"eventchat/internal/chat"
	"eventchat/internal/poller"
	"eventchat/internal/rsvp"
	"eventchat/internal/tasks"
)

// Backend is every endpoint the screens call. *api.Client satisfies it.
type Backend interface {
	Chats(ctx context.Context, eventPK int64) ([]chat.Chat, error)
	poller.Fetcher
	SendMessage(ctx context.Context, chatID int64, text string) error
	rsvp.Searcher
	rsvp.Inviter
	tasks.Backend
}

// Options configures a Model.
type Options struct {
	Backend        Backend
	Username       string
	EventPK        int64
	ActiveChat     int64
	PollInterval   time.Duration
	RequestTimeout time.Duration
	SearchDebounce time.Duration
	SearchMinChars int
	Location       *time.Location
	Logger         *zap.Logger
	// Poller overrides the default poller, mostly for tests.
	Poller *poller.Poller
}

type screen int

const (
	screenChat screen = iota
	screenInvite
	screenTasks
)

var screenNames = []string{"Chat", "Invite", "Tasks"}

type loadState int

const (
	stateIdle loadState = iota
	stateLoading
	stateReady
	stateFailed
)

type inviteFocus int

const (
	focusSearch inviteFocus = iota
	focusResults
	focusSelected
)

// Model is the root bubbletea model.
type Model struct {
	backend  Backend
	username string
	eventPK  int64
	activeID int64
	timeout  time.Duration
	loc      *time.Location
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	screen  screen
	spinner spinner.Model
	width   int
	height  int
	// alert is the one-line equivalent of a browser alert; any key clears it.
	alert string

	// chat
	chatState loadState
	chatErr   error
	tabs      *chat.TabSet
	poller    *poller.Poller
	input     textinput.Model

	// invite
	searchInput textinput.Model
	search      *rsvp.Search
	selection   *rsvp.Selection
	focus       inviteFocus
	cursor      int
	sending     bool
	rsvpState   loadState
	rsvpLines   []string

	// tasks
	taskState  loadState
	taskList   tasks.List
	taskCursor int
	modal      tasks.Modal
	fieldIdx   int
	fieldInput textinput.Model
	confirm    *tasks.Entry
	taskBusy   bool
}

func NewModel(opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	p := opts.Poller
	if p == nil {
		p = poller.New(opts.Backend, poller.Config{
			Interval: opts.PollInterval,
			Timeout:  opts.RequestTimeout,
			Logger:   opts.Logger.Named("poller"),
		})
	}

	input := textinput.New()
	input.Placeholder = "Type your message…"
	input.CharLimit = 0
	input.Prompt = "> "
	input.Focus()

	searchInput := textinput.New()
	searchInput.Placeholder = "Search users by name…"
	searchInput.Prompt = "search> "

	fieldInput := textinput.New()
	fieldInput.Prompt = "> "

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		backend:     opts.Backend,
		username:    opts.Username,
		eventPK:     opts.EventPK,
		activeID:    opts.ActiveChat,
		timeout:     opts.RequestTimeout,
		loc:         opts.Location,
		log:         opts.Logger,
		ctx:         ctx,
		cancel:      cancel,
		spinner:     spin,
		chatState:   stateLoading,
		tabs:        chat.NewTabSet(nil, 0, opts.Username, opts.Location),
		poller:      p,
		input:       input,
		searchInput: searchInput,
		search:      rsvp.NewSearch(opts.SearchMinChars, opts.SearchDebounce),
		selection:   rsvp.NewSelection(),
		fieldInput:  fieldInput,
	}
}

func (model *Model) Init() tea.Cmd {
	return tea.Batch(model.spinner.Tick, model.loadChatsCmd())
}

// Shutdown stops polling and cancels in-flight requests.
func (model *Model) Shutdown() {
	model.cancel()
	model.poller.Stop()
}

func (model *Model) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(model.ctx, model.timeout)
}
