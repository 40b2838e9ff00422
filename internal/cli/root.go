package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eventchat/internal/app"
)

// App carries what every command shares: the viper instance the persistent
// flags are bound to and the session, opened on first use.
type App struct {
	v          *viper.Viper
	configFile string

	session *app.Session
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"base-url":    "base_url",
	"username":    "username",
	"event":       "event",
	"active-chat": "active_chat",
	"state-path":  "state_path",
	"log-file":    "log_file",
	"log-level":   "log_level",
	"timezone":    "timezone",
	"quiet":       "quiet",
}

func newRootCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eventchat",
		Short:         "Terminal client for event chats, invitations and tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Sign in once; the session cookie is kept in the state file
  eventchat login alice --base-url https://events.example.com

  # Open the chat panel of event 12
  eventchat --event 12

  # Scriptable commands
  eventchat --event 12 chats list
  eventchat --event 12 tasks toggle 7
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return a.runTUI(cmd.Context())
			}
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (default: ./eventchat.yaml, then next to the state file)")
	flags.String("base-url", "", "Server root, e.g. https://events.example.com")
	flags.String("username", "", "Username whose messages are shown as your own")
	flags.Int64("event", 0, "Event id the chats, invitations and tasks belong to")
	flags.Int64("active-chat", 0, "Chat id to open first (default: the first chat)")
	flags.String("state-path", "", "SQLite file holding cookies and profiles")
	flags.String("log-file", "", "Log file (default: eventchat.log next to the state file)")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("timezone", "", "IANA zone for message timestamps (default: local)")
	flags.Bool("quiet", false, "Suppress informational output")
	for name, key := range flagKeys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	cmd.AddCommand(newChatCmd(a))
	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newChatsCmd(a))
	cmd.AddCommand(newUsersCmd(a))
	cmd.AddCommand(newInviteCmd(a))
	cmd.AddCommand(newRSVPsCmd(a))
	cmd.AddCommand(newTasksCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with ctx, typically cancelled on SIGINT.
func Execute(ctx context.Context, args []string) error {
	a := &App{v: viper.New()}
	defer a.close()
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newChatCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat, invite and task screens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
}

func (a *App) runTUI(ctx context.Context) error {
	session, err := a.open(ctx)
	if err != nil {
		return err
	}
	return app.RunClient(session)
}

// open loads the config and the session once per process.
func (a *App) open(ctx context.Context) (*app.Session, error) {
	if a.session != nil {
		return a.session, nil
	}
	cfg, err := app.LoadConfig(a.v, a.configFile)
	if err != nil {
		return nil, err
	}
	session, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.session = session
	return session, nil
}

// openEvent is open for commands scoped to the configured event.
func (a *App) openEvent(ctx context.Context) (*app.Session, error) {
	session, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := session.Config.RequireEvent(); err != nil {
		return nil, err
	}
	return session, nil
}

func (a *App) close() error {
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.session = nil
	return err
}

// infof prints to stderr unless --quiet was given.
func (a *App) infof(cmd *cobra.Command, format string, args ...interface{}) {
	if a.v.GetBool("quiet") {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}
