package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"eventchat/internal/chat"
	"eventchat/internal/poller"
)

func newChatsCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List, watch and post to the chats of an event",
	}
	cmd.AddCommand(newChatsListCmd(a))
	cmd.AddCommand(newChatsWatchCmd(a))
	cmd.AddCommand(newChatsSendCmd(a))
	return cmd
}

func newChatsListCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the chats of the event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openEvent(cmd.Context())
			if err != nil {
				return err
			}
			chats, err := session.Client.Chats(cmd.Context(), session.Config.Event)
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				a.infof(cmd, "No chats for event %d", session.Config.Event)
				return nil
			}
			out := cmd.OutOrStdout()
			for _, c := range chats {
				fmt.Fprintf(out, "%d\t%s\t%d messages\n", c.ID, c.Name, len(c.Messages))
				if c.Warning != "" {
					fmt.Fprintf(out, "\t! %s\n", c.Warning)
				}
			}
			return nil
		},
	}
}

func newChatsWatchCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <chat-id>",
		Short: "Poll a chat and print it whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseID("chat", args[0])
			if err != nil {
				return err
			}
			session, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			loc, err := session.Config.Location()
			if err != nil {
				return err
			}
			p := poller.New(session.Client, poller.Config{
				Interval: session.Config.PollInterval,
				Timeout:  session.Config.RequestTimeout,
				Logger:   session.Log.Named("poller"),
			})
			a.infof(cmd, "Watching chat %d every %s (Ctrl+C to stop)", chatID, session.Config.PollInterval)
			err = watch(cmd.Context(), p, chatID, session.Username(), loc, cmd.OutOrStdout(), cmd.ErrOrStderr())
			a.infof(cmd, "%s", p.Stats())
			return err
		},
	}
}

// watch prints the chat's pane on the first poll and again on every change
// until ctx is done. Failed polls go to errOut and do not stop the watch.
func watch(ctx context.Context, p *poller.Poller, chatID int64, username string, loc *time.Location, out, errOut io.Writer) error {
	p.Start(ctx, []int64{chatID})
	defer p.Stop()

	var last *chat.Pane
	for {
		select {
		case <-ctx.Done():
			return nil
		case result := <-p.Results():
			if result.Err != nil {
				fmt.Fprintf(errOut, "poll failed: %v\n", result.Err)
				continue
			}
			pane := chat.RenderPane(result.Snapshot, username, loc)
			if last != nil && reflect.DeepEqual(*last, pane) {
				continue
			}
			if last != nil {
				fmt.Fprintln(out, "---")
			}
			printPane(out, pane)
			last = &pane
		}
	}
}

func newChatsSendCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "send <chat-id> <text>...",
		Short: "Post a message to a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseID("chat", args[0])
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if text == "" {
				return errors.New("message is empty")
			}
			session, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := session.Client.SendMessage(cmd.Context(), chatID, text); err != nil {
				return err
			}
			a.infof(cmd, "Sent to chat %d", chatID)
			return nil
		},
	}
}

func printPane(out io.Writer, pane chat.Pane) {
	if pane.HasWarning() {
		fmt.Fprintf(out, "! %s\n", pane.Warning)
	}
	for _, b := range pane.Bubbles {
		who := b.Label
		if who == "" {
			who = "you"
		}
		if b.Time != "" {
			fmt.Fprintf(out, "[%s] ", b.Time)
		}
		fmt.Fprintf(out, "%s: %s\n", who, b.Text)
	}
}
