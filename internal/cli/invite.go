package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"eventchat/internal/fragment"
	"eventchat/internal/rsvp"
)

func newUsersCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Look up users to invite",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Search users by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("query is empty")
			}
			session, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			users, err := session.Client.SearchUsers(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				a.infof(cmd, "No users match %q", query)
				return nil
			}
			for _, u := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", u.ID, u.Display())
			}
			return nil
		},
	})
	return cmd
}

func newInviteCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "invite <user-id>...",
		Short: "Invite users to the event as MAYBE",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := rsvp.NewSelection()
			for _, arg := range args {
				id, err := parseID("user", arg)
				if err != nil {
					return err
				}
				sel.Add(rsvp.User{ID: id})
			}
			session, err := a.openEvent(cmd.Context())
			if err != nil {
				return err
			}
			outcome, err := rsvp.Submit(cmd.Context(), session.Client, session.Config.Event, sel)
			if err != nil {
				return err
			}
			a.infof(cmd, "%s", outcome.Result.Message)
			if outcome.RSVPErr != nil {
				return fmt.Errorf("%s: %w", rsvp.MsgRSVPLoadError, outcome.RSVPErr)
			}
			return printFragment(cmd.OutOrStdout(), outcome.RSVPHTML)
		},
	}
}

func newRSVPsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rsvps",
		Short: "Print the RSVP list of the event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openEvent(cmd.Context())
			if err != nil {
				return err
			}
			html, err := session.Client.RSVPList(cmd.Context(), session.Config.Event)
			if err != nil {
				return fmt.Errorf("%s: %w", rsvp.MsgRSVPLoadError, err)
			}
			return printFragment(cmd.OutOrStdout(), html)
		},
	}
}

func printFragment(out io.Writer, html string) error {
	lines, err := fragment.Lines(html)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
