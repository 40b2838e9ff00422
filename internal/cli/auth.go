package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(a *App) *cobra.Command {
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Sign in and keep the session cookie in the state file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			username := session.Config.Username
			if len(args) == 1 {
				username = strings.TrimSpace(args[0])
			}
			if username == "" {
				return errors.New("username required: eventchat login <username>")
			}
			password := session.Config.Password
			if password == "" || passwordStdin {
				if password, err = readPassword(cmd, passwordStdin); err != nil {
					return err
				}
			}
			if err := session.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			a.infof(cmd, "Logged in to %s as %s", session.Config.BaseURL, username)
			return nil
		},
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin instead of prompting")
	return cmd
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored cookies and username for the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := session.Logout(cmd.Context()); err != nil {
				return err
			}
			a.infof(cmd, "Logged out of %s", session.Config.BaseURL)
			return nil
		},
	}
}

// readPassword prompts without echo on a terminal and otherwise reads one
// line from the command's input.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
