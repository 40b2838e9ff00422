package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventchat/internal/api"
	"eventchat/internal/app"
	"eventchat/internal/fragment"
	"eventchat/internal/tasks"
)

func newTasksCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the task list of an event",
	}
	cmd.AddCommand(newTasksListCmd(a))
	cmd.AddCommand(newTasksFormCmd(a, false))
	cmd.AddCommand(newTasksFormCmd(a, true))
	cmd.AddCommand(newTasksDeleteCmd(a))
	cmd.AddCommand(newTasksToggleCmd(a))
	return cmd
}

func newTasksListCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the task list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openEvent(cmd.Context())
			if err != nil {
				return err
			}
			html, err := session.Client.TaskList(cmd.Context(), session.Config.Event)
			if err != nil {
				return err
			}
			return printTaskList(cmd.OutOrStdout(), html)
		},
	}
}

// newTasksFormCmd builds `tasks new` and `tasks edit <id>`. Without --set the
// form is printed and nothing is submitted.
func newTasksFormCmd(a *App, editing bool) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a task through the server's task form",
		Args:  cobra.NoArgs,
	}
	if editing {
		cmd.Use = "edit <task-id>"
		cmd.Short = "Edit a task through the server's task form"
		cmd.Args = cobra.ExactArgs(1)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		session, err := a.openEvent(cmd.Context())
		if err != nil {
			return err
		}
		ctx, eventPK := cmd.Context(), session.Config.Event
		path := api.CreateTaskPath(eventPK)
		if editing {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			path, err = taskPath(ctx, session, id, func(e tasks.Entry) string { return e.EditPath }, api.EditTaskPath)
			if err != nil {
				return err
			}
		}

		var modal tasks.Modal
		tasks.Load(ctx, session.Client, &modal, path, editing)
		if modal.Err != "" {
			return errors.New(modal.Err)
		}
		if len(sets) == 0 {
			printForm(cmd.OutOrStdout(), modal)
			return nil
		}
		for _, set := range sets {
			if err := applySet(&modal, set); err != nil {
				return err
			}
		}

		title := modal.Title
		closed, listHTML, err := tasks.Submit(ctx, session.Client, eventPK, &modal)
		if !closed {
			if err != nil {
				session.Log.Warn("task submit failed", zap.String("path", modal.Path), zap.Error(err))
			}
			printForm(cmd.ErrOrStderr(), modal)
			if modal.Err != "" {
				return errors.New(modal.Err)
			}
			return errors.New("task not saved")
		}
		a.infof(cmd, "%s: saved", title)
		if err != nil {
			return err
		}
		return printTaskList(cmd.OutOrStdout(), listHTML)
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a form field: name=value (checkboxes take true/false)")
	return cmd
}

func newTasksDeleteCmd(a *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			session, err := a.openEvent(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			path, err := taskPath(ctx, session, id, func(e tasks.Entry) string { return e.DeletePath }, api.DeleteTaskPath)
			if err != nil {
				return err
			}
			confirmed := yes || confirm(cmd, tasks.DeletePrompt)
			html, err := tasks.Delete(ctx, session.Client, session.Config.Event, path, confirmed)
			if errors.Is(err, tasks.ErrNotConfirmed) {
				a.infof(cmd, "Nothing deleted")
				return nil
			}
			if err != nil {
				return err
			}
			a.infof(cmd, "Deleted task %d", id)
			return printTaskList(cmd.OutOrStdout(), html)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newTasksToggleCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Flip a task between done and not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			session, err := a.openEvent(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			path, err := taskPath(ctx, session, id, func(e tasks.Entry) string { return e.TogglePath }, api.ToggleTaskPath)
			if err != nil {
				return err
			}
			html, err := tasks.Toggle(ctx, session.Client, session.Config.Event, path)
			if err != nil {
				return err
			}
			return printTaskList(cmd.OutOrStdout(), html)
		},
	}
}

// taskPath prefers the URL the task list links for id and falls back to the
// conventional route.
func taskPath(ctx context.Context, session *app.Session, id int64, pick func(tasks.Entry) string, fallback func(int64) string) (string, error) {
	html, err := session.Client.TaskList(ctx, session.Config.Event)
	if err != nil {
		return "", err
	}
	list, err := tasks.ParseList(html)
	if err != nil {
		return "", err
	}
	if entry, ok := list.Find(id); ok && pick(entry) != "" {
		return pick(entry), nil
	}
	return fallback(id), nil
}

func applySet(m *tasks.Modal, set string) error {
	name, value, ok := strings.Cut(set, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("invalid --set %q: want name=value", set)
	}
	field, found := lo.Find(m.Form.Fields, func(f fragment.Field) bool { return f.Name == name })
	if !found {
		return fmt.Errorf("form has no field %q", name)
	}
	switch field.Kind {
	case fragment.KindCheckbox:
		want, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if field.Checked != want {
			m.Toggle(name)
		}
	case fragment.KindSelect:
		opt, found := lo.Find(field.Options, func(o fragment.Option) bool {
			return o.Value == value || strings.EqualFold(o.Label, value)
		})
		if !found {
			return fmt.Errorf("field %s: no option %q", name, value)
		}
		m.SetValue(name, opt.Value)
	default:
		m.SetValue(name, value)
	}
	return nil
}

func printForm(out io.Writer, m tasks.Modal) {
	fmt.Fprintln(out, m.Title)
	if m.Err != "" {
		fmt.Fprintf(out, "  %s\n", m.Err)
		return
	}
	for _, msg := range m.Form.Errors {
		fmt.Fprintf(out, "  ! %s\n", msg)
	}
	for _, field := range m.Form.Visible() {
		value := field.Value
		switch field.Kind {
		case fragment.KindCheckbox:
			value = strconv.FormatBool(field.Checked)
		case fragment.KindSelect:
			labels := lo.Map(field.Options, func(o fragment.Option, _ int) string {
				if o.Selected {
					return "*" + o.Value + "=" + o.Label
				}
				return o.Value + "=" + o.Label
			})
			value = strings.Join(labels, ", ")
		}
		fmt.Fprintf(out, "  %s (%s, %s): %s\n", field.Label, field.Name, field.Kind, value)
	}
}

func printTaskList(out io.Writer, html string) error {
	list, err := tasks.ParseList(html)
	if err != nil {
		return err
	}
	if len(list.Entries) == 0 {
		for _, line := range list.Lines {
			fmt.Fprintln(out, line)
		}
		return nil
	}
	for _, e := range list.Entries {
		fmt.Fprintf(out, "%d\t%s\n", e.ID, e.Text)
	}
	return nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
