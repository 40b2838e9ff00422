package app

import (
	"errors"

	"eventchat/internal/tui"
)

// RunClient launches the Bubble Tea TUI for the session's configured event.
func RunClient(session *Session) error {
	if session.Username() == "" {
		return errors.New("no username known for this server: run `eventchat login` or set EVENTCHAT_USERNAME")
	}
	cfg := session.Config
	if err := cfg.RequireEvent(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	return tui.Run(tui.Options{
		Backend:        session.Client,
		Username:       session.Username(),
		EventPK:        cfg.Event,
		ActiveChat:     cfg.ActiveChat,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		SearchDebounce: cfg.SearchDebounce,
		SearchMinChars: cfg.SearchMinChars,
		Location:       loc,
		Logger:         session.Log.Named("tui"),
	})
}
