package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"eventchat/internal/api"
	"eventchat/internal/logging"
	"eventchat/internal/storage"
)

// Session is the wired client for one configured server: the API client,
// its persisted cookie jar and the logger.
type Session struct {
	Config Config
	Client *api.Client
	Store  *storage.Store
	Jar    *storage.Jar
	Log    *zap.Logger
}

// Open builds the logger, opens the state database and restores cookies.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	log, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewStore(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate state: %w", err)
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := storage.NewJar(ctx, store, base)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("restore cookies: %w", err)
	}
	jar.OnError = func(err error) {
		log.Warn("persist cookies", zap.Error(err))
	}
	client, err := api.New(api.Config{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Jar:               jar,
		Logger:            log.Named("api"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	client.SetCookie(api.SessionCookieName, cfg.SessionCookie)
	client.SetCookie(api.CSRFCookieName, cfg.CSRFCookie)

	session := &Session{Config: cfg, Client: client, Store: store, Jar: jar, Log: log}
	if session.Config.Username == "" {
		if profile, err := store.GetProfile(ctx, cfg.BaseURL); err == nil && profile != nil {
			session.Config.Username = profile.Username
		}
	}
	log.Info("session opened",
		zap.String("base_url", cfg.BaseURL),
		zap.String("username", session.Config.Username),
		zap.Int64("event", cfg.Event))
	return session, nil
}

// Username is who "my messages" belong to.
func (s *Session) Username() string {
	return s.Config.Username
}

// Login signs in and remembers the username for this server.
func (s *Session) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	if err := s.Client.Login(ctx, username, password); err != nil {
		s.Log.Warn("login failed", zap.String("username", username), zap.Error(err))
		return err
	}
	s.Config.Username = username
	if err := s.Store.SaveProfile(ctx, s.Config.BaseURL, username); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.Log.Info("logged in", zap.String("username", username))
	return nil
}

// Logout forgets the cookies and profile of this server.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.Jar.Reset(ctx, s.Client.BaseURL()); err != nil {
		return err
	}
	return s.Store.DeleteProfile(ctx, s.Config.BaseURL)
}

func (s *Session) Close() error {
	_ = s.Log.Sync()
	return s.Store.Close()
}
