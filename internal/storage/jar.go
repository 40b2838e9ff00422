package storage

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"
)

const jarWriteTimeout = 5 * time.Second

// Jar is an http.CookieJar that writes every cookie the server sets through
// to the store, so a login survives restarts.
type Jar struct {
	mu    sync.RWMutex
	inner *cookiejar.Jar
	store *Store
	// OnError receives write-through failures. The in-memory jar is updated
	// regardless.
	OnError func(error)
}

// NewJar builds a jar seeded with the cookies stored for base's host.
func NewJar(ctx context.Context, store *Store, base *url.URL) (*Jar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	cookies, err := store.LoadCookies(ctx, base.Host)
	if err != nil {
		return nil, err
	}
	inner.SetCookies(base, cookies)
	return &Jar{inner: inner, store: store}, nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	j.inner.SetCookies(u, cookies)
	j.mu.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), jarWriteTimeout)
	defer cancel()
	if err := j.store.SaveCookies(ctx, u.Host, cookies); err != nil && j.OnError != nil {
		j.OnError(err)
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

// Reset drops every cookie of base's host, in memory and on disk.
func (j *Jar) Reset(ctx context.Context, base *url.URL) error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
	return j.store.ClearCookies(ctx, base.Host)
}
