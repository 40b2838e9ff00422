package storage

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestCookieLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveCookies(ctx, "events.local", []*http.Cookie{
		{Name: "sessionid", Value: "abc", Path: "/", HttpOnly: true, Expires: time.Now().Add(time.Hour)},
		{Name: "csrftoken", Value: "tok"},
	})
	if err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}
	cookies, err := store.LoadCookies(ctx, "events.local")
	if err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	if cookies[0].Name != "csrftoken" || cookies[0].Path != "/" {
		t.Fatalf("unexpected first cookie: %+v", cookies[0])
	}
	if cookies[1].Value != "abc" || !cookies[1].HttpOnly || cookies[1].Expires.IsZero() {
		t.Fatalf("unexpected session cookie: %+v", cookies[1])
	}

	if err := store.SaveCookies(ctx, "events.local", []*http.Cookie{{Name: "sessionid", Value: "def", Path: "/"}}); err != nil {
		t.Fatalf("SaveCookies update: %v", err)
	}
	cookies, _ = store.LoadCookies(ctx, "events.local")
	if len(cookies) != 2 || cookies[1].Value != "def" {
		t.Fatalf("expected updated session cookie, got %+v", cookies)
	}

	other, _ := store.LoadCookies(ctx, "elsewhere.local")
	if len(other) != 0 {
		t.Fatalf("cookies leaked across hosts: %+v", other)
	}
}

func TestExpiredCookiesAreDeleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SaveCookies(ctx, "h", []*http.Cookie{{Name: "sessionid", Value: "abc"}})
	if err := store.SaveCookies(ctx, "h", []*http.Cookie{{Name: "sessionid", MaxAge: -1}}); err != nil {
		t.Fatalf("SaveCookies delete: %v", err)
	}
	cookies, _ := store.LoadCookies(ctx, "h")
	if len(cookies) != 0 {
		t.Fatalf("expected cookie removed, got %+v", cookies)
	}

	_ = store.SaveCookies(ctx, "h", []*http.Cookie{{Name: "a", Value: "1", MaxAge: 3600}})
	if err := store.ClearCookies(ctx, "h"); err != nil {
		t.Fatalf("ClearCookies: %v", err)
	}
	cookies, _ = store.LoadCookies(ctx, "h")
	if len(cookies) != 0 {
		t.Fatalf("expected no cookies after clear, got %+v", cookies)
	}
}

func TestProfileLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	profile, err := store.GetProfile(ctx, "http://events.local")
	if err != nil || profile != nil {
		t.Fatalf("expected no profile, got %+v (%v)", profile, err)
	}
	if err := store.SaveProfile(ctx, "http://events.local", "alice"); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if err := store.SaveProfile(ctx, "http://events.local", "bob"); err != nil {
		t.Fatalf("SaveProfile again: %v", err)
	}
	profile, err = store.GetProfile(ctx, "http://events.local")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile == nil || profile.Username != "bob" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if err := store.DeleteProfile(ctx, "http://events.local"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	profile, _ = store.GetProfile(ctx, "http://events.local")
	if profile != nil {
		t.Fatalf("expected nil profile after delete")
	}
}

func TestJarPersistsAcrossInstances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base, _ := url.Parse("http://events.local")

	jar, err := NewJar(ctx, store, base)
	if err != nil {
		t.Fatalf("NewJar: %v", err)
	}
	jar.SetCookies(base, []*http.Cookie{{Name: "sessionid", Value: "abc", Path: "/"}})

	reopened, err := NewJar(ctx, store, base)
	if err != nil {
		t.Fatalf("NewJar reopen: %v", err)
	}
	cookies := reopened.Cookies(base)
	if len(cookies) != 1 || cookies[0].Value != "abc" {
		t.Fatalf("expected persisted session cookie, got %+v", cookies)
	}

	if err := reopened.Reset(ctx, base); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(reopened.Cookies(base)) != 0 {
		t.Fatalf("expected empty jar after reset")
	}
	stored, _ := store.LoadCookies(ctx, base.Host)
	if len(stored) != 0 {
		t.Fatalf("expected no stored cookies after reset, got %+v", stored)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := "sqlite://file:" + t.Name() + "?mode=memory&cache=shared"
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}
