package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventchat/internal/chat"
)

// gatedFetcher blocks its first call until release is closed; later calls
// answer immediately.
type gatedFetcher struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	err     error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
}

func (f *gatedFetcher) Messages(ctx context.Context, chatID int64) (chat.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if call == 1 {
		close(f.started)
		select {
		case <-f.release:
		case <-ctx.Done():
			return chat.Snapshot{}, ctx.Err()
		}
		return chat.Snapshot{Warning: "old"}, f.err
	}
	return chat.Snapshot{Warning: "new"}, f.err
}

type instantFetcher struct {
	err error
}

func (f instantFetcher) Messages(_ context.Context, chatID int64) (chat.Snapshot, error) {
	if f.err != nil {
		return chat.Snapshot{}, f.err
	}
	return chat.Snapshot{Messages: []chat.Message{{User: "alice", Message: "hi"}}}, nil
}

func receive(t *testing.T, p *Poller) Result {
	t.Helper()
	select {
	case r := <-p.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no poll result")
	}
	return Result{}
}

func TestPollerFetchesEachChatImmediately(t *testing.T) {
	p := New(instantFetcher{}, Config{Interval: time.Hour})
	p.Start(context.Background(), []int64{1, 2})
	defer p.Stop()

	seen := map[int64]uint64{}
	for i := 0; i < 2; i++ {
		r := receive(t, p)
		require.NoError(t, r.Err)
		seen[r.ChatID] = r.Seq
	}
	assert.Equal(t, map[int64]uint64{1: 1, 2: 1}, seen)
}

func TestPollerTicks(t *testing.T) {
	p := New(instantFetcher{}, Config{Interval: 10 * time.Millisecond})
	p.Start(context.Background(), []int64{7})
	defer p.Stop()

	first := receive(t, p)
	second := receive(t, p)
	assert.Equal(t, int64(7), second.ChatID)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestPollerDropsStaleResult(t *testing.T) {
	fetcher := newGatedFetcher()
	p := New(fetcher, Config{Interval: time.Hour})
	p.Start(context.Background(), []int64{3})
	defer p.Stop()

	<-fetcher.started
	p.Refresh(3)
	fresh := receive(t, p)
	assert.Equal(t, uint64(2), fresh.Seq)
	assert.Equal(t, "new", fresh.Snapshot.Warning)

	close(fetcher.release)
	require.Eventually(t, func() bool { return p.Stats().Stale() == 1 }, 2*time.Second, 5*time.Millisecond)
	select {
	case r := <-p.Results():
		t.Fatalf("stale result delivered: %+v", r)
	default:
	}
}

func TestPollerDeliversErrors(t *testing.T) {
	p := New(instantFetcher{err: errors.New("502")}, Config{Interval: time.Hour})
	p.Start(context.Background(), []int64{1})
	defer p.Stop()

	r := receive(t, p)
	assert.Error(t, r.Err)
	assert.Equal(t, uint64(1), p.Stats().Failures())
}

func TestStopCancelsInFlight(t *testing.T) {
	fetcher := newGatedFetcher()
	p := New(fetcher, Config{Interval: time.Hour})
	p.Start(context.Background(), []int64{1})
	<-fetcher.started

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	p.Refresh(1)
	assert.Equal(t, uint64(1), p.Stats().Polls())
}

func TestStartIgnoresKnownChats(t *testing.T) {
	p := New(instantFetcher{}, Config{Interval: time.Hour})
	p.Start(context.Background(), []int64{1})
	p.Start(context.Background(), []int64{1})
	defer p.Stop()

	receive(t, p)
	select {
	case r := <-p.Results():
		t.Fatalf("duplicate loop delivered %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}
