// Package poller keeps every open chat fresh by fetching its messages on a
// fixed interval and handing the snapshots to a single consumer.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"eventchat/internal/chat"
)

const DefaultInterval = 5 * time.Second

// Fetcher is the messages endpoint.
type Fetcher interface {
	Messages(ctx context.Context, chatID int64) (chat.Snapshot, error)
}

// Result is one finished poll. Seq increases per chat in the order polls
// were started.
type Result struct {
	ChatID   int64
	Seq      uint64
	Snapshot chat.Snapshot
	Err      error
}

// Config tunes a Poller. Zero values pick the defaults.
type Config struct {
	Interval time.Duration
	// Timeout bounds each request; overlapping polls are allowed.
	Timeout time.Duration
	Logger  *zap.Logger
}

type chatState struct {
	mu        sync.Mutex
	issued    uint64
	delivered uint64
}

// Poller runs one ticker goroutine per chat. A result older than one already
// delivered for the same chat is dropped, so the consumer only ever moves
// forward.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	results  chan Result
	stats    *Stats

	mu     sync.Mutex
	chats  map[int64]*chatState
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(fetcher Fetcher, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval * 2
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Poller{
		fetcher:  fetcher,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		log:      cfg.Logger,
		results:  make(chan Result, 16),
		stats:    &Stats{},
		chats:    make(map[int64]*chatState),
	}
}

// Results is the single stream every chat delivers on.
func (p *Poller) Results() <-chan Result {
	return p.results
}

func (p *Poller) Stats() *Stats {
	return p.stats
}

// Start begins polling chatIDs until ctx is done or Stop is called. Each chat
// is fetched once right away, then every interval.
func (p *Poller) Start(ctx context.Context, chatIDs []int64) {
	p.mu.Lock()
	if p.cancel == nil {
		p.ctx, p.cancel = context.WithCancel(ctx)
	}
	runCtx := p.ctx
	var started []int64
	for _, id := range chatIDs {
		if _, exists := p.chats[id]; exists {
			continue
		}
		p.chats[id] = &chatState{}
		started = append(started, id)
	}
	p.mu.Unlock()

	for _, id := range started {
		p.wg.Add(1)
		go p.loop(runCtx, id)
	}
}

// Refresh polls chatID now, outside its tick. It is a no-op for unknown chats
// or after Stop.
func (p *Poller) Refresh(chatID int64) {
	p.mu.Lock()
	state, ok := p.chats[chatID]
	ctx := p.ctx
	p.mu.Unlock()
	if !ok || ctx == nil || ctx.Err() != nil {
		return
	}
	p.poll(ctx, chatID, state)
}

// Stop cancels every chat loop and in-flight request, then waits for them.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context, chatID int64) {
	defer p.wg.Done()
	p.mu.Lock()
	state := p.chats[chatID]
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx, chatID, state)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, chatID, state)
		}
	}
}

// poll starts one request in the background and returns immediately.
func (p *Poller) poll(ctx context.Context, chatID int64, state *chatState) {
	state.mu.Lock()
	state.issued++
	seq := state.issued
	state.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.stats.polls.Add(1)
		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		snapshot, err := p.fetcher.Messages(reqCtx, chatID)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.stats.failures.Add(1)
			p.log.Warn("poll failed", zap.Int64("chat_id", chatID), zap.Uint64("seq", seq), zap.Error(err))
		}
		p.deliver(ctx, state, Result{ChatID: chatID, Seq: seq, Snapshot: snapshot, Err: err})
	}()
}

func (p *Poller) deliver(ctx context.Context, state *chatState, result Result) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if result.Seq <= state.delivered {
		p.stats.stale.Add(1)
		p.log.Debug("dropping stale poll",
			zap.Int64("chat_id", result.ChatID),
			zap.Uint64("seq", result.Seq),
			zap.Uint64("delivered", state.delivered))
		return
	}
	select {
	case p.results <- result:
		state.delivered = result.Seq
	case <-ctx.Done():
	}
}
