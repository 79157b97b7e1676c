package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const shardCount = 32

// DisposeReason explains why a call left the registry.
type DisposeReason string

const (
	DisposeTerminal DisposeReason = "terminal_status"
	DisposeFault    DisposeReason = "fault"
	DisposeExpired  DisposeReason = "expired"
)

// Registry is the index of live calls. Access to a call is exclusive: a
// Lease must be held to read or mutate its CallSession, so events for the
// same call are handled one at a time while different calls never wait on
// each other.
type Registry struct {
	shards            [shardCount]*shard
	maxHistory        int
	inactivityTimeout time.Duration
	now               func() time.Time

	hookMu    sync.RWMutex
	onCreate  func(callID string)
	onDispose func(Snapshot, DisposeReason)
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	// lock holds a token while a lease is out.
	lock    chan struct{}
	closed  bool
	session *CallSession
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) tryAcquire() bool {
	select {
	case e.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *entry) release() {
	<-e.lock
}

// NewRegistry creates a registry whose conversations hold maxHistory turns
// and whose janitor expires calls idle for inactivityTimeout.
func NewRegistry(maxHistory int, inactivityTimeout time.Duration) *Registry {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	r := &Registry{
		maxHistory:        maxHistory,
		inactivityTimeout: inactivityTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return r
}

func (r *Registry) SetCreateHook(hook func(callID string)) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.onCreate = hook
}

func (r *Registry) SetDisposeHook(hook func(Snapshot, DisposeReason)) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.onDispose = hook
}

func (r *Registry) shardFor(callID string) *shard {
	return r.shards[xxhash.Sum64String(callID)%shardCount]
}

// Acquire waits for exclusive access to a live call. It returns ErrNotFound
// for unknown or disposed calls and the context error if ctx ends first.
func (r *Registry) Acquire(ctx context.Context, callID string) (*Lease, error) {
	if err := ValidateCallID(callID); err != nil {
		return nil, err
	}
	sh := r.shardFor(callID)
	sh.mu.Lock()
	e := sh.entries[callID]
	sh.mu.Unlock()
	if e == nil {
		return nil, ErrNotFound
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	if e.closed {
		e.release()
		return nil, ErrNotFound
	}
	return &Lease{reg: r, e: e}, nil
}

// AcquireOrCreate is Acquire, creating a NEW call when none is live. The
// boolean reports whether the call was created.
func (r *Registry) AcquireOrCreate(ctx context.Context, callID string) (*Lease, bool, error) {
	if err := ValidateCallID(callID); err != nil {
		return nil, false, err
	}
	sh := r.shardFor(callID)
	for {
		sh.mu.Lock()
		e := sh.entries[callID]
		if e == nil {
			now := r.now()
			e = &entry{
				lock: make(chan struct{}, 1),
				session: &CallSession{
					ID:             callID,
					Phase:          PhaseNew,
					CreatedAt:      now,
					LastActivityAt: now,
					AudioNonce:     newAudioNonce(),
					maxHistory:     r.maxHistory,
				},
			}
			e.lock <- struct{}{}
			sh.entries[callID] = e
			sh.mu.Unlock()

			r.hookMu.RLock()
			hook := r.onCreate
			r.hookMu.RUnlock()
			if hook != nil {
				hook(callID)
			}
			return &Lease{reg: r, e: e}, true, nil
		}
		sh.mu.Unlock()

		if err := e.acquire(ctx); err != nil {
			return nil, false, err
		}
		if e.closed {
			// Disposed while we waited: start over with a fresh call.
			e.release()
			continue
		}
		return &Lease{reg: r, e: e}, false, nil
	}
}

// Inspect returns a snapshot of a live call.
func (r *Registry) Inspect(ctx context.Context, callID string) (Snapshot, error) {
	lease, err := r.Acquire(ctx, callID)
	if err != nil {
		return Snapshot{}, err
	}
	defer lease.Release()
	return lease.Session().snapshot(), nil
}

// ActiveCount reports the number of live calls.
func (r *Registry) ActiveCount() int {
	count := 0
	for _, sh := range r.shards {
		sh.mu.Lock()
		count += len(sh.entries)
		sh.mu.Unlock()
	}
	return count
}

func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireInactive()
			}
		}
	}()
}

func (r *Registry) expireInactive() int {
	now := r.now()
	expired := 0
	for _, sh := range r.shards {
		sh.mu.Lock()
		entries := make([]*entry, 0, len(sh.entries))
		for _, e := range sh.entries {
			entries = append(entries, e)
		}
		sh.mu.Unlock()

		for _, e := range entries {
			// A call whose lease is out is being served and is not idle.
			if !e.tryAcquire() {
				continue
			}
			if e.closed || now.Sub(e.session.LastActivityAt) < r.inactivityTimeout {
				e.release()
				continue
			}
			lease := &Lease{reg: r, e: e}
			lease.Dispose(DisposeExpired)
			expired++
		}
	}
	return expired
}

// Lease is exclusive access to one live call. Exactly one of Release or
// Dispose ends it; further calls are no-ops.
type Lease struct {
	reg  *Registry
	e    *entry
	done bool
}

func (l *Lease) Session() *CallSession {
	return l.e.session
}

// Touch records activity on the call.
func (l *Lease) Touch() {
	now := l.reg.now()
	if now.After(l.e.session.LastActivityAt) {
		l.e.session.LastActivityAt = now
	}
}

func (l *Lease) Release() {
	if l.done {
		return
	}
	l.done = true
	l.e.release()
}

// Dispose removes the call from the registry. Events that arrive for it
// afterwards see ErrNotFound.
func (l *Lease) Dispose(reason DisposeReason) {
	if l.done {
		return
	}
	l.done = true
	l.e.closed = true
	snap := l.e.session.snapshot()
	l.e.session.conversation = nil

	sh := l.reg.shardFor(snap.ID)
	sh.mu.Lock()
	if sh.entries[snap.ID] == l.e {
		delete(sh.entries, snap.ID)
	}
	sh.mu.Unlock()
	l.e.release()

	l.reg.hookMu.RLock()
	hook := l.reg.onDispose
	l.reg.hookMu.RUnlock()
	if hook != nil {
		hook(snap, reason)
	}
}

func newAudioNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
