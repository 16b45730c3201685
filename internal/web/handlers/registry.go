package handlers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kozaktomas/clock-in/internal/capture"
	"github.com/kozaktomas/clock-in/internal/notify"
)

// SessionDeps are the shared collaborators every kiosk session is built from.
type SessionDeps struct {
	Detector capture.FaceDetector
	GPS      capture.PositionProvider
	IP       capture.IPLocator
	// ClientFor returns the attendance client acting for a bearer token.
	ClientFor func(token string) capture.AttendanceClient
	Messages  *capture.Messages
	Clock     clockwork.Clock
	Logger    *slog.Logger
	// OnClose receives every session outcome, e.g. the audit recorder.
	OnClose func(capture.Outcome)
}

// KioskSession is a capture session opened over the HTTP API.
type KioskSession struct {
	ID      string
	Token   string
	Kind    capture.Kind
	Session *capture.Session
	Frames  *FrameBuffer
	Events  *EventBroadcaster

	mu       sync.Mutex
	lastSeen time.Time
}

func (k *KioskSession) touch(now time.Time) {
	k.mu.Lock()
	k.lastSeen = now
	k.mu.Unlock()
}

func (k *KioskSession) idleSince() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastSeen
}

// Registry tracks open kiosk sessions. A token owns at most one session;
// opening another cancels the previous one.
type Registry struct {
	deps     SessionDeps
	mu       sync.Mutex
	sessions map[string]*KioskSession
	byToken  map[string]*KioskSession
}

// NewRegistry creates an empty registry.
func NewRegistry(deps SessionDeps) (*Registry, error) {
	if deps.Detector == nil {
		return nil, errors.New("face detector is required")
	}
	if deps.ClientFor == nil {
		return nil, errors.New("attendance client factory is required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*KioskSession),
		byToken:  make(map[string]*KioskSession),
	}, nil
}

// Open starts a new session of kind for token.
func (r *Registry) Open(token string, kind capture.Kind) (*KioskSession, error) {
	r.mu.Lock()
	prev := r.byToken[token]
	r.mu.Unlock()
	if prev != nil {
		r.deps.Logger.Info("replacing open capture session", "session", prev.ID)
		prev.Session.Cancel()
	}

	ks := &KioskSession{
		Token:  token,
		Kind:   kind,
		Frames: NewFrameBuffer(),
		Events: &EventBroadcaster{},
	}
	sendNotification := notify.Func(func(n notify.Notification) {
		ks.Events.SendEvent(SessionEvent{Type: EventNotification, Data: n})
	})

	sess, err := capture.NewSession(capture.Options{
		Detector: r.deps.Detector,
		GPS:      r.deps.GPS,
		IP:       r.deps.IP,
		Client:   r.deps.ClientFor(token),
		Notifier: notify.Multi(notify.NewLog(r.deps.Logger), sendNotification),
		Messages: r.deps.Messages,
		Clock:    r.deps.Clock,
		Logger:   r.deps.Logger,
		OnChange: func(snap capture.Snapshot) {
			ks.Events.SendEvent(SessionEvent{Type: EventSnapshot, Data: snap})
		},
		OnClose: func(o capture.Outcome) {
			r.remove(ks)
			if r.deps.OnClose != nil {
				r.deps.OnClose(o)
			}
			ks.Events.Close(SessionEvent{Type: EventClosed, Data: o})
		},
	})
	if err != nil {
		return nil, err
	}
	ks.Session = sess

	// the snapshot carries the id assigned by Open
	if err := sess.Open(kind, ks.Frames); err != nil {
		return nil, err
	}
	ks.ID = sess.Snapshot().ID
	ks.touch(r.deps.Clock.Now())

	r.mu.Lock()
	displaced := r.byToken[token]
	r.sessions[ks.ID] = ks
	r.byToken[token] = ks
	r.mu.Unlock()

	// a concurrent Open for the same token registered first
	if displaced != nil && displaced != ks {
		displaced.Session.Cancel()
	}
	return ks, nil
}

// Get returns the session with id owned by token, or nil.
func (r *Registry) Get(id, token string) *KioskSession {
	r.mu.Lock()
	ks := r.sessions[id]
	r.mu.Unlock()
	if ks == nil || ks.Token != token {
		return nil
	}
	ks.touch(r.deps.Clock.Now())
	return ks
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) remove(ks *KioskSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[ks.ID] == ks {
		delete(r.sessions, ks.ID)
	}
	if r.byToken[ks.Token] == ks {
		delete(r.byToken, ks.Token)
	}
}

func (r *Registry) snapshot() []*KioskSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*KioskSession, 0, len(r.sessions))
	for _, ks := range r.sessions {
		all = append(all, ks)
	}
	return all
}

// Reap cancels sessions no request has touched for maxIdle. It returns the
// number of sessions cancelled.
func (r *Registry) Reap(maxIdle time.Duration) int {
	now := r.deps.Clock.Now()
	n := 0
	for _, ks := range r.snapshot() {
		if now.Sub(ks.idleSince()) >= maxIdle {
			r.deps.Logger.Info("cancelling idle capture session", "session", ks.ID)
			ks.Session.Cancel()
			n++
		}
	}
	return n
}

// RunReaper calls Reap every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := r.deps.Clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Reap(maxIdle)
		}
	}
}

// CloseAll cancels every open session.
func (r *Registry) CloseAll() {
	for _, ks := range r.snapshot() {
		ks.Session.Cancel()
	}
}
