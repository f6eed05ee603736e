package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/jverhagen/fotomemo/internal/model"
	"github.com/jverhagen/fotomemo/internal/store"
)

// Source is what the mirror needs from the core: produce the current
// snapshot, and apply a retrieved one onto existing records.
type Source interface {
	Snapshot() model.Snapshot
	ApplySnapshot(ctx context.Context, snap model.Snapshot) error
}

// Status describes the mirror for the UI.
type Status struct {
	SignedIn bool   `json:"signed_in"`
	LastSync string `json:"last_sync,omitempty"`
}

// Mirror ties the pieces together: it pulls-and-merges once at sign-in and
// pushes the snapshot after a quiet period whenever local state changes.
// Sync failures never block local work; they are logged and the next
// debounced flush is the retry.
type Mirror struct {
	source    Source
	transport Transport
	slots     store.Slots
	session   *Session
	deb       *Debouncer
}

// NewMirror creates a mirror. Nothing is pushed until the session signs in.
func NewMirror(source Source, transport Transport, slots store.Slots, session *Session, debounce time.Duration) *Mirror {
	m := &Mirror{
		source:    source,
		transport: transport,
		slots:     slots,
		session:   session,
	}
	m.deb = NewDebouncer(debounce, func() {
		if err := m.Flush(context.Background()); err != nil {
			slog.Error("metadata push failed", "session_id", session.ID(), "error", err)
		}
	})
	return m
}

// MarkDirty schedules a debounced push. Ignored while signed out.
func (m *Mirror) MarkDirty() {
	if !m.session.SignedIn() {
		return
	}
	m.deb.Trigger()
}

// Flush pushes the current snapshot immediately.
func (m *Mirror) Flush(ctx context.Context) error {
	if !m.session.SignedIn() {
		return ErrNotSignedIn
	}
	snap := m.source.Snapshot()
	snap.LastSync = time.Now().UTC().Format(time.RFC3339)

	if err := m.transport.Push(ctx, snap); err != nil {
		return err
	}
	if err := m.slots.SetSlot(ctx, store.SlotLastSync, snap.LastSync); err != nil {
		slog.Warn("record last sync time", "error", err)
	}
	slog.Info("metadata pushed", "items", len(snap.Metadata), "categories", len(snap.Categories))
	return nil
}

// SignIn stores the token and runs the one-time pull-and-merge. A failed
// pull does not fail the sign-in; the account simply starts from local
// state. Merge semantics are last-write-wins, no conflict resolution.
func (m *Mirror) SignIn(ctx context.Context, token string) error {
	if err := m.session.SignIn(token); err != nil {
		return err
	}

	snap, err := m.transport.Pull(ctx)
	if err != nil {
		slog.Error("metadata pull failed", "session_id", m.session.ID(), "error", err)
		return nil
	}
	if snap == nil {
		slog.Info("no cloud document yet", "session_id", m.session.ID())
		return nil
	}

	if err := m.source.ApplySnapshot(ctx, *snap); err != nil {
		slog.Error("apply cloud metadata", "error", err)
		return nil
	}
	if snap.LastSync != "" {
		if err := m.slots.SetSlot(ctx, store.SlotLastSync, snap.LastSync); err != nil {
			slog.Warn("record last sync time", "error", err)
		}
	}
	slog.Info("cloud metadata merged", "items", len(snap.Metadata), "categories", len(snap.Categories))
	return nil
}

// SignOut drops the token and cancels any pending push.
func (m *Mirror) SignOut() {
	m.session.SignOut()
	m.deb.Stop()
}

// Status reports sign-in state and the last successful sync time.
func (m *Mirror) Status(ctx context.Context) Status {
	last, err := m.slots.GetSlot(ctx, store.SlotLastSync)
	if err != nil {
		slog.Warn("read last sync time", "error", err)
	}
	return Status{SignedIn: m.session.SignedIn(), LastSync: last}
}

// Close shuts the debouncer down. In-flight pushes are not cancelled;
// their results are ignored.
func (m *Mirror) Close() {
	m.deb.Close()
}
