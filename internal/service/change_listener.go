// internal/service/change_listener.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PrincipalChannel is the NOTIFY channel the directory triggers publish
// affected user ids on.
const PrincipalChannel = "principal_changes"

// PrincipalInvalidator drops cached principal data.
type PrincipalInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...uuid.UUID)
	Reset()
}

// ChangeListener keeps the principal cache of this process coherent with
// role and membership changes made by any process.
type ChangeListener struct {
	connStr    string
	principals PrincipalInvalidator
	listener   *pq.Listener
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewChangeListener(connStr string, principals PrincipalInvalidator) *ChangeListener {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChangeListener{
		connStr:    connStr,
		principals: principals,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start opens the listening connection and begins processing.
func (l *ChangeListener) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("Principal listener error", "error", err)
		}
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			slog.Warn("Principal listener connection attempt failed, will retry")
		case pq.ListenerEventDisconnected:
			slog.Warn("Principal listener disconnected, will attempt reconnect")
		case pq.ListenerEventReconnected:
			// Notifications may have been missed while disconnected.
			slog.Info("Principal listener reconnected, dropping cached principals")
			l.principals.Reset()
		}
	}

	l.listener = pq.NewListener(l.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := l.listener.Listen(PrincipalChannel); err != nil {
		l.listener.Close()
		return fmt.Errorf("failed to listen on %s channel: %w", PrincipalChannel, err)
	}

	slog.Info("Principal listener started", "channel", PrincipalChannel)
	go l.process(l.listener.Notify)
	return nil
}

// Stop closes the listener and waits for processing to end.
func (l *ChangeListener) Stop() {
	l.cancel()
	if l.listener != nil {
		l.listener.Close()
		<-l.done
	}
	slog.Info("Principal listener stopped")
}

func (l *ChangeListener) process(notify <-chan *pq.Notification) {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			if n == nil {
				// Connection lost; reportProblem handles the reconnect.
				continue
			}
			l.handle(l.ctx, n.Extra)
		case <-time.After(90 * time.Second):
			go func() {
				if err := l.listener.Ping(); err != nil {
					slog.Warn("Principal listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (l *ChangeListener) handle(ctx context.Context, payload string) {
	userID, err := uuid.Parse(payload)
	if err != nil {
		slog.Warn("Invalid principal change payload", "payload", payload)
		return
	}
	slog.Debug("Principal changed", "userID", userID)
	l.principals.Invalidate(ctx, userID)
}
