package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/automation"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// DispatchFunc receives every decoded record event
type DispatchFunc func(ctx context.Context, ev automation.Event)

// Listener turns Postgres NOTIFY messages on one channel into automation
// events. The notify_record_event() trigger function publishes them.
type Listener struct {
	dsn      string
	channel  string
	dispatch DispatchFunc
	log      zerolog.Logger

	mu       sync.Mutex
	listener *pq.Listener
	done     chan struct{}
}

// NewListener creates a new listener
func NewListener(dsn, channel string, dispatch DispatchFunc) *Listener {
	return &Listener{
		dsn:      dsn,
		channel:  channel,
		dispatch: dispatch,
		log:      log.With().Str("channel", channel).Logger(),
	}
}

// Start opens the LISTEN connection and consumes notifications until ctx
// is cancelled or Close is called.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener != nil {
		return fmt.Errorf("listener already started")
	}

	listener := pq.NewListener(l.dsn, minReconnectInterval, maxReconnectInterval, l.onConnectionEvent)
	if err := listener.Listen(l.channel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	l.listener = listener
	l.done = make(chan struct{})

	l.log.Info().Msg("🔌 Listening for record events")
	go l.loop(ctx, listener, l.done)
	return nil
}

func (l *Listener) onConnectionEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.log.Info().Msg("✅ Record event listener connected")
	case pq.ListenerEventDisconnected:
		l.log.Warn().Err(err).Msg("⚠️ Record event listener disconnected")
	case pq.ListenerEventReconnected:
		l.log.Info().Msg("🔌 Record event listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.log.Error().Err(err).Msg("❌ Record event listener connection attempt failed")
	}
}

func (l *Listener) loop(ctx context.Context, listener *pq.Listener, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect; notifications may have been lost
			if n == nil {
				continue
			}
			l.handle(ctx, n.Extra)
		case <-time.After(pingInterval):
			if err := listener.Ping(); err != nil {
				l.log.Warn().Err(err).Msg("⚠️ Record event listener ping failed")
			}
		}
	}
}

func (l *Listener) handle(ctx context.Context, payload string) {
	ev, err := ParsePayload(payload)
	if err != nil {
		l.log.Warn().Err(err).Str("payload", payload).Msg("⚠️ Ignoring malformed record event")
		return
	}
	l.log.Debug().Str("table_id", ev.TableID).Str("record_id", ev.RecordID).Str("kind", string(ev.Kind)).Msg("📝 Record event received")
	l.dispatch(ctx, ev)
}

// Close stops listening and waits for the consumer loop to exit
func (l *Listener) Close() error {
	l.mu.Lock()
	listener, done := l.listener, l.done
	l.listener = nil
	l.mu.Unlock()

	if listener == nil {
		return nil
	}
	err := listener.Close()
	<-done
	l.log.Info().Msg("⏹️ Record event listener stopped")
	return err
}
