// Package audit provides a best-effort, write-only SQLite log of agent
// activity. kagebunshin writes one entry when a root run starts and one
// when it completes; Middleware can log calls to any kit.Endpoint. Nothing in
// kagebunshin reads it back — it exists for operators inspecting a swarm
// after the fact, never for driving agent behaviour.
package audit

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/hazyhaar/kagebunshin/idgen"
	"github.com/hazyhaar/kagebunshin/kit"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	entry_id       TEXT PRIMARY KEY,
	timestamp      INTEGER NOT NULL,
	action         TEXT NOT NULL,
	parameters     TEXT,
	status         TEXT NOT NULL,
	error_message  TEXT,
	user_id        TEXT,
	transport      TEXT,
	request_id     TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
`

// Entry is one row of the audit log. Callers fill in Action and whichever
// of the identifying fields they have; Log/LogAsync fill the rest.
type Entry struct {
	EntryID    string
	Timestamp  int64
	Action     string
	Parameters string
	Status     string
	Error      string
	UserID     string
	Transport  string
	RequestID  string
}

// Option configures a SQLiteLogger.
type Option func(*SQLiteLogger)

// WithIDGenerator overrides the entry ID generator (default: idgen.Default).
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.idgen = gen }
}

// WithBatchSize overrides how many buffered async entries trigger an
// eager flush (default: 32).
func WithBatchSize(n int) Option {
	return func(l *SQLiteLogger) { l.batchSize = n }
}

// SQLiteLogger writes audit entries to SQLite. Log writes synchronously;
// LogAsync buffers the entry and flushes it from a background goroutine,
// either when the buffer reaches batchSize or on a timer, so a slow disk
// never blocks the reason/act loop.
type SQLiteLogger struct {
	db        *sql.DB
	idgen     idgen.Generator
	batchSize int

	mu      sync.Mutex
	buf     []*Entry
	closed  bool
	flushCh chan struct{}
	doneCh  chan struct{}
}

// NewSQLiteLogger wraps an already-open *sql.DB. Call Init before logging.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:        db,
		idgen:     idgen.Default,
		batchSize: 32,
		flushCh:   make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// Init creates the audit_log table if it does not already exist.
func (l *SQLiteLogger) Init() error {
	_, err := l.db.Exec(schema)
	return err
}

// Log writes entry synchronously, filling defaults first.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	return l.insert(ctx, e)
}

// LogAsync buffers entry for background flushing. Defaults are filled
// immediately so callers can read back e.EntryID right away.
func (l *SQLiteLogger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	l.mu.Lock()
	l.buf = append(l.buf, e)
	full := len(l.buf) >= l.batchSize
	l.mu.Unlock()
	if full {
		select {
		case l.flushCh <- struct{}{}:
		default:
		}
	}
}

// Close flushes any buffered entries and stops the background goroutine.
func (l *SQLiteLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	close(l.flushCh)
	<-l.doneCh
	return nil
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.idgen()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

func (l *SQLiteLogger) insert(ctx context.Context, e *Entry) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log
			(entry_id, timestamp, action, parameters, status, error_message, user_id, transport, request_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.Timestamp, e.Action, e.Parameters, e.Status, e.Error, e.UserID, e.Transport, e.RequestID)
	return err
}

func (l *SQLiteLogger) flushLoop() {
	defer close(l.doneCh)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case _, ok := <-l.flushCh:
			l.drain()
			if !ok {
				return
			}
		case <-ticker.C:
			l.drain()
		}
	}
}

// Middleware wraps endpoint with an async audit entry for every call,
// tagged with the given action name. User ID, transport, and request ID
// are read from ctx via the kit context helpers when present.
func Middleware(logger *SQLiteLogger, action string) func(kit.Endpoint) kit.Endpoint {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)
			e := &Entry{
				Action:    action,
				UserID:    kit.GetUserID(ctx),
				Transport: kit.GetTransport(ctx),
				RequestID: kit.GetRequestID(ctx),
			}
			if err != nil {
				e.Error = err.Error()
			}
			logger.LogAsync(e)
			return resp, err
		}
	}
}

func (l *SQLiteLogger) drain() {
	l.mu.Lock()
	if len(l.buf) == 0 {
		l.mu.Unlock()
		return
	}
	pending := l.buf
	l.buf = nil
	l.mu.Unlock()

	for _, e := range pending {
		if err := l.insert(context.Background(), e); err != nil {
			log.Printf("audit: write failed for action %q: %v", e.Action, err)
		}
	}
}
