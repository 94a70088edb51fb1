// Package audit records security-relevant events as structured JSON entries:
// solve submissions, solve deletions, manifest exports, server lifecycle.
// Entries go through a pluggable Logger backend; a process-wide logger is
// installed with SetGlobal so HTTP middleware needs no explicit wiring.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action classifies what the actor did.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionSolve  Action = "solve"
	ActionExport Action = "export"
)

// Outcome is the result of the audited operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Entry is a single audit record. Optional fields are omitted from the
// JSON output when unset.
type Entry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Service    string         `json:"service"`
	Method     string         `json:"method"`
	Action     Action         `json:"action"`
	Outcome    Outcome        `json:"outcome"`
	UserID     string         `json:"user_id,omitempty"`
	ClientIP   string         `json:"client_ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger is an audit sink. Append-only backends (stdout, file) return an
// error from Query.
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
	Query(ctx context.Context, filter *QueryFilter) ([]*Entry, error)
	Close() error
}

// QueryFilter narrows Query results. Zero-valued fields are ignored.
type QueryFilter struct {
	Service string
	Action  Action
	Outcome Outcome
	From    time.Time
	To      time.Time
	Limit   int
}

// Config настройки аудита (секция audit в конфиге сервиса).
type Config struct {
	Enabled     bool          `koanf:"enabled"`
	Backend     string        `koanf:"backend"` // stdout | file
	FilePath    string        `koanf:"file_path"`
	BufferSize  int           `koanf:"buffer_size"`
	FlushPeriod time.Duration `koanf:"flush_period"`
}

// DefaultConfig returns audit defaults: disabled, stdout backend.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     false,
		Backend:     "stdout",
		BufferSize:  1000,
		FlushPeriod: 5 * time.Second,
	}
}

// Builder assembles an Entry. Create one with NewEntry and finish with Build.
type Builder struct {
	entry *Entry
}

// NewEntry starts a new audit entry with a generated ID and the current
// UTC timestamp.
func NewEntry() *Builder {
	return &Builder{entry: &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}}
}

func (b *Builder) Service(name string) *Builder {
	b.entry.Service = name
	return b
}

func (b *Builder) Method(method string) *Builder {
	b.entry.Method = method
	return b
}

func (b *Builder) Action(a Action) *Builder {
	b.entry.Action = a
	return b
}

func (b *Builder) Outcome(o Outcome) *Builder {
	b.entry.Outcome = o
	return b
}

func (b *Builder) User(id string) *Builder {
	b.entry.UserID = id
	return b
}

func (b *Builder) Client(ip, userAgent string) *Builder {
	b.entry.ClientIP = ip
	b.entry.UserAgent = userAgent
	return b
}

func (b *Builder) RequestID(id string) *Builder {
	b.entry.RequestID = id
	return b
}

// Duration records the operation duration in whole milliseconds.
func (b *Builder) Duration(d time.Duration) *Builder {
	b.entry.DurationMS = d.Milliseconds()
	return b
}

// Error attaches the error text and marks the entry as failed.
// A nil error leaves the entry untouched.
func (b *Builder) Error(err error) *Builder {
	if err != nil {
		b.entry.Error = err.Error()
		b.entry.Outcome = OutcomeFailure
	}
	return b
}

func (b *Builder) Meta(key string, value any) *Builder {
	if b.entry.Meta == nil {
		b.entry.Meta = make(map[string]any)
	}
	b.entry.Meta[key] = value
	return b
}

func (b *Builder) Build() *Entry {
	return b.entry
}
