// Package events publishes run progress to NATS so other processes can follow
// a long generation.
package events

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/simonyos/rulefy/internal/chunker"
	"github.com/simonyos/rulefy/internal/llm"
)

// ErrConnectionFailed wraps a failed dial.
var ErrConnectionFailed = errors.New("failed to connect to NATS")

// Type names an event.
type Type string

const (
	ChunkStarted Type = "chunk.started"
	ChunkDone    Type = "chunk.done"
	Waiting      Type = "wait"
	RunFinished  Type = "run.finished"
	RunFailed    Type = "run.failed"
)

// Event is the JSON payload of every published message.
type Event struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	Type        Type       `json:"type"`
	Timestamp   time.Time  `json:"timestamp"`
	Index       int        `json:"index,omitempty"`
	TotalChunks int        `json:"total_chunks,omitempty"`
	TokenCount  int        `json:"token_count,omitempty"`
	Model       string     `json:"model,omitempty"`
	Usage       *llm.Usage `json:"usage,omitempty"`
	WaitMS      int64      `json:"wait_ms,omitempty"`
	Path        string     `json:"path,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Subject returns the subject an event of type t for runID is published on.
func Subject(runID string, t Type) string {
	return fmt.Sprintf("rulefy.run.%s.%s", runID, t)
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL            string
	Token          string
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns the default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL, // "nats://localhost:4222"
		ConnectTimeout: 5 * time.Second,
	}
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// Publisher sends run events. It satisfies summarizer.EventHandler; publish
// failures are logged and never interrupt the run.
type Publisher struct {
	conn   Conn
	runID  string
	logger *slog.Logger
}

// Connect dials the NATS server and returns a publisher for runID.
func Connect(cfg NATSConfig, runID string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("rulefy-" + runID),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionFailed, err)
	}
	return NewPublisher(conn, runID, logger), nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, runID string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, runID: runID, logger: logger}
}

// RunID returns the run the publisher reports on.
func (p *Publisher) RunID() string {
	return p.runID
}

func (p *Publisher) OnChunkStart(chunk chunker.Chunk) {
	p.publish(Event{
		Type:        ChunkStarted,
		Index:       chunk.Index,
		TotalChunks: chunk.TotalChunks,
		TokenCount:  chunk.TokenCount,
	})
}

func (p *Publisher) OnChunkDone(chunk chunker.Chunk, result *llm.Result) {
	ev := Event{
		Type:        ChunkDone,
		Index:       chunk.Index,
		TotalChunks: chunk.TotalChunks,
		TokenCount:  chunk.TokenCount,
	}
	if result != nil {
		ev.Model = result.Model
		ev.Usage = result.Usage
	}
	p.publish(ev)
}

func (p *Publisher) OnWait(d time.Duration) {
	p.publish(Event{Type: Waiting, WaitMS: d.Milliseconds()})
}

// Finish reports the end of the run: the written path on success, the error
// otherwise.
func (p *Publisher) Finish(path string, err error) {
	if err != nil {
		p.publish(Event{Type: RunFailed, Error: err.Error()})
		return
	}
	p.publish(Event{Type: RunFinished, Path: path})
}

func (p *Publisher) publish(ev Event) {
	if p.conn == nil {
		return
	}
	ev.ID = uuid.New().String()
	ev.RunID = p.runID
	ev.Timestamp = time.Now()

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("Failed to encode event", "type", ev.Type, "error", err)
		return
	}
	if err := p.conn.Publish(Subject(p.runID, ev.Type), data); err != nil {
		p.logger.Warn("Failed to publish event", "type", ev.Type, "error", err)
	}
}

// Close flushes pending events and closes the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Flush()
	p.conn.Close()
	p.conn = nil
	return err
}
