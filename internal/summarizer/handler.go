package summarizer

import (
	"time"

	"github.com/simonyos/rulefy/internal/chunker"
	"github.com/simonyos/rulefy/internal/llm"
)

// EventHandler observes the progress of a run. Callbacks run on the
// summarizer's goroutine and must not block for long.
type EventHandler interface {
	OnChunkStart(chunk chunker.Chunk)
	OnChunkDone(chunk chunker.Chunk, result *llm.Result)
	OnWait(d time.Duration)
}

// NopHandler ignores every event.
type NopHandler struct{}

func (NopHandler) OnChunkStart(chunker.Chunk)             {}
func (NopHandler) OnChunkDone(chunker.Chunk, *llm.Result) {}
func (NopHandler) OnWait(time.Duration)                   {}

type multiHandler []EventHandler

// Handlers fans every event out to each non-nil handler in order.
func Handlers(handlers ...EventHandler) EventHandler {
	var m multiHandler
	for _, h := range handlers {
		if h != nil {
			m = append(m, h)
		}
	}
	return m
}

func (m multiHandler) OnChunkStart(chunk chunker.Chunk) {
	for _, h := range m {
		h.OnChunkStart(chunk)
	}
}

func (m multiHandler) OnChunkDone(chunk chunker.Chunk, result *llm.Result) {
	for _, h := range m {
		h.OnChunkDone(chunk, result)
	}
}

func (m multiHandler) OnWait(d time.Duration) {
	for _, h := range m {
		h.OnWait(d)
	}
}
