package rules

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/simonyos/rulefy/internal/chunker"
	"github.com/simonyos/rulefy/internal/llm"
)

// draftSink writes every raw chunk response to its own file. The directory is
// left on disk after the run.
type draftSink struct {
	dir    string
	logger *slog.Logger
	err    error
}

func newDraftSink(root, runID string, logger *slog.Logger) *draftSink {
	return &draftSink{
		dir:    filepath.Join(root, "rulefy-"+runID),
		logger: logger,
	}
}

// DraftPath returns where the response to chunk index is kept.
func (s *draftSink) DraftPath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("chunk-%03d.md", index+1))
}

func (s *draftSink) OnChunkStart(chunker.Chunk) {}

func (s *draftSink) OnWait(time.Duration) {}

func (s *draftSink) OnChunkDone(chunk chunker.Chunk, result *llm.Result) {
	if result == nil || s.err != nil {
		return
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.err = err
		s.logger.Warn("Failed to create draft directory", "dir", s.dir, "error", err)
		return
	}
	path := s.DraftPath(chunk.Index)
	if err := os.WriteFile(path, []byte(result.Content), 0644); err != nil {
		s.logger.Warn("Failed to write draft", "path", path, "error", err)
		return
	}
	s.logger.Debug("Saved draft", "path", path)
}
