package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"PortfolioSentinel/internal/model"
)

// JSONFileRecorder writes one indented JSON file per result under
// <dir>/recommendations and appends every successful recommendation to
// <dir>/recommendations/history.jsonl.
type JSONFileRecorder struct {
	dir string
	mu  sync.Mutex
}

// NewJSONFileRecorder creates the output directory if needed.
func NewJSONFileRecorder(dir string) (*JSONFileRecorder, error) {
	recDir := filepath.Join(dir, "recommendations")
	if err := os.MkdirAll(recDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JSONFileRecorder{dir: recDir}, nil
}

func (r *JSONFileRecorder) RecordResult(_ context.Context, res *model.PipelineResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", res.Symbol, err)
	}

	name := fmt.Sprintf("%s_%s.json", fileSafe(res.Symbol), res.FinishedAt.UTC().Format("20060102_150405"))
	if err := os.WriteFile(filepath.Join(r.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write result %s: %w", res.Symbol, err)
	}

	if res.Recommendation == nil {
		return nil
	}
	line, err := json.Marshal(res.Recommendation)
	if err != nil {
		return fmt.Errorf("marshal recommendation %s: %w", res.Symbol, err)
	}
	return r.appendHistory(line)
}

func (r *JSONFileRecorder) appendHistory(line []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(r.dir, "history.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *JSONFileRecorder) RecordCycle(_ context.Context, s *model.BatchSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	name := fmt.Sprintf("summary_%s.json", s.StartedAt.UTC().Format("20060102_150405"))
	return os.WriteFile(filepath.Join(r.dir, name), data, 0o644)
}

func (r *JSONFileRecorder) Close() error { return nil }

// fileSafe replaces characters that are awkward in file names, as found in
// forex and index tickers like EURUSD=X or ^GSPC.
func fileSafe(symbol string) string {
	out := []rune(symbol)
	for i, c := range out {
		switch c {
		case '/', '\\', '=', '^', ':':
			out[i] = '_'
		}
	}
	return string(out)
}
