// Package journal appends engine events to a rotating JSON lines file.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
	docsync "github.com/klauern/docsync/internal/sync"
)

// Config configures the journal file and its rotation.
type Config struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Record is one journal line.
type Record struct {
	Time            time.Time        `json:"time"`
	Type            model.EventType  `json:"type"`
	ConflictID      string           `json:"conflict_id,omitempty"`
	Path            string           `json:"path,omitempty"`
	Paths           []string         `json:"paths,omitempty"`
	Resolution      model.Resolution `json:"resolution,omitempty"`
	LocalPreview    string           `json:"local_preview,omitempty"`
	ExternalPreview string           `json:"external_preview,omitempty"`
	Error           string           `json:"error,omitempty"`
	Conflicts       int              `json:"conflicts,omitempty"`
	// ResolvedAt is the engine's resolution time; Time is when the line was written.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Journal writes one Record per engine event.
type Journal struct {
	mu  sync.Mutex
	out io.WriteCloser
	now func() time.Time
}

// New opens the journal file, creating its directory.
func New(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return newWithWriter(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}), nil
}

func newWithWriter(w io.WriteCloser) *Journal {
	return &Journal{out: w, now: time.Now}
}

// Subscribe writes every event emitted by engine until the returned
// function is called.
func (j *Journal) Subscribe(engine *docsync.Engine) func() {
	return engine.Subscribe(func(ev model.Event) {
		if err := j.Write(ev); err != nil {
			logging.Warn("failed to write journal record", logging.Event(string(ev.Type())), logging.Err(err))
		}
	})
}

// Write appends a record for ev.
func (j *Journal) Write(ev model.Event) error {
	rec := toRecord(ev)
	rec.Time = j.now()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode journal record: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.out.Write(data); err != nil {
		return fmt.Errorf("failed to write journal record: %w", err)
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.out.Close()
}

func toRecord(ev model.Event) Record {
	rec := Record{Type: ev.Type()}
	switch e := ev.(type) {
	case model.DetectionStarted:
		rec.Paths = e.Paths
	case model.ConflictDetected:
		rec.ConflictID = e.Conflict.ID
		rec.Path = e.Conflict.Path
		rec.LocalPreview = docsync.Preview(e.Conflict.LocalContent)
		rec.ExternalPreview = docsync.Preview(e.Conflict.ExternalContent)
	case model.ConflictResolved:
		rec.ConflictID = e.Conflict.ID
		rec.Path = e.Conflict.Path
		rec.Resolution = e.Resolution
		rec.ResolvedAt = e.Conflict.ResolvedAt
		rec.LocalPreview = docsync.Preview(e.Conflict.LocalContent)
		rec.ExternalPreview = docsync.Preview(e.Conflict.ExternalContent)
	case model.DetectionCompleted:
		rec.Conflicts = len(e.Result.Conflicts)
		if len(e.Result.Errors) > 0 {
			rec.Error = fmt.Sprintf("%d path(s) failed", len(e.Result.Errors))
		}
	case model.ErrorEvent:
		rec.ConflictID = e.ConflictID
		rec.Path = e.Path
		rec.Error = e.Message
	}
	return rec
}

// ReadResolved returns up to limit of the most recent resolution records
// in the journal file, oldest first. A missing file yields no records.
// limit <= 0 returns every record.
func ReadResolved(path string, limit int) ([]model.ConflictHistoryEntry, error) {
	f, err := os.Open(path) // #nosec G304 - journal path comes from configuration
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []model.ConflictHistoryEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			logging.Debug("skipping malformed journal line", logging.Err(err))
			continue
		}
		if rec.Type != model.EventConflictResolved {
			continue
		}
		resolvedAt := rec.Time
		if rec.ResolvedAt != nil {
			resolvedAt = *rec.ResolvedAt
		}
		entries = append(entries, model.ConflictHistoryEntry{
			ConflictID:      rec.ConflictID,
			Path:            rec.Path,
			Resolution:      rec.Resolution,
			LocalPreview:    rec.LocalPreview,
			ExternalPreview: rec.ExternalPreview,
			ResolvedAt:      resolvedAt,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
