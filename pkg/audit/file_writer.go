package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/observability"
)

const currentFileName = "audit.log"

// FileRecord is one JSON line of the file mirror
type FileRecord struct {
	RecordedAt time.Time `json:"recordedAt"`
	ActorID    *string   `json:"actorId"`
	ActorName  string    `json:"actorName"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	Type       Type      `json:"type"`
}

// FileWriterConfig configures the file mirror
type FileWriterConfig struct {
	Dir      string
	MaxBytes int64 // rotate once the current file reaches this size
	MaxFiles int   // rotated files to keep
	Logger   *observability.Logger
}

// FileWriter mirrors entries as JSON lines into Dir/audit.log, rotating
// to audit-<timestamp>.log when the file grows past MaxBytes
type FileWriter struct {
	dir      string
	maxBytes int64
	maxFiles int
	logger   *observability.Logger

	mu   sync.Mutex
	file *os.File
	size int64
	now  func() time.Time
}

// NewFileWriter creates Dir if needed and opens the current file for append
func NewFileWriter(cfg FileWriterConfig) (*FileWriter, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("audit file directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	w := &FileWriter{
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		maxFiles: cfg.MaxFiles,
		logger:   cfg.Logger,
		now:      time.Now,
	}
	if w.maxBytes <= 0 {
		w.maxBytes = 100 * 1024 * 1024
	}
	if w.maxFiles <= 0 {
		w.maxFiles = 10
	}
	if w.logger == nil {
		w.logger = observability.NewNopLogger()
	}

	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Record appends entry to the current file. Errors are logged only.
func (w *FileWriter) Record(ctx context.Context, entry Entry) {
	rec := FileRecord{
		RecordedAt: w.now().UTC(),
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		Action:     entry.Action,
		Details:    entry.Details,
		Type:       entry.Type,
	}
	if err := w.write(rec); err != nil {
		observability.FromContext(ctx, w.logger).WithError(err).Error("failed to mirror audit event to file")
	}
}

func (w *FileWriter) write(rec FileRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("audit file writer is closed")
	}

	if w.size >= w.maxBytes {
		if err := w.rotate(); err != nil {
			return fmt.Errorf("failed to rotate audit log file: %w", err)
		}
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	line = append(line, '\n')

	n, err := w.file.Write(line)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (w *FileWriter) open() error {
	file, err := os.OpenFile(filepath.Join(w.dir, currentFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}

	w.file = file
	w.size = info.Size()
	return nil
}

// rotate must be called with mu held
func (w *FileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	rotated := filepath.Join(w.dir, fmt.Sprintf("audit-%s.log", w.now().UTC().Format("20060102T150405.000000000")))
	if err := os.Rename(filepath.Join(w.dir, currentFileName), rotated); err != nil {
		return err
	}

	if err := w.cleanup(); err != nil {
		w.logger.WithError(err).Warn("failed to remove old audit log files")
	}

	return w.open()
}

// cleanup keeps the newest maxFiles rotated files. Names sort by time.
func (w *FileWriter) cleanup() error {
	files, err := w.RotatedFiles()
	if err != nil {
		return err
	}
	if len(files) <= w.maxFiles {
		return nil
	}
	for _, f := range files[:len(files)-w.maxFiles] {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}

// RotatedFiles lists rotated files oldest first
func (w *FileWriter) RotatedFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(w.dir, "audit-*.log"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadRecords reads up to count records from the current file, 0 for all
func (w *FileWriter) ReadRecords(count int) ([]FileRecord, error) {
	file, err := os.Open(filepath.Join(w.dir, currentFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var records []FileRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec FileRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode audit log entry: %w", err)
		}
		records = append(records, rec)
		if count > 0 && len(records) >= count {
			break
		}
	}
	return records, scanner.Err()
}

// Close closes the current file
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
