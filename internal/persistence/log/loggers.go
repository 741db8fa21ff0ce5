package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"voxeltrace.ai/internal/sim/game"
)

// JSONLZstdWriter appends one JSON document per line to zstd-compressed files,
// starting a new file every UTC hour.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	level   zstd.EncoderLevel
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		level:   zstd.SpeedFastest,
		now:     time.Now,
	}
}

// Files lists the rotated files written so far, oldest first.
func (w *JSONLZstdWriter) Files() ([]string, error) {
	out, err := filepath.Glob(filepath.Join(w.baseDir, w.prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(w.level))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadFile calls fn with every line of one rotated file.
func ReadFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// StepRecord is one line of the step log. RunID tells apart server runs that
// share a data dir.
type StepRecord struct {
	RunID string    `json:"run_id"`
	Time  time.Time `json:"time"`
	game.StepLogEntry
}

// StepLogger writes one JSONL entry per simulation step (compressed).
type StepLogger struct {
	w     *JSONLZstdWriter
	runID string
}

func NewStepLogger(dataDir string) *StepLogger {
	return &StepLogger{
		w:     stepWriter(dataDir),
		runID: uuid.NewString(),
	}
}

func (l *StepLogger) RunID() string { return l.runID }

func (l *StepLogger) WriteStep(v game.StepLogEntry) error {
	return l.w.Write(StepRecord{RunID: l.runID, Time: l.w.now().UTC(), StepLogEntry: v})
}

func (l *StepLogger) Files() ([]string, error) { return l.w.Files() }
func (l *StepLogger) Close() error             { return l.w.Close() }

// AuditLogger writes one JSONL entry per applied edit (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{w: auditWriter(dataDir)}
}

func (l *AuditLogger) WriteAudit(v game.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Files() ([]string, error)           { return l.w.Files() }
func (l *AuditLogger) Close() error                       { return l.w.Close() }

func stepWriter(dataDir string) *JSONLZstdWriter {
	return NewJSONLZstdWriter(filepath.Join(dataDir, "steps"), "steps")
}

func auditWriter(dataDir string) *JSONLZstdWriter {
	return NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit")
}

// StepFiles lists the step log files under dataDir, oldest first.
func StepFiles(dataDir string) ([]string, error) { return stepWriter(dataDir).Files() }

// AuditFiles lists the audit log files under dataDir, oldest first.
func AuditFiles(dataDir string) ([]string, error) { return auditWriter(dataDir).Files() }
