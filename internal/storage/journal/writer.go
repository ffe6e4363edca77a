package journal

import (
	"bytes"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

// Default configuration values.
const (
	DefaultBatchCount   = 60
	DefaultSyncInterval = time.Second
)

var errWriterClosed = errors.New("journal: writer is closed")

// SyncMode defines how the journal syncs to disk.
type SyncMode string

const (
	SyncModeSync  SyncMode = "sync"
	SyncModeBatch SyncMode = "batch"
)

// Config configures a journal writer.
type Config struct {
	Dir string

	SyncMode     SyncMode
	SyncInterval time.Duration
	BatchCount   int

	Metrics *metric.Registry
	// Logger receives background flush failures. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:          dir,
		SyncMode:     SyncModeBatch,
		SyncInterval: DefaultSyncInterval,
		BatchCount:   DefaultBatchCount,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.SyncMode == "" {
		cfg.SyncMode = SyncModeBatch
	}
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.BatchCount == 0 {
		cfg.BatchCount = DefaultBatchCount
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// journalFile is the part of *os.File the writer uses.
type journalFile interface {
	io.Writer
	Sync() error
	Close() error
}

// FileName returns the journal file name of a session.
func FileName(sessionID string) string {
	return sessionID + FileExtension
}

// Writer appends confirmed frames to one session journal.
type Writer struct {
	cfg Config

	mu     sync.Mutex
	file   journalFile
	path   string
	hash   hash.Hash
	buffer bytes.Buffer
	queued int
	frames int
	last   domain.Frame
	closed bool

	syncTicker *time.Ticker
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewWriter creates the journal of the session described by h.
func NewWriter(cfg Config, h Header) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("journal: dir is required")
	}
	if !domain.IsValidSessionID(h.SessionID) {
		return nil, fmt.Errorf("journal: invalid session id %q", h.SessionID)
	}
	if err := os.MkdirAll(cfg.Dir, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	applyDefaults(&cfg)

	path := filepath.Join(cfg.Dir, FileName(h.SessionID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", path, err)
	}

	sum, err := blake2b.New256(nil)
	if err != nil {
		file.Close()
		return nil, err
	}
	w := &Writer{
		cfg:    cfg,
		file:   file,
		path:   path,
		hash:   sum,
		last:   domain.NullFrame,
		stopCh: make(chan struct{}),
	}

	header, err := encodeHeader(h)
	if err != nil {
		file.Close()
		return nil, err
	}
	if err := w.writeLocked(append([]byte(MagicBytes), header...)); err != nil {
		file.Close()
		return nil, err
	}

	if cfg.SyncMode == SyncModeBatch {
		w.startSyncLoop()
	}
	return w, nil
}

// Path returns the journal file path.
func (w *Writer) Path() string {
	return w.path
}

// Frames returns the number of frames appended so far.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Append buffers a confirmed frame. Frames must be appended in order
// without gaps, starting at 0.
func (w *Writer) Append(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errWriterClosed
	}
	if f.Frame != w.last+1 {
		return fmt.Errorf("journal: frame %d after %d", f.Frame, w.last)
	}
	entry, err := encodeConfirmed(f)
	if err != nil {
		return err
	}
	w.buffer.Write(entry)
	w.queued++
	w.frames++
	w.last = f.Frame

	if w.queued >= w.cfg.BatchCount || w.cfg.SyncMode == SyncModeSync {
		return w.flushLocked()
	}
	return nil
}

// Flush writes buffered frames to disk.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if w.file == nil {
		return errWriterClosed
	}
	if w.buffer.Len() > 0 {
		n, err := w.write(w.buffer.Bytes())
		// Written bytes are on disk and hashed; only the rest is retried.
		w.buffer.Next(n)
		w.cfg.Metrics.AddJournalBytes(n)
		if err != nil {
			return fmt.Errorf("journal: write batch: %w", err)
		}
		w.queued = 0
	}
	if w.cfg.SyncMode == SyncModeSync {
		return w.file.Sync()
	}
	return nil
}

func (w *Writer) writeLocked(p []byte) error {
	_, err := w.write(p)
	return err
}

func (w *Writer) write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	if n > 0 {
		w.hash.Write(p[:n])
	}
	return n, err
}

func (w *Writer) startSyncLoop() {
	w.syncTicker = time.NewTicker(w.cfg.SyncInterval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.syncTicker.C:
				if err := w.Flush(); err != nil {
					w.cfg.Logger.Warn("journal flush failed", "path", w.path, "error", err)
				}
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Close flushes pending frames and seals the journal with a BLAKE2b-256
// trailer over everything written. The file is closed even when flushing
// fails; such a journal stays unsealed.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stopCh)
	w.mu.Unlock()

	if w.syncTicker != nil {
		w.syncTicker.Stop()
	}
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.sealLocked()
	if cerr := w.file.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("journal: close: %w", cerr))
	}
	w.file = nil
	return err
}

func (w *Writer) sealLocked() error {
	if err := w.flushLocked(); err != nil {
		return err
	}
	if _, err := w.file.Write(w.hash.Sum(nil)); err != nil {
		return fmt.Errorf("journal: write checksum: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("journal: sync: %w", err)
	}
	return nil
}
