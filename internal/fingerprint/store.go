package fingerprint

import (
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/adrg/xdg"

	"github.com/goliatone/go-pagesync/internal/logging"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

const (
	headerSource = "source"
	headerHash   = "hash"

	// DefaultRelativePath is joined onto the XDG data home.
	DefaultRelativePath = "pagesync/fingerprints.csv"
)

// DefaultPath returns $XDG_DATA_HOME/pagesync/fingerprints.csv, creating the
// parent directory.
func DefaultPath() (string, error) {
	return xdg.DataFile(DefaultRelativePath)
}

// FileStore keeps fingerprints in memory and persists them as CSV records
// with a source,hash header.
type FileStore struct {
	path   string
	logger interfaces.Logger

	mu     sync.Mutex
	hashes map[string]string
	dirty  bool
	exists bool
}

var _ interfaces.FingerprintStore = (*FileStore)(nil)

// StoreOption customises a FileStore.
type StoreOption func(*FileStore)

// WithLogger sets the store logger.
func WithLogger(logger interfaces.Logger) StoreOption {
	return func(s *FileStore) {
		s.logger = logging.Ensure(logger)
	}
}

// Open loads the fingerprint file at path. A missing file yields an empty
// store; a malformed one fails with FINGERPRINT_CORRUPT and is left untouched.
func Open(path string, opts ...StoreOption) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("fingerprint: path required")
	}
	store := &FileStore{
		path:   path,
		logger: logging.NoOp(),
		hashes: map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		store.logger.Debug("pagesync.fingerprint.missing", "path", path)
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fingerprint: open %s: %w", path, err)
	}
	defer file.Close()

	hashes, err := decode(path, file)
	if err != nil {
		return nil, err
	}
	store.hashes = hashes
	store.exists = true
	store.logger.Debug("pagesync.fingerprint.loaded", "path", path, "entries", len(hashes))
	return store, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(source string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.hashes[source]
	return hash, ok
}

func (s *FileStore) Set(source, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash = strings.ToLower(hash)
	if current, ok := s.hashes[source]; ok && current == hash {
		return
	}
	s.hashes[source] = hash
	s.dirty = true
}

func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}

// Snapshot returns a copy of the current mapping.
func (s *FileStore) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hashes))
	for k, v := range s.hashes {
		out[k] = v
	}
	return out
}

// Flush writes every record to a temporary file next to the target and
// renames it into place. Nothing is written when the store is unchanged and
// the file already exists.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty && s.exists {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fingerprint: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".fingerprints-*.tmp")
	if err != nil {
		return fmt.Errorf("fingerprint: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := encode(tmp, s.hashes); err != nil {
		cleanup()
		return fmt.Errorf("fingerprint: write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fingerprint: sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fingerprint: close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fingerprint: chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fingerprint: replace %s: %w", s.path, err)
	}

	s.dirty = false
	s.exists = true
	s.logger.Debug("pagesync.fingerprint.flushed", "path", s.path, "entries", len(s.hashes))
	return nil
}

func encode(w io.Writer, hashes map[string]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{headerSource, headerHash}); err != nil {
		return err
	}
	sources := make([]string, 0, len(hashes))
	for source := range hashes {
		sources = append(sources, source)
	}
	slices.Sort(sources)
	for _, source := range sources {
		if err := writer.Write([]string{source, hashes[source]}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// decode reads CSV records, accepting files without a header line.
func decode(path string, r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	hashes := map[string]string{}
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, wrapCorrupt(&CorruptError{Path: path, Line: line, Reason: "unreadable record", Err: err})
		}
		line, _ := reader.FieldPos(0)

		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}

		if len(record) != 2 {
			return nil, wrapCorrupt(&CorruptError{Path: path, Line: line, Reason: fmt.Sprintf("expected 2 fields, got %d", len(record))})
		}
		source := strings.TrimSpace(record[0])
		hash := strings.ToLower(strings.TrimSpace(record[1]))
		if source == "" {
			return nil, wrapCorrupt(&CorruptError{Path: path, Line: line, Reason: "empty source"})
		}
		if !validHash(hash) {
			return nil, wrapCorrupt(&CorruptError{Path: path, Line: line, Reason: fmt.Sprintf("invalid hash %q", hash)})
		}
		if _, dup := hashes[source]; dup {
			return nil, wrapCorrupt(&CorruptError{Path: path, Line: line, Reason: fmt.Sprintf("duplicate source %q", source)})
		}
		hashes[source] = hash
	}
	return hashes, nil
}

func isHeader(record []string) bool {
	return len(record) == 2 &&
		strings.EqualFold(strings.TrimSpace(record[0]), headerSource) &&
		strings.EqualFold(strings.TrimSpace(record[1]), headerHash)
}

func validHash(hash string) bool {
	if hash == "" {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
