package tradelog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// jsonlWriter appends newline-delimited JSON records to a file. It is safe
// for concurrent use. A nil writer (blank path) swallows writes, which lets
// callers disable a log stream via config without branching.
type jsonlWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

func newJSONLWriter(path string) *jsonlWriter {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &jsonlWriter{path: path}
}

func (w *jsonlWriter) ensureOpenLocked() error {
	if w.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	w.file = f
	w.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

// write appends v as a single JSON object followed by '\n' and flushes so the
// record is visible to tailers immediately.
func (w *jsonlWriter) write(v any) error {
	if w == nil {
		return nil
	}
	if v == nil {
		return fmt.Errorf("tradelog: nil record")
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpenLocked(); err != nil {
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

// close flushes any buffered data and closes the underlying file.
func (w *jsonlWriter) close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.w != nil {
		if err := w.w.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.w = nil
	w.file = nil

	if firstErr != nil && errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	return firstErr
}

// ReadRecords decodes every JSONL record in the file at path. Missing files
// yield an empty slice.
func ReadRecords[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []T
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec T
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("tradelog: parse %s: %w", path, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
