package lode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/covered/iox"
)

// DefaultReportPath is where the raw coverage report lands, relative to
// the store root.
const DefaultReportPath = "js_reports/chrome.json"

// FileWriter persists a report file.
type FileWriter interface {
	// PutFile writes data at the store-relative path. The path must be
	// relative and must not escape the store root.
	PutFile(ctx context.Context, path, contentType string, data []byte) error
}

// FileReader reads back a persisted report file.
type FileReader interface {
	GetFile(ctx context.Context, path string) ([]byte, error)
}

// StoreWriter writes report files to a Lode store created lazily from a
// factory. The store is only initialized on the first write, so a run that
// never reaches the report step never touches storage.
type StoreWriter struct {
	factory lode.StoreFactory
	backend string
	// prepare runs before each put (e.g. creating directories on disk).
	prepare func(path string) error

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewStoreWriter creates a writer over an arbitrary store factory.
// Use lode.NewMemoryFactory() for testing.
func NewStoreWriter(backend string, factory lode.StoreFactory) *StoreWriter {
	return &StoreWriter{factory: factory, backend: backend}
}

// NewFSWriter creates a writer rooted at a local directory. Parent
// directories of each report are created if absent.
func NewFSWriter(root string) *StoreWriter {
	w := NewStoreWriter("fs", lode.NewFSFactory(root))
	w.prepare = func(p string) error {
		dir := filepath.Join(root, filepath.FromSlash(path.Dir(p)))
		return os.MkdirAll(dir, 0o755)
	}
	return w
}

// Backend returns the backend label ("fs", "s3", "memory", ...).
func (w *StoreWriter) Backend() string { return w.backend }

func (w *StoreWriter) getOrCreateStore() (lode.Store, error) {
	w.storeOnce.Do(func() {
		w.store, w.storeErr = w.factory()
	})
	return w.store, w.storeErr
}

// PutFile implements FileWriter.
func (w *StoreWriter) PutFile(ctx context.Context, p, _ string, data []byte) error {
	if err := ValidatePath(p); err != nil {
		return err
	}

	// Prepare first: an fs root that does not exist yet is created here.
	if w.prepare != nil {
		if err := w.prepare(p); err != nil {
			return WrapWriteError(err, p)
		}
	}
	store, err := w.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, w.backend)
	}

	// Lode stores are write-once; a report from a previous run is replaced.
	exists, err := store.Exists(ctx, p)
	if err != nil {
		return WrapWriteError(err, p)
	}
	if exists {
		if err := store.Delete(ctx, p); err != nil {
			return WrapWriteError(err, p)
		}
	}
	return WrapWriteError(store.Put(ctx, p, bytes.NewReader(data)), p)
}

// GetFile implements FileReader.
func (w *StoreWriter) GetFile(ctx context.Context, p string) ([]byte, error) {
	if err := ValidatePath(p); err != nil {
		return nil, err
	}
	store, err := w.getOrCreateStore()
	if err != nil {
		return nil, WrapInitError(err, w.backend)
	}
	rc, err := store.Get(ctx, p)
	if err != nil {
		return nil, WrapReadError(err, p)
	}
	defer iox.DiscardClose(rc)

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, WrapReadError(err, p)
	}
	return data, nil
}

// ValidatePath rejects absolute paths and paths escaping the store root.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("report path must be non-empty")
	}
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return fmt.Errorf("report path %q must be relative to the storage root", p)
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("report path %q escapes the storage root", p)
	}
	return nil
}

// StubFileWriter records PutFile calls for testing.
type StubFileWriter struct {
	mu    sync.Mutex
	Files []StubFileRecord
	// Err, when set, is returned from every PutFile.
	Err error
}

// StubFileRecord is a recorded file write for testing.
type StubFileRecord struct {
	Path        string
	ContentType string
	Data        []byte
}

// NewStubFileWriter creates a new stub file writer.
func NewStubFileWriter() *StubFileWriter {
	return &StubFileWriter{}
}

// PutFile implements FileWriter by recording the call.
func (w *StubFileWriter) PutFile(_ context.Context, p, contentType string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Files = append(w.Files, StubFileRecord{
		Path:        p,
		ContentType: contentType,
		Data:        data,
	})
	return nil
}

// Verify implementations.
var (
	_ FileWriter = (*StoreWriter)(nil)
	_ FileReader = (*StoreWriter)(nil)
	_ FileWriter = (*StubFileWriter)(nil)
)
