// Package watcher keeps a directory of course materials ingested: new files
// become documents, changed files replace their chunks and removed files are
// deleted.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/dotdir"
	"github.com/papercomputeco/folio/pkg/extract"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/ingest/worker"
	"github.com/papercomputeco/folio/pkg/vector"
)

// Config wires a Watcher.
type Config struct {
	// Dir is the directory to watch, recursively.
	Dir string

	// Course, Type and OwnerID are applied to every document created.
	Course  string
	Type    string
	OwnerID string

	ChunkSize int

	Documents documents.Store
	Chunks    vector.Store
	Pipeline  worker.Ingester

	// Extractors defaults to extract.NewRegistry().
	Extractors *extract.Registry

	// StateDir overrides the .folio directory holding the watch state.
	StateDir string

	NumWorkers uint
	QueueSize  uint

	Logger *slog.Logger
}

// pendingFile is a file queued for ingestion.
type pendingFile struct {
	file  dotdir.WatchedFile
	isNew bool

	// dirty is set when the file changed again while queued.
	dirty bool
}

// Watcher ingests the files of one directory tree.
type Watcher struct {
	config Config
	dir    string
	pool   *worker.Pool
	ddm    *dotdir.Manager
	logger *slog.Logger

	inflight sync.WaitGroup

	mu      sync.Mutex
	state   *dotdir.WatchState
	pending map[string]*pendingFile
}

// New loads the watch state and starts the ingestion workers.
func New(c Config) (*Watcher, error) {
	switch {
	case c.Dir == "":
		return nil, errors.New("watch directory is required")
	case c.Course == "":
		return nil, fmt.Errorf("%w: course is required for watched documents", vector.ErrInvalidArgument)
	case c.Documents == nil || c.Chunks == nil || c.Pipeline == nil:
		return nil, errors.New("watcher requires document store, vector store and pipeline")
	case c.Logger == nil:
		return nil, errors.New("logger is required")
	}

	if c.Type == "" {
		c.Type = "notes"
	}
	if c.Extractors == nil {
		c.Extractors = extract.NewRegistry()
	}

	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving watch directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", vector.ErrInvalidArgument, dir)
	}

	ddm := dotdir.NewManager()
	state, err := ddm.LoadWatchState(c.StateDir)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:  c,
		dir:     dir,
		ddm:     ddm,
		logger:  c.Logger.With("dir", dir),
		state:   state,
		pending: make(map[string]*pendingFile),
	}

	w.pool, err = worker.NewPool(&worker.Config{
		Pipeline:   c.Pipeline,
		NumWorkers: c.NumWorkers,
		QueueSize:  c.QueueSize,
		OnDone:     w.onDone,
		Logger:     c.Logger,
	})
	if err != nil {
		return nil, err
	}

	return w, nil
}

// Sync reconciles the directory with the watch state: new and changed files
// are queued and files that no longer exist are deleted. It returns how many
// files were queued.
func (w *Watcher) Sync(ctx context.Context) (int, error) {
	queued := 0

	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if w.submit(ctx, path) {
			queued++
		}
		return ctx.Err()
	})
	if err != nil {
		return queued, fmt.Errorf("scanning %s: %w", w.dir, err)
	}

	w.mu.Lock()
	var gone []string
	for path := range w.state.Files {
		if !strings.HasPrefix(path, w.dir+string(filepath.Separator)) {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			gone = append(gone, path)
		}
	}
	w.mu.Unlock()

	for _, path := range gone {
		w.remove(ctx, path)
	}

	return queued, nil
}

// Run syncs the directory and then follows file system events until ctx is
// done. Queued jobs are drained before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.dir); err != nil {
		return err
	}

	queued, err := w.Sync(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("watching directory", "queued", queued)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// Wait blocks until every queued file has been ingested.
func (w *Watcher) Wait() {
	w.inflight.Wait()
}

// Close drains the queue, stops the workers and saves the watch state.
func (w *Watcher) Close() error {
	w.pool.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ddm.SaveWatchState(w.state, w.config.StateDir)
}

// Tracked returns the document ID a file was ingested as.
func (w *Watcher) Tracked(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.state.Files[path]
	return f.DocumentID, ok
}

func (w *Watcher) handle(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.remove(ctx, event.Name)

	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addTree(watcher, event.Name); err != nil {
				w.logger.Error("failed to watch new directory", "path", event.Name, "error", err)
			}
			if _, err := w.Sync(ctx); err != nil {
				w.logger.Error("sync failed", "error", err)
			}
			return
		}
		w.submit(ctx, event.Name)
	}
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// submit queues path when it is a supported file that is new or changed.
func (w *Watcher) submit(ctx context.Context, path string) bool {
	if !w.config.Extractors.Supported(path) {
		return false
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	w.mu.Lock()
	if p, ok := w.pending[path]; ok {
		p.dirty = true
		w.mu.Unlock()
		return false
	}
	tracked, isTracked := w.state.Files[path]
	if isTracked && !tracked.Changed(info) {
		w.mu.Unlock()
		return false
	}
	w.pending[path] = &pendingFile{
		file: dotdir.WatchedFile{
			DocumentID: tracked.DocumentID,
			ModTime:    info.ModTime(),
			Size:       info.Size(),
		},
		isNew: !isTracked,
	}
	w.mu.Unlock()

	text, err := w.extract(ctx, path)
	if err != nil {
		w.logger.Warn("skipping file", "path", path, "error", err)
		w.drop(path)
		return false
	}

	docID := tracked.DocumentID
	if !isTracked {
		doc, err := w.config.Documents.Create(ctx, documents.Document{
			Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			CourseCode: w.config.Course,
			Type:       w.config.Type,
			StorageURL: "file://" + path,
			OwnerID:    w.config.OwnerID,
		})
		if err != nil {
			w.logger.Error("failed to create document", "path", path, "error", err)
			w.drop(path)
			return false
		}
		docID = doc.ID

		w.mu.Lock()
		w.pending[path].file.DocumentID = docID
		w.mu.Unlock()
	}

	w.inflight.Add(1)
	ok := w.pool.Enqueue(worker.Job{
		Source:     path,
		DocumentID: docID,
		Text:       text,
		ChunkSize:  w.config.ChunkSize,
		Replace:    isTracked,
	})
	if !ok {
		w.inflight.Done()
		if !isTracked {
			w.deleteDocument(ctx, docID)
		}
		w.drop(path)
		return false
	}

	return true
}

func (w *Watcher) extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return w.config.Extractors.Extract(ctx, path, f)
}

func (w *Watcher) drop(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

// onDone records a finished job in the watch state. Partially ingested
// files are recorded since their document is searchable; failed files are
// retried on the next change or sync.
func (w *Watcher) onDone(job worker.Job, _ int, err error) {
	defer w.inflight.Done()

	w.mu.Lock()
	p, ok := w.pending[job.Source]
	delete(w.pending, job.Source)

	switch {
	case !ok:
	case err == nil || errors.Is(err, ingest.ErrPartialIngestion):
		w.state.Files[job.Source] = p.file
	case p.isNew:
		defer w.deleteDocument(context.Background(), job.DocumentID)
	}

	saveErr := w.ddm.SaveWatchState(w.state, w.config.StateDir)
	w.mu.Unlock()

	if saveErr != nil {
		w.logger.Error("failed to save watch state", "error", saveErr)
	}

	if ok && p.dirty {
		go w.submit(context.Background(), job.Source)
	}
}

// remove deletes the document a vanished file was ingested as.
func (w *Watcher) remove(ctx context.Context, path string) {
	w.mu.Lock()
	tracked, ok := w.state.Files[path]
	if ok {
		delete(w.state.Files, path)
	}
	w.mu.Unlock()

	if !ok {
		return
	}

	w.deleteDocument(ctx, tracked.DocumentID)
	w.logger.Info("removed document of deleted file", "path", path, "document_id", tracked.DocumentID)

	w.mu.Lock()
	err := w.ddm.SaveWatchState(w.state, w.config.StateDir)
	w.mu.Unlock()
	if err != nil {
		w.logger.Error("failed to save watch state", "error", err)
	}
}

func (w *Watcher) deleteDocument(ctx context.Context, id string) {
	if _, err := w.config.Chunks.DeleteByDocument(ctx, id); err != nil {
		w.logger.Error("failed to delete chunks", "document_id", id, "error", err)
	}
	if err := w.config.Documents.Delete(ctx, id); err != nil && !errors.Is(err, vector.ErrNotFound) {
		w.logger.Error("failed to delete document", "document_id", id, "error", err)
	}
}
