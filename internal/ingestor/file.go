package ingestor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/model"
)

// FileIngestor tails files matching the configured globs. Existing content is
// skipped; only lines appended after Start become records.
type FileIngestor struct {
	cfg    config.FileIngestorConfig
	logger *zap.SugaredLogger

	// offsets is owned by the Start goroutine.
	offsets map[string]int64
}

// NewFileIngestor creates a new file tailing ingestor.
func NewFileIngestor(cfg config.FileIngestorConfig, log *zap.SugaredLogger) *FileIngestor {
	return &FileIngestor{
		cfg:     cfg,
		logger:  log.Named("FileIngestor"),
		offsets: make(map[string]int64),
	}
}

// Name returns the ingestor identifier.
func (f *FileIngestor) Name() string {
	return "file"
}

// Start watches the matched files and their directories until ctx is done.
func (f *FileIngestor) Start(ctx context.Context, out chan<- *model.Record) error {
	defer close(out)

	files, err := f.expand()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dirs := make(map[string]struct{})
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			f.logger.Warnf("skipping %s: %v", file, err)
			continue
		}
		f.offsets[file] = info.Size()
		dirs[filepath.Dir(file)] = struct{}{}
	}
	// Watching directories catches writes, rotations and newly created files.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %q: %w", dir, err)
		}
	}

	f.logger.Infof("tailing files: count=%d", len(f.offsets))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if err := f.handle(ctx, event, out); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warnf("file watcher error: %v", err)
		}
	}
}

// handle reacts to a single filesystem event. Only cancellation is returned
// as an error; read failures are logged and the file is retried on its next event.
func (f *FileIngestor) handle(ctx context.Context, event fsnotify.Event, out chan<- *model.Record) error {
	name := event.Name

	switch {
	case event.Has(fsnotify.Create):
		if !f.matches(name) || f.isExcluded(name) {
			return nil
		}
		// A rotated-in file is read from the start.
		f.offsets[name] = 0
		f.logger.Debugf("new file detected: %s", name)
		return f.tail(ctx, name, out)

	case event.Has(fsnotify.Write):
		if _, tracked := f.offsets[name]; !tracked {
			return nil
		}
		return f.tail(ctx, name, out)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(f.offsets, name)
	}
	return nil
}

// tail sends every complete line appended to path since the last read.
func (f *FileIngestor) tail(ctx context.Context, path string, out chan<- *model.Record) error {
	next, err := f.readFrom(ctx, path, f.offsets[path], out)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Debugf("reading %s: %v", path, err)
	}
	f.offsets[path] = next
	return nil
}

func (f *FileIngestor) readFrom(ctx context.Context, path string, offset int64, out chan<- *model.Record) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return offset, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, err
	}
	if info.Size() < offset {
		// Truncated in place.
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// Leave a partial line for the next write event.
			return offset, nil
		}
		if err != nil {
			return offset, err
		}
		offset += int64(len(line))

		raw := trimEOL(line)
		if len(raw) == 0 {
			continue
		}
		if len(raw) > maxRecordSize {
			f.logger.Warnf("dropping oversized line: file=%s, size=%d", path, len(raw))
			continue
		}
		if err := send(ctx, out, model.NewRecord(f.Name(), raw)); err != nil {
			return offset, err
		}
	}
}

func (f *FileIngestor) expand() ([]string, error) {
	var files []string
	for _, pattern := range f.cfg.Paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !f.isExcluded(m) {
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matched patterns: %v", f.cfg.Paths)
	}
	return files, nil
}

// isExcluded checks the file's base name against the exclude patterns.
func (f *FileIngestor) isExcluded(file string) bool {
	for _, pattern := range f.cfg.Exclude {
		if matched, _ := filepath.Match(pattern, filepath.Base(file)); matched {
			return true
		}
	}
	return false
}

// matches checks a path against the configured globs.
func (f *FileIngestor) matches(file string) bool {
	for _, pattern := range f.cfg.Paths {
		if matched, _ := filepath.Match(pattern, file); matched {
			return true
		}
	}
	return false
}

func trimEOL(line []byte) []byte {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	// ReadBytes allocates, so the slice can be kept.
	return line[:n]
}
