package fieldcrypt

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Source loads a keyset from a secrets file and rebuilds it whenever the
// file changes, so long-running services pick up rotated secrets without a
// restart. The file holds one secret per line, newest first; blank lines
// and lines starting with '#' are ignored.
type Source struct {
	path string
	opts []Option
	log  *slog.Logger

	mu sync.RWMutex
	ks *Keyset

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch reads the secrets file at path and starts watching it for changes.
// A failed reload keeps the previous keyset and logs the error; the initial
// load must succeed.
func Watch(path string, opts ...Option) (*Source, error) {
	s := &Source{path: path, opts: opts, log: slog.Default(), done: make(chan struct{})}
	ks, err := s.load()
	if err != nil {
		return nil, err
	}
	s.ks = ks
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: watch %s: %w", path, err)
	}
	// Watch the directory, not the file. Editors and secret managers
	// replace files with rename, which drops a file-level watch.
	if err := w.Add(filepath.Dir(path)); err != nil {
		werr := w.Close()
		return nil, fmt.Errorf("fieldcrypt: watch %s: %w", path, joinErr(err, werr))
	}
	s.watcher = w
	go s.loop()
	return s, nil
}

// SetLogger replaces the logger used for reload reporting.
func (s *Source) SetLogger(log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
}

// Keyset returns the currently loaded keyset.
func (s *Source) Keyset() *Keyset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ks
}

// Close stops watching the secrets file.
func (s *Source) Close() error {
	close(s.done)
	return s.watcher.Close()
}

func (s *Source) loop() {
	base := filepath.Base(s.path)
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("fieldcrypt: secrets watcher error", "path", s.path, "err", err)
		}
	}
}

func (s *Source) reload() {
	ks, err := s.load()
	if err != nil {
		s.mu.RLock()
		log := s.log
		s.mu.RUnlock()
		log.Error("fieldcrypt: reload secrets failed, keeping previous keyset", "path", s.path, "err", err)
		return
	}
	s.mu.Lock()
	s.ks = ks
	log := s.log
	s.mu.Unlock()
	log.Info("fieldcrypt: secrets reloaded", "path", s.path, "keys", ks.Len())
}

func (s *Source) load() (*Keyset, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: read secrets: %w", err)
	}
	defer f.Close()
	var secrets []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		secrets = append(secrets, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("fieldcrypt: read secrets: %w", err)
	}
	return New(secrets, s.opts...)
}

func joinErr(err, other error) error {
	if other == nil {
		return err
	}
	return fmt.Errorf("%w (close: %v)", err, other)
}
