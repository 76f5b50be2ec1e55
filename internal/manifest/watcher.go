package manifest

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write before
// reporting a change.
const DefaultDebounce = 100 * time.Millisecond

// ChangeKind describes the type of file change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota // manifest written or recreated
	ChangeRemoved                    // manifest deleted or renamed away
)

// Change is a detected change of the watched manifest.
type Change struct {
	Kind ChangeKind
	File string
}

// Watcher monitors one manifest file using fsnotify. It watches the
// containing directory so editors that replace the file on save are seen.
type Watcher struct {
	File    string
	Changes <-chan Change // Read-only external channel

	debounce time.Duration
	changes  chan Change // Internal write channel
	done     chan struct{}
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the manifest at path. A debounce of zero
// uses DefaultDebounce.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ch := make(chan Change, 16)
	return &Watcher{
		File:     abs,
		Changes:  ch,
		debounce: debounce,
		changes:  ch,
		done:     make(chan struct{}),
		watcher:  fw,
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.File)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var (
		pending bool
		last    time.Time
		kind    ChangeKind
	)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				if pending {
					w.changes <- Change{Kind: kind, File: w.File}
				}
				return
			}
			if filepath.Clean(event.Name) != w.File {
				continue
			}
			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				kind = ChangeModified
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				kind = ChangeRemoved
			default:
				continue
			}
			pending = true
			last = time.Now()

		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			if pending && time.Since(last) >= w.debounce {
				w.changes <- Change{Kind: kind, File: w.File}
				pending = false
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}
