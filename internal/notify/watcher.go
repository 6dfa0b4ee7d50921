package notify

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions filters what an EventWatcher delivers.
type WatcherOptions struct {
	// Types lists the accepted event types. Empty accepts every type.
	Types []string

	// MaxAge drops events written longer ago than this. Zero keeps all.
	// Also applies to orphaned .tmp files left by a crashed writer.
	MaxAge time.Duration

	Now func() time.Time
}

// EventWatcher consumes event files from {dataPath}/events/ and hands each
// accepted Event to a handler. Every file is removed once read, accepted
// or not.
type EventWatcher struct {
	dir     string
	opts    WatcherOptions
	accept  map[string]bool
	handle  func(Event)
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewEventWatcher creates a watcher for {dataPath}/events/.
func NewEventWatcher(dataPath string, opts WatcherOptions, handle func(Event)) *EventWatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var accept map[string]bool
	if len(opts.Types) > 0 {
		accept = make(map[string]bool, len(opts.Types))
		for _, t := range opts.Types {
			accept[t] = true
		}
	}
	return &EventWatcher{
		dir:    filepath.Join(dataPath, eventDir),
		opts:   opts,
		accept: accept,
		handle: handle,
		done:   make(chan struct{}),
	}
}

// Start subscribes to the directory, then delivers the backlog oldest first.
// Subscribing before the backlog scan means a file written in between is
// seen at least once; a file seen twice is only delivered by whoever
// removes it first.
func (ew *EventWatcher) Start() error {
	if err := os.MkdirAll(ew.dir, 0o700); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(ew.dir); err != nil {
		_ = w.Close()
		return err
	}
	ew.watcher = w

	ew.consumeBacklog()

	go ew.loop()
	log.Printf("notify: watching %s for engine events", ew.dir)
	return nil
}

// Stop shuts down the watcher and waits for the loop to exit.
func (ew *EventWatcher) Stop() {
	if ew.watcher == nil {
		return
	}
	_ = ew.watcher.Close()
	<-ew.done
	ew.watcher = nil
}

func (ew *EventWatcher) loop() {
	defer close(ew.done)
	for {
		select {
		case evt, ok := <-ew.watcher.Events:
			if !ok {
				return
			}
			// Writers rename into place, which arrives as Create.
			if evt.Has(fsnotify.Create) && strings.HasSuffix(evt.Name, eventSuffix) {
				ew.consume(evt.Name)
			}
		case err, ok := <-ew.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

func (ew *EventWatcher) consumeBacklog() {
	entries, err := os.ReadDir(ew.dir)
	if err != nil {
		log.Printf("notify: read backlog: %v", err)
		return
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch name := entry.Name(); {
		case strings.HasSuffix(name, eventSuffix):
			names = append(names, name)
		case strings.HasSuffix(name, ".tmp"):
			ew.removeStaleTemp(entry)
		}
	}

	// Names lead with a zero-padded timestamp.
	sort.Strings(names)
	for _, name := range names {
		ew.consume(filepath.Join(ew.dir, name))
	}
}

func (ew *EventWatcher) removeStaleTemp(entry os.DirEntry) {
	if ew.opts.MaxAge <= 0 {
		return
	}
	info, err := entry.Info()
	if err != nil || ew.opts.Now().Sub(info.ModTime()) <= ew.opts.MaxAge {
		return
	}
	_ = os.Remove(filepath.Join(ew.dir, entry.Name()))
}

func (ew *EventWatcher) consume(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		// Another watcher claimed it.
		return
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("notify: dropping unreadable %s: %v", filepath.Base(path), err)
		return
	}
	if !ew.accepts(event) {
		return
	}
	if ew.handle != nil {
		ew.handle(event)
	}
}

func (ew *EventWatcher) accepts(event Event) bool {
	if event.Type == "" {
		return false
	}
	if ew.accept != nil && !ew.accept[event.Type] {
		return false
	}
	if ew.opts.MaxAge > 0 && ew.opts.Now().Sub(event.Written()) > ew.opts.MaxAge {
		log.Printf("notify: dropping stale %s event from %s", event.Type, event.Written().Format(time.RFC3339))
		return false
	}
	return true
}
