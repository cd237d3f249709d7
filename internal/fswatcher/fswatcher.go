// Package fswatcher watches the logs directory and triggers a callback for
// every new .json file, so dropped-in logs are scanned without manual import.
package fswatcher

import (
	"context"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/pynezz/heimdall/internal/util"
)

// Watch blocks until ctx is done, invoking onCreate for every .json file
// created under dir.
func Watch(ctx context.Context, dir string, onCreate func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	util.PrintInfo("Watching directory: " + dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && strings.HasSuffix(event.Name, ".json") {
				onCreate(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			util.PrintWarningf("watcher error: %v", err)
		}
	}
}

// Feed fans one stream of messages out to any number of subscribers. Used to
// push alert notifications to websocket clients and the dashboard.
type Feed struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan string]struct{})}
}

// Subscribe registers a new listener. The returned cancel function must be
// called to drop the subscription.
func (f *Feed) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 16)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a message to every subscriber. Slow subscribers with a
// full buffer miss the message rather than block the publisher.
func (f *Feed) Publish(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
