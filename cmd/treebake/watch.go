package main

import (
	"context"
	"flag"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/arbor/internal/logger"
	"github.com/Faultbox/arbor/internal/material"
)

func cmdWatch(args []string) error {
	var preview bool
	cfg, rest, err := setup("watch", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&preview, "preview", false, "Rebuild with preview settings")
	})
	if err != nil {
		return err
	}
	path, err := treeArg("watch", rest)
	if err != nil {
		return err
	}

	b, err := newBaker(cfg, path)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watch(ctx, b, cfg.Watch.Debounce, preview)
}

// pending collects the changes seen during one debounce window.
type pending struct {
	tree     bool
	textures map[string]bool
}

func (p *pending) empty() bool {
	return !p.tree && len(p.textures) == 0
}

// classify records ev if it touches the tree document or one of its
// textures. Events for unrelated files are ignored.
func (p *pending) classify(ev fsnotify.Event, b *baker) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	if name == b.path {
		p.tree = true
		return true
	}
	for _, tex := range b.texturePaths() {
		if name == tex {
			if p.textures == nil {
				p.textures = make(map[string]bool)
			}
			p.textures[name] = true
			return true
		}
	}
	return false
}

// texturePaths lists the texture files referenced by the current tree.
func (b *baker) texturePaths() []string {
	var paths []string
	if b.gen.Tree == nil {
		return nil
	}
	for _, m := range b.gen.Tree.Materials {
		for slot := 0; slot < material.SlotCount; slot++ {
			if p := m.Textures[slot]; p != "" {
				paths = append(paths, filepath.Clean(p))
			}
		}
	}
	return paths
}

// watchDirs returns the directories holding the tree and its textures.
func (b *baker) watchDirs() []string {
	seen := map[string]bool{filepath.Dir(b.path): true}
	dirs := []string{filepath.Dir(b.path)}
	for _, p := range b.texturePaths() {
		d := filepath.Dir(p)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// digests remembers the content of watched files. Editors often write a
// file several times per save, or touch it without changing it.
type digests map[string]uint64

// changed reports whether any of paths differs from its recorded digest and
// records the new ones. Unreadable files count as changed.
func (d digests) changed(paths []string) bool {
	changed := false
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			delete(d, p)
			changed = true
			continue
		}
		sum := xxhash.Sum64(data)
		if old, ok := d[p]; !ok || old != sum {
			d[p] = sum
			changed = true
		}
	}
	return changed
}

// apply reloads whatever changed and rebuilds. Failures are logged and the
// previous output stays in place.
func (b *baker) apply(p *pending, preview bool) {
	paths := slices.Sorted(maps.Keys(p.textures))
	if p.tree {
		paths = append(paths, b.path)
	}
	if len(paths) > 0 && !b.digests.changed(paths) {
		logger.Debug("content unchanged, skipping rebuild", zap.Strings("files", paths))
		return
	}

	for tex := range p.textures {
		b.textures.Invalidate(tex)
	}
	if p.tree {
		if err := b.Reload(); err != nil {
			logger.Error("reloading tree", zap.String("path", b.path), zap.Error(err))
			return
		}
	}
	if out, err := b.Bake(preview); err != nil {
		logger.Warn("rebuild failed", zap.Error(err))
	} else {
		logger.Info("rebuilt", zap.String("path", out))
	}
}

// watch rebuilds on one goroutine until ctx is done. Bursts of events are
// folded into one rebuild once debounce has passed without new events.
func watch(ctx context.Context, b *baker, debounce time.Duration, preview bool) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	addDirs := func() {
		for _, d := range b.watchDirs() {
			if err := w.Add(d); err != nil {
				logger.Warn("cannot watch directory", zap.String("dir", d), zap.Error(err))
			}
		}
	}
	addDirs()

	b.digests.changed(append(b.texturePaths(), b.path))
	b.apply(&pending{}, preview)

	timer := time.NewTimer(debounce)
	timer.Stop()
	var p pending

	logger.Info("watching", zap.String("tree", b.path), zap.Duration("debounce", debounce))
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if p.classify(ev, b) {
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			if p.empty() {
				continue
			}
			b.apply(&p, preview)
			if p.tree {
				addDirs()
			}
			p = pending{}
		}
	}
}
