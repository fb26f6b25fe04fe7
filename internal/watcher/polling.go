package watcher

import (
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// snapshotTree records the state of every non-ignored entry under root,
// keyed by slash-separated relative path. Unreadable entries are skipped.
func snapshotTree(root string, ignore IgnoreFunc) map[string]fileSnapshot {
	state := make(map[string]fileSnapshot)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ignore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
		return nil
	})
	return state
}

// diffSnapshots returns the events that turn prev into cur, sorted by path.
func diffSnapshots(prev, cur map[string]fileSnapshot, now time.Time) []FileEvent {
	var events []FileEvent
	for path, snap := range cur {
		old, ok := prev[path]
		switch {
		case !ok:
			events = append(events, FileEvent{Path: path, Operation: OpCreate, IsDir: snap.isDir, Timestamp: now})
		case !snap.isDir && (!old.modTime.Equal(snap.modTime) || old.size != snap.size):
			events = append(events, FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path, snap := range prev {
		if _, ok := cur[path]; !ok {
			events = append(events, FileEvent{Path: path, Operation: OpDelete, IsDir: snap.isDir, Timestamp: now})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}
