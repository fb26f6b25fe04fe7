// Package watcher keeps an index in step with a corpus directory.
//
// A Watcher reports file changes under the corpus root, using fsnotify
// when the platform supports it and periodic scanning otherwise. Events
// for the same path are coalesced by a Debouncer and delivered in
// batches. Sync consumes those batches: changed documents are reindexed,
// removed ones are deleted, and directory changes trigger a full
// reconciliation pass. The ranking engine is refreshed after every batch
// that touched the index.
package watcher
