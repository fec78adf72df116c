// Package watch is joi's dispatch engine. It turns batches of changed
// paths into watcher runs: every registered Watcher whose interests and
// patterns match part of a batch gets its previous task cancelled and a new
// one started with the matched paths, so at most one task per watcher is
// ever tracked.
//
// Batches are processed sequentially by a Runner; actions run concurrently
// on their own goroutines and are never awaited by the dispatcher. Source
// adapts fsnotify to the batch model, debouncing bursts of events and
// collapsing repeated changes to one path into a single change kind.
//
// A replaced task is cancelled but not joined. A command killed mid-way may
// leave partial side effects that overlap with its replacement.
package watch
