// Package queue coordinates playback across articles. It keeps the single
// active playback slot, advances through the queue when an article finishes
// and reorders the queue.
package queue
