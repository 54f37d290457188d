// Package cache keeps synthesized speech so that identical requests are not
// sent to the speech service twice. A bounded in-memory LRU sits in front of
// a zstd-compressed directory that survives restarts.
package cache
