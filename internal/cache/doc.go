// Package cache stores synthesized PCM so repeated segments are not rendered
// twice. A size bounded LRU in memory sits in front of a zstd compressed
// directory on disk.
package cache
