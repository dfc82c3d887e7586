// Package audio plays 16-bit little-endian PCM and reports when an utterance
// has been fully heard.
package audio
