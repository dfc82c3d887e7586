// Package engines turns text into 16-bit PCM using external TTS programs.
package engines
