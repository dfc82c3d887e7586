// Package transcript splits speaker-tagged text into ordered segments.
package transcript
