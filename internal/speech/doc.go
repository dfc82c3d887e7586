// Package speech sequences transcript segments through a synthesizer.
//
// A Controller owns the playback state for one session. Control methods
// return immediately; their effects are observed through the state change
// callback and the audio the synthesizer produces. The synthesizer reports
// finished utterances as Completion events which are fed back with
// HandleCompletion, usually by Run.
package speech
