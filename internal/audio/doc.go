// Package audio turns stored speech payloads into sound. It holds the PCM
// codec, the output context abstraction with oto and mock implementations,
// and the per-article playback Engine.
package audio
