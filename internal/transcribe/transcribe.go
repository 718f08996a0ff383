// Package transcribe adapts a streaming speech-to-text provider to the
// narrow contract the interview orchestrator needs: raw audio in,
// ordered transcript fragments out.
package transcribe

import "context"

// Listener receives transcript results for a single audio stream.
// Transcript is called in the order the words were spoken; isFinal
// marks fragments the provider guarantees are stable. StreamError is
// called when the provider connection fails and audio delivery can no
// longer be trusted.
type Listener interface {
	Transcript(text string, isFinal bool)
	StreamError(message string)
}

// Stream is one open transcription connection.
type Stream interface {
	SendAudio(p []byte) error
	Stop()
}

// Opener creates a transcription stream delivering results to l. The
// stream is torn down when Stop is called or ctx is cancelled.
type Opener interface {
	Open(ctx context.Context, l Listener) (Stream, error)
}
