package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Options configures the Deepgram live connection. Audio encoding is a
// deployment concern; the orchestrator treats the bytes as opaque.
type Options struct {
	Model          string
	Language       string
	SampleRate     int
	UtteranceEndMS int
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = "nova-2"
	}
	if o.Language == "" {
		o.Language = "en-US"
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.UtteranceEndMS <= 0 {
		o.UtteranceEndMS = 3000
	}
	return o
}

// Deepgram opens live transcription streams against the Deepgram
// websocket API. One Deepgram value serves many concurrent streams.
type Deepgram struct {
	apiKey string
	opts   Options
}

func NewDeepgram(apiKey string, opts Options) *Deepgram {
	return &Deepgram{apiKey: apiKey, opts: opts.withDefaults()}
}

// Open dials a new live transcription connection and forwards results to l.
func (d *Deepgram) Open(ctx context.Context, l Listener) (Stream, error) {
	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.opts.Model,
		Language:       d.opts.Language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: strconv.Itoa(d.opts.UtteranceEndMS),
		VadEvents:      true,
		Encoding:       "linear16",
		SampleRate:     d.opts.SampleRate,
		Channels:       1,
	}

	dgClient, err := client.NewWSUsingCallback(ctx, d.apiKey, cOptions, tOptions, liveCallback{listener: l})
	if err != nil {
		return nil, fmt.Errorf("create deepgram client: %w", err)
	}
	if ok := dgClient.Connect(); !ok {
		return nil, errors.New("deepgram connect failed")
	}

	return &deepgramStream{client: dgClient}, nil
}

// liveClient is the slice of the Deepgram websocket client the stream
// uses: Connect/Stop lifecycle plus io.Writer for audio bytes.
type liveClient interface {
	Connect() bool
	Stop()
	Write(p []byte) (int, error)
}

type deepgramStream struct {
	client liveClient
}

func (s *deepgramStream) SendAudio(p []byte) error {
	if _, err := s.client.Write(p); err != nil {
		return fmt.Errorf("send audio to deepgram: %w", err)
	}
	return nil
}

func (s *deepgramStream) Stop() {
	s.client.Stop()
}

// liveCallback translates the Deepgram callback surface into Listener calls.
type liveCallback struct {
	listener Listener
}

func (c liveCallback) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}

	sentence := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if sentence == "" {
		return nil
	}

	c.listener.Transcript(sentence, mr.IsFinal)
	return nil
}

func (c liveCallback) Open(*api.OpenResponse) error {
	log.Println("connected to Deepgram")
	return nil
}

func (c liveCallback) Metadata(*api.MetadataResponse) error { return nil }

func (c liveCallback) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (c liveCallback) UtteranceEnd(*api.UtteranceEndResponse) error { return nil }

func (c liveCallback) Close(*api.CloseResponse) error {
	log.Println("disconnected from Deepgram")
	return nil
}

func (c liveCallback) Error(er *api.ErrorResponse) error {
	c.listener.StreamError(fmt.Sprintf("%s: %s", er.ErrCode, er.Description))
	return nil
}

func (c liveCallback) UnhandledEvent([]byte) error { return nil }
