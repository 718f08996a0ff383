package interview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/vocalhire/interviewd/internal/transcribe"
)

// State is the session lifecycle position. There is no return from
// Completed or Errored.
type State int

const (
	StateCreated State = iota
	StateInitializing
	StateListening
	StateProcessing
	StateCompleted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the session's timing parameters.
type Config struct {
	// SilenceTimeout is how long after the last final fragment the
	// accumulated text becomes the answer. Must be positive; falls
	// back to 6s otherwise.
	SilenceTimeout time.Duration
	// CallTimeout bounds each collaborator call.
	CallTimeout time.Duration
}

// Session orchestrates one candidate's voice interview: it ingests
// audio, accumulates final transcript fragments into answers, and
// drives the question/assessment lifecycle. All outward events flow
// through the Observer bound at construction.
type Session struct {
	id          string
	store       Store
	questions   QuestionService
	stt         transcribe.Opener
	observer    Observer
	callTimeout time.Duration

	debounce *debouncer

	mu             sync.Mutex
	state          State
	questionNumber int
	resume         ResumeContext
	acc            accumulator
	stream         transcribe.Stream
	processing     bool

	teardownOnce sync.Once
}

// NewSession builds a session in StateCreated. The observer must be
// non-nil; its callbacks may arrive from timer and transcription
// goroutines.
func NewSession(id string, store Store, questions QuestionService, stt transcribe.Opener, observer Observer, cfg Config) *Session {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}

	s := &Session{
		id:          id,
		store:       store,
		questions:   questions,
		stt:         stt,
		observer:    observer,
		callTimeout: cfg.CallTimeout,
		state:       StateCreated,
	}
	s.debounce = newDebouncer(cfg.SilenceTimeout, s.onSilenceElapsed)
	return s
}

func (s *Session) ID() string { return s.id }

// Snapshot reports the current state and question number.
func (s *Session) Snapshot() (State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.questionNumber
}

// Active reports whether the interview is still in progress.
func (s *Session) Active() bool {
	state, _ := s.Snapshot()
	switch state {
	case StateInitializing, StateListening, StateProcessing:
		return true
	default:
		return false
	}
}

// Initialize loads the resume context, requests the first question, and
// persists it. On success the session is Listening and the first
// question is returned; on failure the session is Errored and an
// InitError is returned.
func (s *Session) Initialize(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state != StateCreated {
		state := s.state
		s.mu.Unlock()
		return "", fmt.Errorf("initialize from state %s", state)
	}
	s.state = StateInitializing
	s.mu.Unlock()

	resume, err := s.store.Resume(s.id)
	if err != nil {
		return "", s.failInit(fmt.Errorf("load resume context: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	question, err := s.questions.FirstQuestion(callCtx, resume)
	if err != nil {
		return "", s.failInit(fmt.Errorf("first question: %w", err))
	}
	if strings.TrimSpace(question) == "" {
		return "", s.failInit(errors.New("first question is empty"))
	}

	if err := s.store.AppendQuestion(s.id, 1, question, time.Now().UTC()); err != nil {
		return "", s.failInit(fmt.Errorf("persist first question: %w", err))
	}

	s.mu.Lock()
	s.resume = resume
	s.questionNumber = 1
	s.state = StateListening
	s.mu.Unlock()

	log.Printf("session %s: initialized with first question", s.id)
	return question, nil
}

func (s *Session) failInit(err error) error {
	s.setErrored()
	ierr := &InitError{Err: err}
	log.Printf("session %s: %v", s.id, ierr)
	return ierr
}

// StartTranscription opens the speech-to-text stream for this session's
// audio. The session itself is the transcript listener.
func (s *Session) StartTranscription(ctx context.Context) error {
	stream, err := s.stt.Open(ctx, s)
	if err != nil {
		s.setErrored()
		terr := &TranscriptionError{Err: err}
		log.Printf("session %s: %v", s.id, terr)
		return terr
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	log.Printf("session %s: transcription started", s.id)
	return nil
}

// OnAudioChunk forwards raw audio bytes to the transcription stream.
// Chunks arriving while an answer is being processed are still
// forwarded; audio is never dropped. No-op once the session is
// Completed or Errored.
func (s *Session) OnAudioChunk(p []byte) error {
	s.mu.Lock()
	state := s.state
	stream := s.stream
	s.mu.Unlock()

	if state == StateCompleted || state == StateErrored {
		return nil
	}
	if stream == nil {
		return errors.New("transcription not started")
	}

	if err := stream.SendAudio(p); err != nil {
		return &TranscriptionError{Err: err}
	}
	return nil
}

// Transcript implements transcribe.Listener. Interim fragments are
// surfaced as live captions only; final fragments accumulate and rearm
// the silence timer.
func (s *Session) Transcript(text string, isFinal bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.observer.TranscriptUpdate(text, isFinal)
	if !isFinal {
		return
	}

	s.mu.Lock()
	if s.state != StateListening && s.state != StateProcessing {
		s.mu.Unlock()
		return
	}
	s.acc.Add(text)
	s.mu.Unlock()

	s.debounce.Reset()
}

// StreamError implements transcribe.Listener. Stream failure is fatal
// for audio ingestion; the transcript recorded so far stays queryable.
func (s *Session) StreamError(message string) {
	s.mu.Lock()
	if s.state == StateCompleted || s.state == StateErrored {
		s.mu.Unlock()
		return
	}
	s.state = StateErrored
	s.mu.Unlock()

	log.Printf("session %s: transcription stream error: %s", s.id, message)
	s.observer.InterviewError("transcription error: " + message)
	s.Teardown()
}

// onSilenceElapsed runs on the debounce timer goroutine. The snapshot,
// clear, and single-flight claim happen atomically so a timer racing a
// new fragment can never double-process a window.
func (s *Session) onSilenceElapsed() {
	s.mu.Lock()
	if s.state != StateListening || s.processing || s.acc.Empty() {
		s.mu.Unlock()
		return
	}
	answer := s.acc.Flush()
	s.processing = true
	s.state = StateProcessing
	number := s.questionNumber
	resume := s.resume
	s.mu.Unlock()

	log.Printf("session %s: answer complete after silence (q%d)", s.id, number)
	s.processAnswer(resume, number, answer)
}

// processAnswer records the answer and requests the next question.
// Exactly one invocation may be in flight per session; the processing
// flag is reset on every path out.
func (s *Session) processAnswer(resume ResumeContext, number int, answer string) {
	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()

	if err := s.store.RecordAnswer(s.id, number, answer, time.Now().UTC()); err != nil {
		// A previous attempt for this question may have persisted the
		// answer before its next-question call failed.
		if !errors.Is(err, ErrAnswerRecorded) {
			s.recoverToListening(&QuestionError{Err: fmt.Errorf("record answer: %w", err)})
			return
		}
		log.Printf("session %s: answer for q%d already recorded, continuing", s.id, number)
	}

	next, err := s.questions.NextQuestion(ctx, resume, number, answer)
	if err != nil {
		s.recoverToListening(&QuestionError{Err: err})
		return
	}

	if strings.TrimSpace(next) == "" {
		log.Printf("session %s: interview complete, generating assessment", s.id)
		s.finalizeInterview(ctx, resume)
		return
	}

	if err := s.store.AppendQuestion(s.id, number+1, next, time.Now().UTC()); err != nil {
		s.recoverToListening(&QuestionError{Err: fmt.Errorf("persist question: %w", err)})
		return
	}

	s.mu.Lock()
	s.questionNumber = number + 1
	if s.state == StateProcessing {
		s.state = StateListening
	}
	s.mu.Unlock()

	log.Printf("session %s: question %d ready", s.id, number+1)
	s.observer.QuestionReady(next, number+1)
}

// recoverToListening reports a recoverable failure and lets the
// candidate keep speaking.
func (s *Session) recoverToListening(err error) {
	log.Printf("session %s: %v", s.id, err)

	s.mu.Lock()
	if s.state == StateProcessing {
		s.state = StateListening
	}
	s.mu.Unlock()

	s.observer.InterviewError(err.Error())
}

// finalizeInterview generates and persists the assessment, then marks
// the session Completed. Assessment failure degrades the result but
// never leaves the session stuck in Processing.
func (s *Session) finalizeInterview(ctx context.Context, resume ResumeContext) {
	var assessment json.RawMessage

	transcript, err := s.store.Transcript(s.id)
	if err != nil {
		aerr := &AssessmentError{Err: fmt.Errorf("load transcript: %w", err)}
		log.Printf("session %s: %v", s.id, aerr)
		s.observer.InterviewError(aerr.Error())
	} else {
		claimed, err := s.store.ClaimAssessmentRequest(s.id, transcriptHash(transcript))
		if err != nil {
			log.Printf("session %s: claim assessment request: %v", s.id, err)
			claimed = true
		}
		if claimed {
			assessment, err = s.questions.Assessment(ctx, resume, transcript)
			if err != nil {
				aerr := &AssessmentError{Err: err}
				log.Printf("session %s: %v", s.id, aerr)
				s.observer.InterviewError(aerr.Error())
				assessment = nil
			}
		}
	}

	now := time.Now().UTC()
	if assessment != nil {
		if err := s.store.SaveAssessment(s.id, assessment, now); err != nil {
			log.Printf("session %s: save assessment: %v", s.id, err)
		}
	}
	if err := s.store.CompleteInterview(s.id, now); err != nil {
		log.Printf("session %s: mark completed: %v", s.id, err)
	}

	s.debounce.Cancel()

	s.mu.Lock()
	if s.state == StateErrored {
		// The stream died while finalizing. The persisted result stands
		// but the session stays errored.
		s.mu.Unlock()
		return
	}
	s.state = StateCompleted
	s.mu.Unlock()

	log.Printf("session %s: completed", s.id)
	s.observer.InterviewComplete(assessment)
}

// Teardown stops the transcription stream and cancels any pending
// silence timer. Idempotent; safe to call from any state.
func (s *Session) Teardown() {
	s.teardownOnce.Do(func() {
		s.debounce.Cancel()

		s.mu.Lock()
		stream := s.stream
		s.stream = nil
		s.mu.Unlock()

		if stream != nil {
			stream.Stop()
		}
		log.Printf("session %s: torn down", s.id)
	})
}

func (s *Session) setErrored() {
	s.mu.Lock()
	if s.state != StateCompleted {
		s.state = StateErrored
	}
	s.mu.Unlock()
}

// transcriptHash keys assessment idempotency claims: one generation
// attempt per distinct transcript.
func transcriptHash(transcript []QARecord) string {
	h := sha256.New()
	for _, qa := range transcript {
		fmt.Fprintf(h, "%d\x00%s\x00%s\x00", qa.QuestionNumber, qa.Question, qa.Answer)
	}
	return hex.EncodeToString(h.Sum(nil))
}
