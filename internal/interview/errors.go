package interview

import (
	"errors"
	"fmt"
)

// ErrSessionExists is returned by Registry.Create for an id that already
// has an active session.
var ErrSessionExists = errors.New("session already active")

// ErrAnswerRecorded means the question already has a persisted answer.
// The first recorded answer wins; a retry after a failed next-question
// call proceeds without overwriting it.
var ErrAnswerRecorded = errors.New("answer already recorded")

// InitError means the session could not be started: missing resume
// context, unreachable collaborator, or failed persistence of the first
// question. The session never reaches Listening.
type InitError struct {
	Err error
}

func (e *InitError) Error() string { return fmt.Sprintf("initialize interview: %v", e.Err) }
func (e *InitError) Unwrap() error { return e.Err }

// TranscriptionError means the audio stream could not be opened or
// failed mid-interview. Fatal for audio ingestion; the transcript
// recorded so far remains inspectable.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// QuestionError means a next-question request failed. Recoverable: the
// session stays in Listening and the candidate may keep speaking.
type QuestionError struct {
	Err error
}

func (e *QuestionError) Error() string { return fmt.Sprintf("next question: %v", e.Err) }
func (e *QuestionError) Unwrap() error { return e.Err }

// AssessmentError means assessment generation failed. The interview
// still completes, with a degraded result.
type AssessmentError struct {
	Err error
}

func (e *AssessmentError) Error() string { return fmt.Sprintf("assessment: %v", e.Err) }
func (e *AssessmentError) Unwrap() error { return e.Err }
