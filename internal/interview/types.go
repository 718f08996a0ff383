package interview

import (
	"context"
	"encoding/json"
	"time"
)

// ResumeContext is the candidate material handed to the question and
// assessment collaborators. It is loaded once at initialization and
// passed through unchanged.
type ResumeContext struct {
	Text   string   `json:"resumeText"`
	Chunks []string `json:"chunks"`
}

// QARecord is one entry of the interview transcript. Answer is empty
// until the candidate's response for that question is finalized;
// Answered distinguishes "no answer yet" from an empty answer.
type QARecord struct {
	QuestionNumber int    `json:"questionNumber"`
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	Answered       bool   `json:"answered"`
}

// Store is the persistence collaborator. Implementations must tolerate
// retried calls after partial failure.
type Store interface {
	Resume(interviewID string) (ResumeContext, error)
	AppendQuestion(interviewID string, number int, question string, askedAt time.Time) error
	RecordAnswer(interviewID string, number int, answer string, answeredAt time.Time) error
	Transcript(interviewID string) ([]QARecord, error)
	CompleteInterview(interviewID string, endedAt time.Time) error
	SaveAssessment(interviewID string, assessment json.RawMessage, createdAt time.Time) error
	ClaimAssessmentRequest(interviewID, transcriptHash string) (bool, error)
}

// QuestionService generates interview content. NextQuestion returns an
// empty string to signal the interview is over.
type QuestionService interface {
	FirstQuestion(ctx context.Context, resume ResumeContext) (string, error)
	NextQuestion(ctx context.Context, resume ResumeContext, questionNumber int, answer string) (string, error)
	Assessment(ctx context.Context, resume ResumeContext, transcript []QARecord) (json.RawMessage, error)
}

// Observer receives the session's outward-facing events. It is bound at
// construction and must never be nil; callbacks may arrive from timer
// and transcription goroutines.
type Observer interface {
	QuestionReady(question string, number int)
	TranscriptUpdate(text string, isFinal bool)
	InterviewComplete(assessment json.RawMessage)
	InterviewError(message string)
}
