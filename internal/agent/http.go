package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vocalhire/interviewd/internal/interview"
)

// HTTP talks to a remote interview-agent service exposing
// /init-interview, /next-question, and /generate-assessment. The
// http.Client is persistent so connections are pooled across calls.
type HTTP struct {
	baseURL string
	client  *http.Client
}

func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type initInterviewRequest struct {
	ResumeText string   `json:"resumeText"`
	Chunks     []string `json:"chunks"`
}

type initInterviewResponse struct {
	Question string `json:"question"`
}

type nextQuestionRequest struct {
	ResumeText            string   `json:"resumeText"`
	Chunks                []string `json:"chunks"`
	CurrentQuestionNumber int      `json:"currentQuestionNumber"`
	CurrentAnswer         string   `json:"currentAnswer"`
}

type nextQuestionResponse struct {
	NextQuestion *string `json:"nextQuestion"`
}

type assessmentRequest struct {
	ResumeText string               `json:"resumeText"`
	Chunks     []string             `json:"chunks"`
	Transcript []interview.QARecord `json:"transcript"`
}

type assessmentResponse struct {
	Assessment json.RawMessage `json:"assessment"`
}

func (a *HTTP) FirstQuestion(ctx context.Context, resume interview.ResumeContext) (string, error) {
	var resp initInterviewResponse
	err := a.post(ctx, "/init-interview", initInterviewRequest{
		ResumeText: resume.Text,
		Chunks:     resume.Chunks,
	}, &resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Question), nil
}

func (a *HTTP) NextQuestion(ctx context.Context, resume interview.ResumeContext, questionNumber int, answer string) (string, error) {
	var resp nextQuestionResponse
	err := a.post(ctx, "/next-question", nextQuestionRequest{
		ResumeText:            resume.Text,
		Chunks:                resume.Chunks,
		CurrentQuestionNumber: questionNumber,
		CurrentAnswer:         answer,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.NextQuestion == nil {
		return "", nil
	}
	return strings.TrimSpace(*resp.NextQuestion), nil
}

func (a *HTTP) Assessment(ctx context.Context, resume interview.ResumeContext, transcript []interview.QARecord) (json.RawMessage, error) {
	var resp assessmentResponse
	err := a.post(ctx, "/generate-assessment", assessmentRequest{
		ResumeText: resume.Text,
		Chunks:     resume.Chunks,
		Transcript: transcript,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Assessment) == 0 {
		return nil, fmt.Errorf("agent returned no assessment")
	}
	return resp.Assessment, nil
}

func (a *HTTP) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("call agent %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("agent %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode agent response: %w", err)
	}
	return nil
}
