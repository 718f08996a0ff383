package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vocalhire/interviewd/internal/interview"
)

const firstQuestionPrompt = `You are a professional interviewer conducting a spoken screening interview.
The first question MUST be an introductory one, for example "Tell me about yourself"
or "Walk me through your background", phrased naturally for this candidate.
Reply with ONLY the question text.`

const nextQuestionPrompt = `You are a professional interviewer conducting a spoken screening interview.
Generate ONLY the next question. Avoid repeating earlier questions and cover a new
area where possible, mixing experience-based, skill-based, and behavioral questions.
Reply with ONLY the question text.`

const assessmentPrompt = `You are assessing a completed spoken screening interview.
Reply with ONLY a JSON object of the form:
{"overallScore": <0-100>, "technicalSkills": <0-100>, "communication": <0-100>,
"strengths": [..], "weaknesses": [..], "recommendation": "<hire|no-hire|borderline>",
"summary": "<short paragraph>"}`

// OpenAI generates interview content with the OpenAI chat completions
// API. It enforces the question cap itself: once maxQuestions answers
// are in, NextQuestion reports the interview as over.
type OpenAI struct {
	client       *openai.Client
	model        string
	maxQuestions int
	sleep        func(time.Duration)
}

func NewOpenAI(apiKey, model string, maxQuestions int) *OpenAI {
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model, maxQuestions)
}

func NewOpenAIWithConfig(config openai.ClientConfig, model string, maxQuestions int) *OpenAI {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	if maxQuestions <= 0 {
		maxQuestions = 10
	}

	return &OpenAI{
		client:       openai.NewClientWithConfig(config),
		model:        model,
		maxQuestions: maxQuestions,
		sleep:        time.Sleep,
	}
}

func (a *OpenAI) FirstQuestion(ctx context.Context, resume interview.ResumeContext) (string, error) {
	user := fmt.Sprintf("CANDIDATE RESUME:\n%s\n\nINTERVIEW STATUS: question 1 of %d.\nGenerate the first question.", resumeText(resume), a.maxQuestions)

	question, err := a.complete(ctx, firstQuestionPrompt, user)
	if err != nil {
		return "", fmt.Errorf("first question: %w", err)
	}
	return question, nil
}

func (a *OpenAI) NextQuestion(ctx context.Context, resume interview.ResumeContext, questionNumber int, answer string) (string, error) {
	if questionNumber >= a.maxQuestions {
		return "", nil
	}

	user := fmt.Sprintf(
		"CANDIDATE RESUME:\n%s\n\nINTERVIEW STATUS: %d of %d questions asked.\nLATEST ANSWER:\n%s\n\nGenerate the next question.",
		resumeText(resume), questionNumber, a.maxQuestions, answer,
	)

	question, err := a.complete(ctx, nextQuestionPrompt, user)
	if err != nil {
		return "", fmt.Errorf("next question: %w", err)
	}
	return question, nil
}

func (a *OpenAI) Assessment(ctx context.Context, resume interview.ResumeContext, transcript []interview.QARecord) (json.RawMessage, error) {
	var b strings.Builder
	for _, qa := range transcript {
		if !qa.Answered {
			continue
		}
		fmt.Fprintf(&b, "Q%d: %s\nA: %s\n\n", qa.QuestionNumber, qa.Question, qa.Answer)
	}

	user := fmt.Sprintf("CANDIDATE RESUME:\n%s\n\nTRANSCRIPT:\n%s", resumeText(resume), b.String())

	raw, err := a.complete(ctx, assessmentPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("assessment: %w", err)
	}

	cleaned := stripCodeFence(raw)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("assessment: model returned invalid JSON: %q", raw)
	}
	return json.RawMessage(cleaned), nil
}

func (a *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := 0; attempt < len(backoff); attempt++ {
		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("openai: no choices in response")
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}

		lastErr = err
		if attempt < len(backoff)-1 {
			a.sleep(backoff[attempt])
		}
	}

	return "", fmt.Errorf("openai completion failed after retries: %w", lastErr)
}

func resumeText(resume interview.ResumeContext) string {
	if len(resume.Chunks) == 0 {
		return resume.Text
	}
	return resume.Text + "\n\n" + strings.Join(resume.Chunks, "\n")
}

// stripCodeFence unwraps a ```json fenced block if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
