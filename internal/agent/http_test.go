package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vocalhire/interviewd/internal/interview"
)

func newFakeAgent(t *testing.T, handler http.Handler) *HTTP {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTP(srv.URL + "/")
}

func TestHTTPFirstQuestion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/init-interview", func(w http.ResponseWriter, r *http.Request) {
		var req initInterviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResumeText != "resume body" || len(req.Chunks) != 1 {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(initInterviewResponse{Question: " Tell me about yourself. "})
	})

	a := newFakeAgent(t, mux)
	question, err := a.FirstQuestion(context.Background(), interview.ResumeContext{Text: "resume body", Chunks: []string{"chunk"}})
	if err != nil {
		t.Fatalf("FirstQuestion failed: %v", err)
	}
	if question != "Tell me about yourself." {
		t.Fatalf("unexpected question: %q", question)
	}
}

func TestHTTPNextQuestion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/next-question", func(w http.ResponseWriter, r *http.Request) {
		var req nextQuestionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.CurrentQuestionNumber != 2 || req.CurrentAnswer != "my answer" {
			t.Errorf("unexpected request: %+v", req)
		}
		next := "What is your biggest strength?"
		_ = json.NewEncoder(w).Encode(nextQuestionResponse{NextQuestion: &next})
	})

	a := newFakeAgent(t, mux)
	next, err := a.NextQuestion(context.Background(), interview.ResumeContext{Text: "r"}, 2, "my answer")
	if err != nil {
		t.Fatalf("NextQuestion failed: %v", err)
	}
	if next != "What is your biggest strength?" {
		t.Fatalf("unexpected question: %q", next)
	}
}

func TestHTTPNextQuestionNullEndsInterview(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/next-question", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nextQuestion": null}`))
	})

	a := newFakeAgent(t, mux)
	next, err := a.NextQuestion(context.Background(), interview.ResumeContext{Text: "r"}, 5, "last answer")
	if err != nil {
		t.Fatalf("NextQuestion failed: %v", err)
	}
	if next != "" {
		t.Fatalf("expected empty question for null, got %q", next)
	}
}

func TestHTTPAssessment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate-assessment", func(w http.ResponseWriter, r *http.Request) {
		var req assessmentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Transcript) != 1 || req.Transcript[0].QuestionNumber != 1 {
			t.Errorf("unexpected transcript: %+v", req.Transcript)
		}
		_, _ = w.Write([]byte(`{"assessment": {"overallScore": 77}}`))
	})

	a := newFakeAgent(t, mux)
	transcript := []interview.QARecord{{QuestionNumber: 1, Question: "Q?", Answer: "A.", Answered: true}}
	assessment, err := a.Assessment(context.Background(), interview.ResumeContext{Text: "r"}, transcript)
	if err != nil {
		t.Fatalf("Assessment failed: %v", err)
	}
	if string(assessment) != `{"overallScore": 77}` {
		t.Fatalf("unexpected assessment: %s", assessment)
	}
}

func TestHTTPErrorIncludesStatusAndDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/init-interview", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "resume too short", http.StatusUnprocessableEntity)
	})

	a := newFakeAgent(t, mux)
	_, err := a.FirstQuestion(context.Background(), interview.ResumeContext{Text: "r"})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "resume too short") {
		t.Fatalf("expected status and detail in error, got %v", err)
	}
}
