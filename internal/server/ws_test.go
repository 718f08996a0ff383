package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vocalhire/interviewd/internal/interview"
	"github.com/vocalhire/interviewd/internal/storage"
	"github.com/vocalhire/interviewd/internal/transcribe"
)

type fakeQuestions struct {
	next func(number int, answer string) (string, error)
}

func (q *fakeQuestions) FirstQuestion(context.Context, interview.ResumeContext) (string, error) {
	return "Tell me about yourself.", nil
}

func (q *fakeQuestions) NextQuestion(_ context.Context, _ interview.ResumeContext, number int, answer string) (string, error) {
	if q.next != nil {
		return q.next(number, answer)
	}
	return fmt.Sprintf("Question %d?", number+1), nil
}

func (q *fakeQuestions) Assessment(context.Context, interview.ResumeContext, []interview.QARecord) (json.RawMessage, error) {
	return json.RawMessage(`{"overallScore":88}`), nil
}

type fakeStream struct {
	mu    sync.Mutex
	audio [][]byte
}

func (s *fakeStream) SendAudio(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, append([]byte(nil), p...))
	return nil
}

func (s *fakeStream) Stop() {}

func (s *fakeStream) audioCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}

// fakeOpener hands back a captured listener so tests can inject
// transcript fragments as if they came from the speech service.
type fakeOpener struct {
	mu       sync.Mutex
	stream   *fakeStream
	listener transcribe.Listener
	opened   chan struct{}
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{stream: &fakeStream{}, opened: make(chan struct{}, 1)}
}

func (o *fakeOpener) Open(_ context.Context, l transcribe.Listener) (transcribe.Stream, error) {
	o.mu.Lock()
	o.listener = l
	o.mu.Unlock()
	select {
	case o.opened <- struct{}{}:
	default:
	}
	return o.stream, nil
}

func (o *fakeOpener) waitListener(t *testing.T) transcribe.Listener {
	t.Helper()
	select {
	case <-o.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transcription stream to open")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.listener
}

type serverFrame struct {
	Type           string          `json:"type"`
	Text           string          `json:"text"`
	QuestionNumber int             `json:"questionNumber"`
	Message        string          `json:"message"`
	IsFinal        bool            `json:"isFinal"`
	Assessment     json.RawMessage `json:"assessment"`
}

type harness struct {
	srv      *httptest.Server
	store    *storage.SQLiteStore
	registry *interview.Registry
	opener   *fakeOpener
}

func newHarness(t *testing.T, questions interview.QuestionService) *harness {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "interviewd.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if questions == nil {
		questions = &fakeQuestions{}
	}

	opener := newFakeOpener()
	cfg := interview.Config{SilenceTimeout: 50 * time.Millisecond}
	registry := interview.NewRegistry(func(id string, observer interview.Observer) *interview.Session {
		return interview.NewSession(id, store, questions, opener, observer, cfg)
	})
	t.Cleanup(registry.Shutdown)

	srv := httptest.NewServer(Handler(registry, store))
	t.Cleanup(srv.Close)

	return &harness{srv: srv, store: store, registry: registry, opener: opener}
}

func (h *harness) seedInterview(t *testing.T, id string) {
	t.Helper()

	resume := interview.ResumeContext{Text: "Senior Go engineer, 8 years.", Chunks: []string{"grpc"}}
	if err := h.store.CreateInterview(id, "Sam Park", resume, time.Now()); err != nil {
		t.Fatalf("CreateInterview failed: %v", err)
	}
}

func (h *harness) dial(t *testing.T, id string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/interviews/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("ws dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f serverFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func readFrameOfType(t *testing.T, conn *websocket.Conn, frameType string) serverFrame {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, conn)
		if f.Type == frameType {
			return f
		}
	}
	t.Fatalf("timeout waiting for %q frame", frameType)
	return serverFrame{}
}

func TestWSHandshakeDeliversQuestionAndReady(t *testing.T) {
	h := newHarness(t, nil)
	h.seedInterview(t, "iv-1")

	conn := h.dial(t, "iv-1")

	q := readFrame(t, conn)
	if q.Type != "question" || q.QuestionNumber != 1 {
		t.Fatalf("expected first question frame, got %+v", q)
	}
	if q.Text != "Tell me about yourself." {
		t.Fatalf("unexpected question text: %q", q.Text)
	}

	ready := readFrame(t, conn)
	if ready.Type != "ready" {
		t.Fatalf("expected ready frame, got %+v", ready)
	}
}

func TestWSFullInterviewFlow(t *testing.T) {
	questions := &fakeQuestions{
		next: func(number int, _ string) (string, error) {
			if number >= 2 {
				return "", nil
			}
			return "What was your hardest production incident?", nil
		},
	}
	h := newHarness(t, questions)
	h.seedInterview(t, "iv-1")

	conn := h.dial(t, "iv-1")
	readFrameOfType(t, conn, "question")
	readFrameOfType(t, conn, "ready")

	listener := h.opener.waitListener(t)

	// Binary audio is forwarded to the speech stream untouched.
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	listener.Transcript("I migrated our", false)
	interim := readFrameOfType(t, conn, "transcript")
	if interim.IsFinal {
		t.Fatal("expected interim caption")
	}

	listener.Transcript("I migrated our monolith to services", true)
	final := readFrameOfType(t, conn, "transcript")
	if !final.IsFinal {
		t.Fatal("expected final transcript frame")
	}

	q2 := readFrameOfType(t, conn, "question")
	if q2.QuestionNumber != 2 {
		t.Fatalf("expected question 2 after silence, got %+v", q2)
	}

	listener.Transcript("We shipped in six weeks", true)
	complete := readFrameOfType(t, conn, "complete")
	if string(complete.Assessment) != `{"overallScore":88}` {
		t.Fatalf("unexpected assessment: %s", complete.Assessment)
	}

	transcript, err := h.store.Transcript("iv-1")
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected 2 questions persisted, got %d", len(transcript))
	}
	if transcript[0].Answer != "I migrated our monolith to services" {
		t.Fatalf("unexpected first answer: %q", transcript[0].Answer)
	}

	if got := h.opener.stream.audioCount(); got != 1 {
		t.Fatalf("expected 1 audio chunk forwarded, got %d", got)
	}
}

func TestWSBase64AudioFrames(t *testing.T) {
	h := newHarness(t, nil)
	h.seedInterview(t, "iv-1")

	conn := h.dial(t, "iv-1")
	readFrameOfType(t, conn, "ready")
	h.opener.waitListener(t)

	payload := base64.StdEncoding.EncodeToString([]byte{7, 8, 9})
	msg, _ := json.Marshal(clientFrame{Type: "audio", Data: payload})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write audio message: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.opener.stream.audioCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for audio to reach the stream")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWSPingPong(t *testing.T) {
	h := newHarness(t, nil)
	h.seedInterview(t, "iv-1")

	conn := h.dial(t, "iv-1")
	readFrameOfType(t, conn, "ready")

	msg, _ := json.Marshal(clientFrame{Type: "ping"})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	pong := readFrameOfType(t, conn, "pong")
	if pong.Type != "pong" {
		t.Fatalf("expected pong, got %+v", pong)
	}
}

func TestWSEndTearsDownWithoutAssessment(t *testing.T) {
	h := newHarness(t, nil)
	h.seedInterview(t, "iv-1")

	conn := h.dial(t, "iv-1")
	readFrameOfType(t, conn, "ready")

	msg, _ := json.Marshal(clientFrame{Type: "end"})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write end: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.registry.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for session removal")
		}
		time.Sleep(10 * time.Millisecond)
	}

	assessment, err := h.store.Assessment("iv-1")
	if err != nil {
		t.Fatalf("Assessment failed: %v", err)
	}
	if assessment != nil {
		t.Fatalf("expected no assessment after client end, got %s", assessment)
	}
}

func TestWSRejectsDuplicateSession(t *testing.T) {
	h := newHarness(t, nil)
	h.seedInterview(t, "iv-1")

	first := h.dial(t, "iv-1")
	readFrameOfType(t, first, "ready")

	second := h.dial(t, "iv-1")
	errFrame := readFrameOfType(t, second, "error")
	if !strings.Contains(errFrame.Message, "already active") {
		t.Fatalf("unexpected error message: %q", errFrame.Message)
	}
}

func TestWSUnknownInterviewSendsError(t *testing.T) {
	h := newHarness(t, nil)

	conn := h.dial(t, "no-such-interview")
	errFrame := readFrameOfType(t, conn, "error")
	if errFrame.Message == "" {
		t.Fatal("expected error message for unknown interview")
	}
}
