package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vocalhire/interviewd/internal/interview"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connWriter serializes frame writes: the session's observer callbacks
// arrive from timer and transcription goroutines while the read loop
// writes pongs, and gorilla/websocket allows only one concurrent writer.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(v)
}

// wsObserver bridges session events onto the client connection.
type wsObserver struct {
	sessionID string
	writer    *connWriter
}

func (o *wsObserver) QuestionReady(question string, number int) {
	if err := o.writer.write(questionFrame(question, number)); err != nil {
		log.Printf("session %s: write question frame: %v", o.sessionID, err)
	}
}

func (o *wsObserver) TranscriptUpdate(text string, isFinal bool) {
	if err := o.writer.write(transcriptFrame(text, isFinal)); err != nil {
		log.Printf("session %s: write transcript frame: %v", o.sessionID, err)
	}
}

func (o *wsObserver) InterviewComplete(assessment json.RawMessage) {
	if err := o.writer.write(completeFrame(assessment)); err != nil {
		log.Printf("session %s: write complete frame: %v", o.sessionID, err)
	}
}

func (o *wsObserver) InterviewError(message string) {
	if err := o.writer.write(errorFrame(message)); err != nil {
		log.Printf("session %s: write error frame: %v", o.sessionID, err)
	}
}

func registerWSRoute(mux *http.ServeMux, registry *interview.Registry) {
	mux.HandleFunc("GET /ws/interviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validInterviewID(sessionID) {
			http.Error(w, "invalid interview id", http.StatusForbidden)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		writer := &connWriter{conn: conn}
		observer := &wsObserver{sessionID: sessionID, writer: writer}

		sess, err := registry.Create(sessionID, observer)
		if err != nil {
			if errors.Is(err, interview.ErrSessionExists) {
				_ = writer.write(errorFrame("interview session already active"))
			} else {
				_ = writer.write(errorFrame("create session: " + err.Error()))
			}
			return
		}
		defer registry.Remove(sessionID)

		log.Printf("session %s: client connected", sessionID)

		first, err := sess.Initialize(r.Context())
		if err != nil {
			_ = writer.write(errorFrame(err.Error()))
			return
		}
		if err := writer.write(questionFrame(first, 1)); err != nil {
			return
		}

		if err := sess.StartTranscription(r.Context()); err != nil {
			_ = writer.write(errorFrame(err.Error()))
			return
		}
		if err := writer.write(readyFrame("Voice interview ready. Start speaking.")); err != nil {
			return
		}

		readLoop(conn, writer, sess)
		log.Printf("session %s: connection closed", sessionID)
	})
}

func readLoop(conn *websocket.Conn, writer *connWriter, sess *interview.Session) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := sess.OnAudioChunk(data); err != nil {
				_ = writer.write(errorFrame(err.Error()))
			}

		case websocket.TextMessage:
			var msg clientFrame
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = writer.write(errorFrame("invalid message: " + err.Error()))
				continue
			}

			switch msg.Type {
			case "audio":
				audio, err := base64.StdEncoding.DecodeString(msg.Data)
				if err != nil {
					_ = writer.write(errorFrame("invalid audio payload: " + err.Error()))
					continue
				}
				if err := sess.OnAudioChunk(audio); err != nil {
					_ = writer.write(errorFrame(err.Error()))
				}

			case "start":
				// The session is already live once ready was sent.

			case "end":
				log.Printf("session %s: client requested end", sess.ID())
				return

			case "ping":
				_ = writer.write(pongFrame())
			}
		}
	}
}
