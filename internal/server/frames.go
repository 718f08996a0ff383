package server

import "encoding/json"

// Server → client frame types. One websocket connection serves one
// interview session.
type frame struct {
	Type string `json:"type"`
}

type QuestionFrame struct {
	frame
	Text           string `json:"text"`
	QuestionNumber int    `json:"questionNumber"`
}

type ReadyFrame struct {
	frame
	Message string `json:"message"`
}

type TranscriptFrame struct {
	frame
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

type CompleteFrame struct {
	frame
	Assessment json.RawMessage `json:"assessment"`
}

type ErrorFrame struct {
	frame
	Message string `json:"message"`
}

type PongFrame struct {
	frame
}

func questionFrame(text string, number int) QuestionFrame {
	return QuestionFrame{frame: frame{Type: "question"}, Text: text, QuestionNumber: number}
}

func readyFrame(message string) ReadyFrame {
	return ReadyFrame{frame: frame{Type: "ready"}, Message: message}
}

func transcriptFrame(text string, isFinal bool) TranscriptFrame {
	return TranscriptFrame{frame: frame{Type: "transcript"}, Text: text, IsFinal: isFinal}
}

func completeFrame(assessment json.RawMessage) CompleteFrame {
	return CompleteFrame{frame: frame{Type: "complete"}, Assessment: assessment}
}

func errorFrame(message string) ErrorFrame {
	return ErrorFrame{frame: frame{Type: "error"}, Message: message}
}

func pongFrame() PongFrame {
	return PongFrame{frame: frame{Type: "pong"}}
}

// clientFrame is any client → server JSON message. Audio may also
// arrive as raw binary websocket messages.
type clientFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}
