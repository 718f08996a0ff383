package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vocalhire/interviewd/internal/interview"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Interview is one stored interview row.
type Interview struct {
	ID          string     `json:"id"`
	Candidate   string     `json:"candidate"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Status      string     `json:"status"`
	ResumeText  string     `json:"-"`
	ResumeChunk []string   `json:"-"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "interviewd.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS interviews (
			id TEXT PRIMARY KEY,
			candidate TEXT NOT NULL DEFAULT '',
			resume_text TEXT NOT NULL DEFAULT '',
			resume_chunks TEXT NOT NULL DEFAULT '[]',
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create interviews table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			interview_id TEXT NOT NULL,
			question_number INTEGER NOT NULL,
			question TEXT NOT NULL,
			answer TEXT,
			asked_at TEXT NOT NULL,
			answered_at TEXT,
			UNIQUE(interview_id, question_number),
			FOREIGN KEY(interview_id) REFERENCES interviews(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create questions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			interview_id TEXT PRIMARY KEY,
			assessment TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY(interview_id) REFERENCES interviews(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create results table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS assessment_requests (
			interview_id TEXT NOT NULL,
			transcript_hash TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(interview_id, transcript_hash)
		);
	`); err != nil {
		return fmt.Errorf("create assessment_requests table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_interviews_started_at ON interviews(started_at)"); err != nil {
		return fmt.Errorf("create interviews index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_questions_interview_id ON questions(interview_id, question_number)"); err != nil {
		return fmt.Errorf("create questions index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// CreateInterview registers an interview with its resume context before
// the voice connection arrives.
func (s *SQLiteStore) CreateInterview(id, candidate string, resume interview.ResumeContext, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("interview id is required")
	}

	chunks, err := json.Marshal(resume.Chunks)
	if err != nil {
		return fmt.Errorf("encode resume chunks: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO interviews(id, candidate, resume_text, resume_chunks, started_at, status) VALUES(?, ?, ?, ?, ?, ?)`,
		id,
		candidate,
		resume.Text,
		string(chunks),
		startedAt.UTC().Format(time.RFC3339Nano),
		StatusActive,
	)
	if err != nil {
		return fmt.Errorf("create interview %s: %w", id, err)
	}
	return nil
}

// Resume loads the resume context stored for an interview. An interview
// without resume text cannot be conducted.
func (s *SQLiteStore) Resume(id string) (interview.ResumeContext, error) {
	row := s.db.QueryRow(`SELECT resume_text, resume_chunks FROM interviews WHERE id = ?`, id)

	var text, rawChunks string
	if err := row.Scan(&text, &rawChunks); err != nil {
		return interview.ResumeContext{}, fmt.Errorf("load resume for interview %s: %w", id, err)
	}
	if strings.TrimSpace(text) == "" {
		return interview.ResumeContext{}, fmt.Errorf("interview %s has no resume", id)
	}

	var chunks []string
	if err := json.Unmarshal([]byte(rawChunks), &chunks); err != nil {
		return interview.ResumeContext{}, fmt.Errorf("decode resume chunks for interview %s: %w", id, err)
	}

	return interview.ResumeContext{Text: text, Chunks: chunks}, nil
}

func (s *SQLiteStore) AppendQuestion(interviewID string, number int, question string, askedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO questions(interview_id, question_number, question, asked_at) VALUES(?, ?, ?, ?)`,
		interviewID,
		number,
		strings.TrimSpace(question),
		askedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append question %d for interview %s: %w", number, interviewID, err)
	}
	return nil
}

// RecordAnswer sets the answer for a question exactly once: a second
// write to the same record is rejected.
func (s *SQLiteStore) RecordAnswer(interviewID string, number int, answer string, answeredAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE questions SET answer = ?, answered_at = ? WHERE interview_id = ? AND question_number = ? AND answer IS NULL`,
		strings.TrimSpace(answer),
		answeredAt.UTC().Format(time.RFC3339Nano),
		interviewID,
		number,
	)
	if err != nil {
		return fmt.Errorf("record answer for interview %s q%d: %w", interviewID, number, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record answer rows affected: %w", err)
	}
	if rows == 0 {
		var answered bool
		err := s.db.QueryRow(
			`SELECT answer IS NOT NULL FROM questions WHERE interview_id = ? AND question_number = ?`,
			interviewID,
			number,
		).Scan(&answered)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("interview %s q%d: question not found", interviewID, number)
			}
			return fmt.Errorf("record answer for interview %s q%d: %w", interviewID, number, err)
		}
		if answered {
			return fmt.Errorf("interview %s q%d: %w", interviewID, number, interview.ErrAnswerRecorded)
		}
		return fmt.Errorf("interview %s q%d: answer not recorded", interviewID, number)
	}
	return nil
}

func (s *SQLiteStore) Transcript(interviewID string) ([]interview.QARecord, error) {
	rows, err := s.db.Query(
		`SELECT question_number, question, answer FROM questions WHERE interview_id = ? ORDER BY question_number`,
		interviewID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transcript for interview %s: %w", interviewID, err)
	}
	defer func() { _ = rows.Close() }()

	var transcript []interview.QARecord
	for rows.Next() {
		var qa interview.QARecord
		var answer sql.NullString
		if err := rows.Scan(&qa.QuestionNumber, &qa.Question, &answer); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		if answer.Valid {
			qa.Answer = answer.String
			qa.Answered = true
		}
		transcript = append(transcript, qa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript rows: %w", err)
	}

	return transcript, nil
}

func (s *SQLiteStore) CompleteInterview(id string, endedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE interviews SET ended_at = ?, status = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		StatusCompleted,
		id,
	)
	if err != nil {
		return fmt.Errorf("complete interview %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete interview rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveAssessment upserts the final assessment so a retried finalize
// does not fail on the primary key.
func (s *SQLiteStore) SaveAssessment(interviewID string, assessment json.RawMessage, createdAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO results(interview_id, assessment, created_at) VALUES(?, ?, ?)
		 ON CONFLICT(interview_id) DO UPDATE SET assessment = excluded.assessment, created_at = excluded.created_at`,
		interviewID,
		string(assessment),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save assessment for interview %s: %w", interviewID, err)
	}
	return nil
}

// Assessment returns the stored assessment, or nil if none exists yet.
func (s *SQLiteStore) Assessment(interviewID string) (json.RawMessage, error) {
	row := s.db.QueryRow(`SELECT assessment FROM results WHERE interview_id = ?`, interviewID)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query assessment for interview %s: %w", interviewID, err)
	}
	return json.RawMessage(raw), nil
}

// ClaimAssessmentRequest reserves one assessment generation per
// (interview, transcript) pair. Returns false if already claimed.
func (s *SQLiteStore) ClaimAssessmentRequest(interviewID, transcriptHash string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO assessment_requests(interview_id, transcript_hash) VALUES(?, ?)`,
		interviewID,
		transcriptHash,
	)
	if err != nil {
		return false, fmt.Errorf("claim assessment request: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim assessment request rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *SQLiteStore) GetInterview(id string) (Interview, error) {
	row := s.db.QueryRow(
		`SELECT id, candidate, resume_text, resume_chunks, started_at, ended_at, status FROM interviews WHERE id = ?`,
		id,
	)
	return scanInterview(row)
}

func (s *SQLiteStore) ListInterviews() ([]Interview, error) {
	rows, err := s.db.Query(
		`SELECT id, candidate, resume_text, resume_chunks, started_at, ended_at, status
		 FROM interviews ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var interviews []Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interview rows: %w", err)
	}

	return interviews, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (Interview, error) {
	var iv Interview
	var rawChunks, startedAt string
	var endedAt sql.NullString

	if err := row.Scan(&iv.ID, &iv.Candidate, &iv.ResumeText, &rawChunks, &startedAt, &endedAt, &iv.Status); err != nil {
		return Interview{}, fmt.Errorf("scan interview: %w", err)
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Interview{}, fmt.Errorf("parse interview %s started_at: %w", iv.ID, err)
	}
	iv.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Interview{}, fmt.Errorf("parse interview %s ended_at: %w", iv.ID, err)
		}
		iv.EndedAt = &parsedEnd
	}

	if err := json.Unmarshal([]byte(rawChunks), &iv.ResumeChunk); err != nil {
		return Interview{}, fmt.Errorf("decode interview %s resume chunks: %w", iv.ID, err)
	}

	return iv, nil
}
