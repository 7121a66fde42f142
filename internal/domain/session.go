package domain

import "time"

// AnswerRecord is one entry in a session's answer log. A final_message
// question is recorded with a nil Value and is never itself answerable.
type AnswerRecord struct {
	QuestionID int `json:"question_id"`
	Value      any `json:"answer"`
}

// Session is one user's progress through one quiz. Sessions are treated as
// immutable values: engine transitions return a new session rather than
// mutating in place, and the storage layer performs the persisted
// read-modify-write. A nil CurrentQuestionID means the quiz is completed.
type Session struct {
	ID                SessionID      `json:"session_id"`
	UserID            string         `json:"user_id"`
	QuizID            QuizID         `json:"quiz_id"`
	CurrentQuestionID *int           `json:"current_question_id"`
	Scores            map[string]any `json:"scores"`
	Answers           []AnswerRecord `json:"answers"`
	Completed         bool           `json:"completed"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the session. Engine transitions clone before
// touching anything so the caller's snapshot stays intact.
func (s *Session) Clone() *Session {
	out := *s
	if s.CurrentQuestionID != nil {
		id := *s.CurrentQuestionID
		out.CurrentQuestionID = &id
	}
	out.Scores = make(map[string]any, len(s.Scores))
	for name, value := range s.Scores {
		out.Scores[name] = value
	}
	out.Answers = make([]AnswerRecord, len(s.Answers))
	copy(out.Answers, s.Answers)
	return &out
}

// Summary is the terminal view of a completed session
type Summary struct {
	Scores  map[string]any `json:"scores"`
	Answers []AnswerRecord `json:"answers"`
}
