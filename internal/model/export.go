package model

import "time"

// AttemptsExport is the top-level JSON structure for attempt export.
type AttemptsExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Results    []AttemptResult `json:"results"`
}

// AttemptResult holds one attempt for export.
type AttemptResult struct {
	AttemptID       string           `json:"attempt_id"`
	Username        string           `json:"username"`
	QuizTitle       string           `json:"quiz_title"`
	Score           float64          `json:"score"`
	TotalMarks      float64          `json:"total_marks"`
	MarksObtained   float64          `json:"marks_obtained"`
	OverallFeedback string           `json:"overall_feedback"`
	TimeTaken       *int             `json:"time_taken,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	Questions       []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	Text              string       `json:"question_text"`
	Type              QuestionType `json:"type"`
	ExpectedAnswer    string       `json:"expected_answer"`
	UserAnswer        string       `json:"user_answer"`
	CorrectnessStatus string       `json:"correctness_status"`
	MarksAwarded      float64      `json:"marks_awarded"`
	MarksPossible     float64      `json:"marks_possible"`
	Feedback          string       `json:"feedback"`
}
