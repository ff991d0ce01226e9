package marking

import (
	"math"
	"strings"
	"testing"
)

const natoRubric = "alpha bravo charlie delta echo foxtrot golf hotel india juliet " +
	"kilo lima mike november oscar papa quebec romeo sierra tango"

// natoAnswer returns the first n words of natoRubric.
func natoAnswer(n int) string {
	return strings.Join(strings.Fields(natoRubric)[:n], " ")
}

func TestOverlapRatio(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected string
		want     float64
	}{
		{"no significant tokens", "anything", "a an the of", 0},
		{"empty expected", "anything", "", 0},
		{"full match", "Photosynthesis converts light", "photosynthesis converts light", 1},
		{"case insensitive", "CHLOROPHYLL", "chlorophyll", 1},
		{"short tokens ignored", "plants", "the cat plants", 1},
		{"user token inside expected", "photo", "photosynthesis", 1},
		{"expected token inside user", "photosynthesising", "synthesis", 1},
		{"half", "light energy", "light water energy oxygen", 0.5},
		{"thirteen of twenty", natoAnswer(13), natoRubric, 0.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OverlapRatio(tt.answer, tt.expected)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("OverlapRatio(%q, %q) = %v, want %v", tt.answer, tt.expected, got, tt.want)
			}
		})
	}
}

func TestGradeManualFallbackBands(t *testing.T) {
	tests := []struct {
		name      string
		matched   int
		wantMarks float64
	}{
		{"ratio 0", 0, 1},
		{"ratio 0.15", 3, 1},
		{"ratio 0.2", 4, 3},
		{"ratio 0.35", 7, 3},
		{"ratio 0.4", 8, 5},
		{"ratio 0.6", 12, 7},
		{"ratio 0.65", 13, 7},
		{"ratio 0.8", 16, 9},
		{"ratio 1", 20, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := "zzzz"
			if tt.matched > 0 {
				answer = natoAnswer(tt.matched)
			}
			got := GradeManualFallback([]AnswerToGrade{{
				QuestionID: "q1", UserAnswer: answer, CorrectAnswer: natoRubric, MarksPossible: 10,
			}})
			if len(got) != 1 {
				t.Fatalf("got %d results, want 1", len(got))
			}
			r := got[0]
			if r.MarksAwarded != tt.wantMarks {
				t.Errorf("MarksAwarded = %v, want %v", r.MarksAwarded, tt.wantMarks)
			}
			if r.CorrectnessStatus != StatusPartial || r.IsCorrect {
				t.Errorf("status = %q (IsCorrect=%v), want partial", r.CorrectnessStatus, r.IsCorrect)
			}
			if strings.Count(r.Feedback, ". ") < 1 {
				t.Errorf("feedback %q should have several sentences", r.Feedback)
			}
		})
	}
}

func TestGradeManualFallbackBlank(t *testing.T) {
	for _, answer := range []string{"", "   ", "\n\t"} {
		got := GradeManualFallback([]AnswerToGrade{{
			QuestionID: "q1", UserAnswer: answer, CorrectAnswer: natoRubric, MarksPossible: 5,
		}})
		r := got[0]
		if r.MarksAwarded != 0 || r.CorrectnessStatus != StatusIncorrect {
			t.Errorf("blank answer %q: got %v marks, status %q", answer, r.MarksAwarded, r.CorrectnessStatus)
		}
		if r.Feedback != noAnswerFeedback {
			t.Errorf("blank answer %q: feedback = %q", answer, r.Feedback)
		}
	}
}

func TestGradeManualFallbackInvariants(t *testing.T) {
	answers := []AnswerToGrade{
		{QuestionID: "a", UserAnswer: natoRubric, CorrectAnswer: natoRubric, MarksPossible: 3},
		{QuestionID: "b", UserAnswer: "x", CorrectAnswer: "", MarksPossible: 0.01},
		{QuestionID: "c", UserAnswer: "alpha", CorrectAnswer: natoRubric, MarksPossible: 7.77},
		{QuestionID: "d", UserAnswer: "", CorrectAnswer: natoRubric, MarksPossible: 1},
	}

	for _, r := range GradeManualFallback(answers) {
		if r.CorrectnessStatus == StatusCorrect || r.IsCorrect {
			t.Errorf("%s: fallback must never report correct", r.QuestionID)
		}
		if r.MarksAwarded < 0 || r.MarksAwarded > r.MarksPossible {
			t.Errorf("%s: marks %v outside [0, %v]", r.QuestionID, r.MarksAwarded, r.MarksPossible)
		}
		if r.MarksAwarded != round2(r.MarksAwarded) {
			t.Errorf("%s: marks %v have more than 2 decimals", r.QuestionID, r.MarksAwarded)
		}
		if (r.MarksAwarded == 0) != (r.CorrectnessStatus == StatusIncorrect) {
			t.Errorf("%s: status %q inconsistent with marks %v", r.QuestionID, r.CorrectnessStatus, r.MarksAwarded)
		}
	}
}
