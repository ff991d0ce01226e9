package marking

import (
	"testing"

	"github.com/pavelanni/quizmark/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		qType model.QuestionType
		want  Strategy
	}{
		{model.QuestionMCQ, StrategyAuto},
		{model.QuestionTrueFalse, StrategyAuto},
		{model.QuestionFill, StrategyAuto},
		{model.QuestionShortAnswer, StrategyManual},
		{model.QuestionEssay, StrategyManual},
		// Unknown types get judgement rather than a silent zero.
		{"matching", StrategyManual},
		{"", StrategyManual},
		{"MCQ", StrategyManual},
	}

	for _, tt := range tests {
		t.Run(string(tt.qType), func(t *testing.T) {
			if got := Classify(tt.qType); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.qType, got, tt.want)
			}
		})
	}
}

func TestPartition(t *testing.T) {
	answers := []AnswerToGrade{
		{QuestionID: "q1", QuestionType: model.QuestionMCQ},
		{QuestionID: "q2", QuestionType: model.QuestionEssay},
		{QuestionID: "q3", QuestionType: model.QuestionFill},
		{QuestionID: "q4", QuestionType: "diagram"},
	}

	auto, manual := Partition(answers)
	if len(auto) != 2 || auto[0].QuestionID != "q1" || auto[1].QuestionID != "q3" {
		t.Errorf("auto partition = %+v, want q1, q3", auto)
	}
	if len(manual) != 2 || manual[0].QuestionID != "q2" || manual[1].QuestionID != "q4" {
		t.Errorf("manual partition = %+v, want q2, q4", manual)
	}
}
