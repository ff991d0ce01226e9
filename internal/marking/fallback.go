package marking

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const noAnswerFeedback = "No answer was provided for this question, so no marks could be awarded. " +
	"Review the question and the model answer, then try to write down the key points you remember next time."

// overlapBand maps an overlap ratio range to a share of the available marks.
type overlapBand struct {
	minRatio float64
	fraction float64
	feedback string
}

// Bands are ordered from most to least generous; the first whose minRatio is
// reached wins.
var overlapBands = []overlapBand{
	{0.8, 0.9, "Your answer covers most of the key points expected for this question. " +
		"It closely matches the main ideas of the model answer. " +
		"This mark was estimated automatically, so a few details may still deserve a closer look."},
	{0.6, 0.7, "Your answer covers many of the key points expected for this question. " +
		"Some important ideas from the model answer are missing or only briefly mentioned. " +
		"Expanding on those points would strengthen your answer."},
	{0.4, 0.5, "Your answer touches on some of the key points expected for this question. " +
		"Several important ideas from the model answer are missing. " +
		"Review the topic and try to explain the main concepts more completely."},
	{0.2, 0.3, "Your answer mentions only a few of the key points expected for this question. " +
		"Most of the important ideas from the model answer are missing. " +
		"Revisit the material and focus on the core concepts behind the question."},
	{0, 0.1, "Your answer shows little overlap with the key points expected for this question. " +
		"The main ideas from the model answer do not appear in your response. " +
		"Study this topic again and compare your answer with the model answer."},
}

// GradeManualFallback grades open-ended answers by lexical overlap with the
// expected answer. It is a low-confidence approximation: it never reports an
// answer as fully correct and it cannot fail.
func GradeManualFallback(answers []AnswerToGrade) []GradingResult {
	results := make([]GradingResult, 0, len(answers))
	for _, a := range answers {
		results = append(results, gradeFallback(a))
	}
	return results
}

func gradeFallback(a AnswerToGrade) GradingResult {
	if strings.TrimSpace(a.UserAnswer) == "" {
		return newResult(a, StatusIncorrect, 0, noAnswerFeedback)
	}

	band := bandFor(OverlapRatio(a.UserAnswer, a.CorrectAnswer))
	marks := round2(a.MarksPossible * band.fraction)
	status := StatusPartial
	if marks == 0 {
		status = StatusIncorrect
	}
	return newResult(a, status, marks, band.feedback)
}

func bandFor(ratio float64) overlapBand {
	for _, b := range overlapBands {
		if ratio >= b.minRatio {
			return b
		}
	}
	return overlapBands[len(overlapBands)-1]
}

// OverlapRatio returns the fraction of significant tokens of expected (longer
// than three characters) that appear in answer. A token matches when it is a
// substring of an answer token or an answer token is a substring of it.
func OverlapRatio(answer, expected string) float64 {
	caser := cases.Lower(language.Und)

	var significant []string
	for _, tok := range strings.Fields(caser.String(expected)) {
		if len([]rune(tok)) > 3 {
			significant = append(significant, tok)
		}
	}
	if len(significant) == 0 {
		return 0
	}

	userTokens := strings.Fields(caser.String(answer))
	matched := 0
	for _, want := range significant {
		for _, got := range userTokens {
			if strings.Contains(got, want) || strings.Contains(want, got) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(significant))
}
