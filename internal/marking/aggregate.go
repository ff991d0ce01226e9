package marking

import "math"

type feedbackTier struct {
	minPercentage float64
	message       string
}

var overallFeedbackTiers = []feedbackTier{
	{90, "Excellent work! You have a thorough understanding of this material."},
	{75, "Great job! You have a good grasp of most of the material."},
	{60, "Good effort. You understand the basics, but some areas need more review."},
	{50, "You passed, but there is significant room for improvement. Review the feedback on each question."},
	{0, "This material needs more study. Go through the feedback on each question and try again."},
}

func overallFeedback(percentage float64) string {
	for _, t := range overallFeedbackTiers {
		if percentage >= t.minPercentage {
			return t.message
		}
	}
	return overallFeedbackTiers[len(overallFeedbackTiers)-1].message
}

// Aggregate merges per-question results into a single response. Results are
// kept in the order given.
func Aggregate(results []GradingResult) AggregatedGradingResponse {
	var possible, awarded float64
	for _, r := range results {
		possible += r.MarksPossible
		awarded += r.MarksAwarded
	}
	awarded = math.Min(round2(awarded), possible)

	percentage := 0.0
	if possible > 0 {
		percentage = round2(100 * awarded / possible)
	}

	if results == nil {
		results = []GradingResult{}
	}
	return AggregatedGradingResponse{
		OverallFeedback:    overallFeedback(percentage),
		TotalMarksPossible: possible,
		TotalMarksAwarded:  awarded,
		Percentage:         percentage,
		QuestionResults:    results,
	}
}
