// Package scoring maps raw per-item metrics to a popularity score.
// Scores are comparable within one platform only.
package scoring

import "math"

// Video rewards engagement ratios and dampens raw reach with a square root:
// sqrt(views) * (1 + 3*likes/views + 5*comments/views).
func Video(views, likes, comments int64) float64 {
	if views <= 0 {
		return 0
	}
	likeRatio := Ratio(likes, views)
	commentRatio := Ratio(comments, views)
	return math.Sqrt(float64(views)) * (1 + 3*likeRatio + 5*commentRatio)
}

// Forum weights contributor breadth highest: 3r + 2l + 5c + sqrt(max(v, 0)).
func Forum(replies, likes, contributors, views int64) float64 {
	base := float64(replies*3 + likes*2 + contributors*5)
	return base + math.Sqrt(float64(max(views, 0)))
}

// Trends amplifies a 0-100 interest index by its recent movement.
// The result is negative when changePct < -100.
func Trends(interest, changePct float64) float64 {
	return interest * (1 + changePct/100)
}

// Ratio returns part/whole, or 0 when whole is not positive.
func Ratio(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// ChangePct is the percent change from reference to latest, 0 for a zero reference.
func ChangePct(reference, latest float64) float64 {
	if reference == 0 {
		return 0
	}
	return (latest - reference) / reference * 100
}
