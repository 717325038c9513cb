// Package analytics scores posts, flags hits and extracts winning patterns.
package analytics

// EngagementRate is total reactions over followers, 0 without followers.
func EngagementRate(likes, replies, reposts, quotes, followers int64) float64 {
	if followers <= 0 {
		return 0
	}
	return float64(likes+replies+reposts+quotes) / float64(followers)
}

// ViralityRatio is reposts per like.
func ViralityRatio(reposts, likes int64) float64 {
	return perLike(reposts, likes)
}

// ConversationRatio is replies per like.
func ConversationRatio(replies, likes int64) float64 {
	return perLike(replies, likes)
}

// QuoteRatio is quotes per like.
func QuoteRatio(quotes, likes int64) float64 {
	return perLike(quotes, likes)
}

func perLike(n, likes int64) float64 {
	if likes <= 0 {
		return 0
	}
	return float64(n) / float64(likes)
}
