package analytics

import (
	"fmt"
	"sort"
	"time"
)

const maxExampleTexts = 3

// PostMetrics is a classified and scored post ready for grouping.
type PostMetrics struct {
	Text              string
	PostedAt          time.Time
	Theme             string
	AppealFrame       string
	MediaType         string
	EngagementRate    float64
	ViralityRatio     float64
	ConversationRatio float64
	QuoteRatio        float64
}

// Pattern is one (theme, appeal frame, media, weekday, hour bucket) group.
type Pattern struct {
	Key                  string   `json:"key"`
	Theme                string   `json:"theme"`
	AppealFrame          string   `json:"appeal_frame"`
	MediaType            string   `json:"media_type"`
	DayOfWeek            string   `json:"day_of_week"`
	HourBucket           string   `json:"hour_bucket"`
	Count                int      `json:"count"`
	AvgEngagementRate    float64  `json:"avg_er"`
	AvgViralityRatio     float64  `json:"avg_virality_ratio"`
	AvgConversationRatio float64  `json:"avg_conversation_ratio"`
	AvgQuoteRatio        float64  `json:"avg_quote_ratio"`
	ExampleTexts         []string `json:"example_texts"`
}

var weekdays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// DayOfWeek returns the short weekday name of t in its own location.
func DayOfWeek(t time.Time) string {
	return weekdays[t.Weekday()]
}

// HourBucket partitions the hour of t into seven named buckets.
func HourBucket(t time.Time) string {
	switch h := t.Hour(); {
	case h < 6:
		return "deep_night"
	case h < 9:
		return "early_morning"
	case h < 12:
		return "morning"
	case h < 14:
		return "noon"
	case h < 18:
		return "afternoon"
	case h < 21:
		return "evening"
	default:
		return "night"
	}
}

type patternAcc struct {
	pattern                           Pattern
	er, virality, conversation, quote float64
}

// ExtractPatterns groups posts and returns the top n groups by mean
// engagement rate. Weekday and hour are evaluated in loc.
func ExtractPatterns(posts []PostMetrics, n int, loc *time.Location) []Pattern {
	if loc == nil {
		loc = time.UTC
	}

	groups := make(map[string]*patternAcc)
	var order []string

	for _, p := range posts {
		at := p.PostedAt.In(loc)
		day, hour := DayOfWeek(at), HourBucket(at)
		key := fmt.Sprintf("%s|%s|%s|%s|%s", p.Theme, p.AppealFrame, p.MediaType, day, hour)

		acc, ok := groups[key]
		if !ok {
			acc = &patternAcc{pattern: Pattern{
				Key:          key,
				Theme:        p.Theme,
				AppealFrame:  p.AppealFrame,
				MediaType:    p.MediaType,
				DayOfWeek:    day,
				HourBucket:   hour,
				ExampleTexts: []string{},
			}}
			groups[key] = acc
			order = append(order, key)
		}

		acc.pattern.Count++
		acc.er += p.EngagementRate
		acc.virality += p.ViralityRatio
		acc.conversation += p.ConversationRatio
		acc.quote += p.QuoteRatio
		if len(acc.pattern.ExampleTexts) < maxExampleTexts {
			acc.pattern.ExampleTexts = append(acc.pattern.ExampleTexts, p.Text)
		}
	}

	patterns := make([]Pattern, 0, len(groups))
	for _, key := range order {
		acc := groups[key]
		count := float64(acc.pattern.Count)
		acc.pattern.AvgEngagementRate = acc.er / count
		acc.pattern.AvgViralityRatio = acc.virality / count
		acc.pattern.AvgConversationRatio = acc.conversation / count
		acc.pattern.AvgQuoteRatio = acc.quote / count
		patterns = append(patterns, acc.pattern)
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].AvgEngagementRate > patterns[j].AvgEngagementRate
	})

	if n >= 0 && len(patterns) > n {
		patterns = patterns[:n]
	}
	return patterns
}
