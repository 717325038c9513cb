package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"engagement_tracker/internal/classify"
	"engagement_tracker/internal/config"
	"engagement_tracker/internal/domain"
)

const hitTextLimit = 100

type PostStore interface {
	ListScored(ctx context.Context, filter domain.PostFilter) ([]domain.ScoredPost, error)
	SetHits(ctx context.Context, tenantID uuid.UUID, hitIDs, nonHitIDs []uuid.UUID) error
}

type CallLogStore interface {
	List(ctx context.Context, tenantID uuid.UUID, from, to *time.Time) ([]domain.APICallLog, error)
}

// Service answers analytics read queries from persisted posts.
type Service struct {
	posts    PostStore
	callLogs CallLogStore
	location *time.Location
	cfg      config.AnalyticsConfig
	logger   *slog.Logger
}

func NewService(posts PostStore, callLogs CallLogStore, cfg config.AnalyticsConfig, logger *slog.Logger) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	return &Service{
		posts:    posts,
		callLogs: callLogs,
		location: loc,
		cfg:      cfg,
		logger:   logger.With("component", "analytics"),
	}, nil
}

type ERStats struct {
	Avg float64 `json:"avg"`
	P75 float64 `json:"p75"`
	Max float64 `json:"max"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type WeeklyCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

type Frequency struct {
	Daily  []DailyCount  `json:"daily"`
	Weekly []WeeklyCount `json:"weekly"`
}

type HitPost struct {
	ID             uuid.UUID `json:"id"`
	PlatformPostID string    `json:"post_x_id"`
	Text           string    `json:"text"`
	PostedAt       time.Time `json:"posted_at"`
	EngagementRate float64   `json:"er"`
	LikesCount     int64     `json:"likes_count"`
	RepostsCount   int64     `json:"reposts_count"`
}

type EngagementSummary struct {
	TotalPosts        int            `json:"total_posts"`
	Frequency         Frequency      `json:"frequency"`
	MediaRatio        map[string]int `json:"media_ratio"`
	ERStats           ERStats        `json:"er_stats"`
	Hits              []HitPost      `json:"hits"`
	ThemeDistribution map[string]int `json:"theme_distribution"`
}

type RatioSummary struct {
	AvgEngagementRate    float64 `json:"avg_er"`
	AvgViralityRatio     float64 `json:"avg_virality_ratio"`
	AvgConversationRatio float64 `json:"avg_conversation_ratio"`
	AvgQuoteRatio        float64 `json:"avg_quote_ratio"`
}

type CreativeSummary struct {
	TotalPosts              int            `json:"total_posts"`
	Summary                 RatioSummary   `json:"summary"`
	AppealFrameDistribution map[string]int `json:"appeal_frame_distribution"`
	WinningPatterns         []Pattern      `json:"winning_patterns"`
}

// Summary computes engagement statistics over the filtered window and
// persists the window's hit flags.
func (s *Service) Summary(ctx context.Context, filter domain.PostFilter) (*EngagementSummary, error) {
	posts, err := s.posts.ListScored(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	summary := &EngagementSummary{
		TotalPosts:        len(posts),
		Frequency:         Frequency{Daily: []DailyCount{}, Weekly: []WeeklyCount{}},
		MediaRatio:        map[string]int{},
		Hits:              []HitPost{},
		ThemeDistribution: map[string]int{},
	}
	if len(posts) == 0 {
		return summary, nil
	}

	rates := make([]float64, len(posts))
	for i, p := range posts {
		rates[i] = EngagementRate(p.LikesCount, p.RepliesCount, p.RepostsCount, p.QuotesCount, p.FollowersCount)
		summary.MediaRatio[orOther(string(p.MediaType), string(domain.MediaNone))]++
		summary.ThemeDistribution[orOther(p.Theme, classify.Other)]++
	}
	summary.Frequency = s.frequency(posts)

	threshold := HitThreshold(rates)
	var sum, maxRate float64
	var hitIDs, nonHitIDs []uuid.UUID
	for i, p := range posts {
		sum += rates[i]
		if rates[i] > maxRate {
			maxRate = rates[i]
		}
		if !IsHit(rates[i], threshold) {
			nonHitIDs = append(nonHitIDs, p.ID)
			continue
		}
		hitIDs = append(hitIDs, p.ID)
		summary.Hits = append(summary.Hits, HitPost{
			ID:             p.ID,
			PlatformPostID: p.PlatformPostID,
			Text:           truncate(p.Text, hitTextLimit),
			PostedAt:       p.PostedAt,
			EngagementRate: rates[i],
			LikesCount:     p.LikesCount,
			RepostsCount:   p.RepostsCount,
		})
	}

	summary.ERStats = ERStats{
		Avg: round4(sum / float64(len(posts))),
		P75: round4(threshold),
		Max: round4(maxRate),
	}

	sort.SliceStable(summary.Hits, func(i, j int) bool {
		return summary.Hits[i].EngagementRate > summary.Hits[j].EngagementRate
	})
	if len(summary.Hits) > s.cfg.MaxHits {
		summary.Hits = summary.Hits[:s.cfg.MaxHits]
	}

	if err := s.posts.SetHits(ctx, filter.TenantID, hitIDs, nonHitIDs); err != nil {
		return nil, fmt.Errorf("set hits: %w", err)
	}

	s.logger.Debug("engagement summary computed",
		"tenant_id", filter.TenantID,
		"posts", len(posts),
		"hits", len(hitIDs),
		"p75", threshold,
	)

	return summary, nil
}

// Creative computes ratio averages, the appeal-frame distribution and the
// top limit winning patterns.
func (s *Service) Creative(ctx context.Context, filter domain.PostFilter, limit int) (*CreativeSummary, error) {
	posts, err := s.posts.ListScored(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if limit <= 0 {
		limit = s.cfg.TopPatterns
	}

	result := &CreativeSummary{
		TotalPosts:              len(posts),
		AppealFrameDistribution: map[string]int{},
		WinningPatterns:         []Pattern{},
	}
	if len(posts) == 0 {
		return result, nil
	}

	metrics := make([]PostMetrics, len(posts))
	var sum RatioSummary
	for i, p := range posts {
		m := Score(p)
		metrics[i] = m
		sum.AvgEngagementRate += m.EngagementRate
		sum.AvgViralityRatio += m.ViralityRatio
		sum.AvgConversationRatio += m.ConversationRatio
		sum.AvgQuoteRatio += m.QuoteRatio
		result.AppealFrameDistribution[m.AppealFrame]++
	}

	n := float64(len(posts))
	result.Summary = RatioSummary{
		AvgEngagementRate:    round4(sum.AvgEngagementRate / n),
		AvgViralityRatio:     round4(sum.AvgViralityRatio / n),
		AvgConversationRatio: round4(sum.AvgConversationRatio / n),
		AvgQuoteRatio:        round4(sum.AvgQuoteRatio / n),
	}
	result.WinningPatterns = ExtractPatterns(metrics, limit, s.location)

	return result, nil
}

// Score derives the per-post metrics, classifying the appeal frame when the
// stored post has none.
func Score(p domain.ScoredPost) PostMetrics {
	appeal := p.AppealFrame
	if appeal == "" {
		appeal = classify.AppealFrame(p.Text, p.Hashtags)
	}
	return PostMetrics{
		Text:              p.Text,
		PostedAt:          p.PostedAt,
		Theme:             orOther(p.Theme, classify.Other),
		AppealFrame:       appeal,
		MediaType:         orOther(string(p.MediaType), string(domain.MediaNone)),
		EngagementRate:    EngagementRate(p.LikesCount, p.RepliesCount, p.RepostsCount, p.QuotesCount, p.FollowersCount),
		ViralityRatio:     ViralityRatio(p.RepostsCount, p.LikesCount),
		ConversationRatio: ConversationRatio(p.RepliesCount, p.LikesCount),
		QuoteRatio:        QuoteRatio(p.QuotesCount, p.LikesCount),
	}
}

func (s *Service) frequency(posts []domain.ScoredPost) Frequency {
	daily := map[string]int{}
	weekly := map[string]int{}
	for _, p := range posts {
		at := p.PostedAt.In(s.location)
		daily[at.Format(time.DateOnly)]++
		weekStart := at.AddDate(0, 0, -int(at.Weekday()))
		weekly[weekStart.Format(time.DateOnly)]++
	}

	freq := Frequency{
		Daily:  make([]DailyCount, 0, len(daily)),
		Weekly: make([]WeeklyCount, 0, len(weekly)),
	}
	for date, count := range daily {
		freq.Daily = append(freq.Daily, DailyCount{Date: date, Count: count})
	}
	for week, count := range weekly {
		freq.Weekly = append(freq.Weekly, WeeklyCount{Week: week, Count: count})
	}
	sort.Slice(freq.Daily, func(i, j int) bool { return freq.Daily[i].Date < freq.Daily[j].Date })
	sort.Slice(freq.Weekly, func(i, j int) bool { return freq.Weekly[i].Week < freq.Weekly[j].Week })
	return freq
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func orOther(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
