package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type MediaType string

const (
	MediaNone        MediaType = "none"
	MediaPhoto       MediaType = "photo"
	MediaVideo       MediaType = "video"
	MediaAnimatedGIF MediaType = "animated_gif"
	MediaMixed       MediaType = "mixed"
)

// Post is unique per (TenantID, PlatformPostID).
type Post struct {
	ID               uuid.UUID      `db:"id"`
	TenantID         uuid.UUID      `db:"tenant_id"`
	AccountID        uuid.UUID      `db:"tracked_account_id"`
	PlatformPostID   string         `db:"post_x_id"`
	Text             string         `db:"text"`
	PostedAt         time.Time      `db:"posted_at"`
	LikesCount       int64          `db:"likes_count"`
	RepliesCount     int64          `db:"replies_count"`
	RepostsCount     int64          `db:"reposts_count"`
	QuotesCount      int64          `db:"quotes_count"`
	ImpressionsCount int64          `db:"impressions_count"`
	MediaType        MediaType      `db:"media_type"`
	Hashtags         pq.StringArray `db:"hashtags"`
	Theme            string         `db:"theme"`
	AppealFrame      string         `db:"appeal_frame"`
	IsHit            bool           `db:"is_hit"`
	RawJSON          []byte         `db:"raw_json"`
	CreatedAt        time.Time      `db:"created_at"`
}

// PostFilter selects the window an analytics query runs over.
type PostFilter struct {
	TenantID  uuid.UUID
	AccountID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

// ScoredPost is a persisted post joined with its account's follower count.
type ScoredPost struct {
	Post
	FollowersCount int64 `db:"followers_count"`
}
