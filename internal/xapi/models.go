package xapi

import "encoding/json"

// APIError is one entry of the upstream "errors" array.
type APIError struct {
	Message string `json:"message"`
	Title   string `json:"title"`
	Type    string `json:"type"`
}

type PublicMetrics struct {
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	TweetCount     int64 `json:"tweet_count"`
	ListedCount    int64 `json:"listed_count"`
}

type User struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Username      string         `json:"username"`
	PublicMetrics *PublicMetrics `json:"public_metrics"`
}

type PostMetrics struct {
	RetweetCount    int64 `json:"retweet_count"`
	ReplyCount      int64 `json:"reply_count"`
	LikeCount       int64 `json:"like_count"`
	QuoteCount      int64 `json:"quote_count"`
	ImpressionCount int64 `json:"impression_count"`
}

type Attachments struct {
	MediaKeys []string `json:"media_keys"`
}

type Hashtag struct {
	Tag string `json:"tag"`
}

type Entities struct {
	Hashtags []Hashtag `json:"hashtags"`
}

type Post struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	CreatedAt     string       `json:"created_at"`
	PublicMetrics *PostMetrics `json:"public_metrics"`
	Attachments   *Attachments `json:"attachments"`
	Entities      *Entities    `json:"entities"`

	Raw json.RawMessage `json:"-"`
}

// Tags returns the post's hashtags without the leading '#'.
func (p Post) Tags() []string {
	if p.Entities == nil {
		return []string{}
	}
	tags := make([]string, 0, len(p.Entities.Hashtags))
	for _, h := range p.Entities.Hashtags {
		tags = append(tags, h.Tag)
	}
	return tags
}

// MediaKeys returns the attachment lookup keys.
func (p Post) MediaKeys() []string {
	if p.Attachments == nil {
		return nil
	}
	return p.Attachments.MediaKeys
}

type Media struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
}

type Includes struct {
	Media []Media `json:"media"`
}

type Meta struct {
	NextToken   string `json:"next_token"`
	ResultCount int    `json:"result_count"`
	NewestID    string `json:"newest_id"`
	OldestID    string `json:"oldest_id"`
}

// RateLimit carries the upstream rate-limit headers when present.
type RateLimit struct {
	Remaining *int
	Reset     *int64
}

// Result is the outcome of one upstream call. Status holds the HTTP status
// code; callers branch on it rather than on a Go error.
type Result struct {
	Status    int        `json:"-"`
	Errors    []APIError `json:"-"`
	RateLimit RateLimit  `json:"-"`
}

// ErrorMessage returns the first upstream error message, if any.
func (r Result) ErrorMessage() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

type UserResponse struct {
	Result
	Data *User `json:"data"`
}

type PostsResponse struct {
	Result
	Data     []Post    `json:"data"`
	Includes *Includes `json:"includes"`
	Meta     *Meta     `json:"meta"`
}

// MediaLookup maps media keys to media types for the page.
func (r *PostsResponse) MediaLookup() map[string]string {
	lookup := make(map[string]string)
	if r.Includes == nil {
		return lookup
	}
	for _, m := range r.Includes.Media {
		lookup[m.MediaKey] = m.Type
	}
	return lookup
}

// NextToken returns the pagination token for the following page, or "".
func (r *PostsResponse) NextToken() string {
	if r.Meta == nil {
		return ""
	}
	return r.Meta.NextToken
}

// NewestID returns the newest post id on this page, or "".
func (r *PostsResponse) NewestID() string {
	if r.Meta == nil {
		return ""
	}
	return r.Meta.NewestID
}
