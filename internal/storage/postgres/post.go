package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"engagement_tracker/internal/domain"
)

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

// Upsert inserts a post or refreshes the counters and classification of the
// existing row for the same (tenant, platform post id). is_hit is left alone.
func (s *PostStore) Upsert(ctx context.Context, post *domain.Post) error {
	query := `
		INSERT INTO posts (
			id, tenant_id, tracked_account_id, post_x_id, text, posted_at,
			likes_count, replies_count, reposts_count, quotes_count, impressions_count,
			media_type, hashtags, theme, appeal_frame, raw_json
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::jsonb
		)
		ON CONFLICT (tenant_id, post_x_id) DO UPDATE SET
			text = EXCLUDED.text,
			likes_count = EXCLUDED.likes_count,
			replies_count = EXCLUDED.replies_count,
			reposts_count = EXCLUDED.reposts_count,
			quotes_count = EXCLUDED.quotes_count,
			impressions_count = EXCLUDED.impressions_count,
			media_type = EXCLUDED.media_type,
			hashtags = EXCLUDED.hashtags,
			theme = EXCLUDED.theme,
			appeal_frame = EXCLUDED.appeal_frame,
			raw_json = EXCLUDED.raw_json,
			updated_at = NOW()
		RETURNING id, created_at`

	hashtags := post.Hashtags
	if hashtags == nil {
		hashtags = pq.StringArray{}
	}

	// pq sends []byte as bytea, so raw JSON goes over the wire as text
	var raw *string
	if len(post.RawJSON) > 0 {
		r := string(post.RawJSON)
		raw = &r
	}

	return GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		post.ID,
		post.TenantID,
		post.AccountID,
		post.PlatformPostID,
		post.Text,
		post.PostedAt,
		post.LikesCount,
		post.RepliesCount,
		post.RepostsCount,
		post.QuotesCount,
		post.ImpressionsCount,
		post.MediaType,
		hashtags,
		post.Theme,
		post.AppealFrame,
		raw,
	).Scan(&post.ID, &post.CreatedAt)
}

// ListScored returns the posts matching filter joined with their account's
// follower count, newest first.
func (s *PostStore) ListScored(ctx context.Context, filter domain.PostFilter) ([]domain.ScoredPost, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT p.id, p.tenant_id, p.tracked_account_id, p.post_x_id, p.text, p.posted_at,
			p.likes_count, p.replies_count, p.reposts_count, p.quotes_count, p.impressions_count,
			p.media_type, p.hashtags, p.theme, p.appeal_frame, p.is_hit, p.raw_json, p.created_at,
			a.followers_count
		FROM posts p
		JOIN tracked_accounts a ON a.id = p.tracked_account_id
		WHERE p.tenant_id = $1`)

	args := []any{filter.TenantID}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		fmt.Fprintf(&sb, " AND p.tracked_account_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&sb, " AND p.posted_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&sb, " AND p.posted_at <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY p.posted_at DESC")

	var posts []domain.ScoredPost
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &posts, sb.String(), args...)
	return posts, err
}

// SetHits flags hitIDs and clears the flag on nonHitIDs in a single
// statement, so it joins a surrounding transaction when there is one.
func (s *PostStore) SetHits(ctx context.Context, tenantID uuid.UUID, hitIDs, nonHitIDs []uuid.UUID) error {
	if len(hitIDs) == 0 && len(nonHitIDs) == 0 {
		return nil
	}
	all := make([]uuid.UUID, 0, len(hitIDs)+len(nonHitIDs))
	all = append(all, hitIDs...)
	all = append(all, nonHitIDs...)

	query := `
		UPDATE posts
		SET is_hit = (id = ANY($2::uuid[])), updated_at = NOW()
		WHERE tenant_id = $1 AND id = ANY($3::uuid[])`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		tenantID,
		pq.Array(uuidStrings(hitIDs)),
		pq.Array(uuidStrings(all)),
	)
	if err != nil {
		return fmt.Errorf("set hit flags: %w", err)
	}
	return nil
}
