package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

const cacheTable = "lyrics_cache"

// GetLyrics returns cached lyrics or domain.ErrNotFound.
func (a *Adapter) GetLyrics(ctx context.Context, trackID string) (string, error) {
	query, args, err := builder.Select("lyrics").From(cacheTable).
		Where(sq.Eq{"track_id": trackID}).ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build lyrics query: %w", err)
	}

	var lyrics string
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&lyrics); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to load lyrics: %w", err)
	}
	return lyrics, nil
}

// PutLyrics stores or replaces the lyrics of a track.
func (a *Adapter) PutLyrics(ctx context.Context, trackID string, lyrics string) error {
	if trackID == "" {
		return fmt.Errorf("put lyrics: empty track id")
	}
	query, args, err := builder.Replace(cacheTable).
		Columns("track_id", "lyrics", "fetched_at").
		Values(trackID, lyrics, a.now().UnixMilli()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lyrics insert: %w", err)
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save lyrics: %w", err)
	}
	return nil
}
