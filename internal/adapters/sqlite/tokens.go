package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

const tokensTable = "session_tokens"

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiresAt    = "expires_at"
)

// LoadTokens returns the persisted bundle or domain.ErrNotFound when no
// access token is stored.
func (a *Adapter) LoadTokens(ctx context.Context) (domain.TokenBundle, error) {
	query, args, err := builder.Select("name", "value").From(tokensTable).ToSql()
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("failed to build token query: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("failed to load tokens: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 3)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return domain.TokenBundle{}, fmt.Errorf("failed to scan token: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return domain.TokenBundle{}, fmt.Errorf("failed to iterate tokens: %w", err)
	}

	resp := domain.TokenResponse{
		AccessToken:  values[keyAccessToken],
		RefreshToken: values[keyRefreshToken],
	}
	if raw := values[keyExpiresAt]; raw != "" {
		if resp.ExpiresAt, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return domain.TokenBundle{}, fmt.Errorf("%w: stored expires_at %q", domain.ErrInvalidToken, raw)
		}
	}

	bundle := resp.Bundle(a.now())
	if !bundle.Valid() {
		return domain.TokenBundle{}, domain.ErrNotFound
	}
	return bundle, nil
}

// SaveTokens replaces the stored bundle. All keys are written in one
// transaction; a missing refresh token or expiry removes the old value.
func (a *Adapter) SaveTokens(ctx context.Context, b domain.TokenBundle) error {
	if !b.Valid() {
		return domain.ErrInvalidToken
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := execBuilder(ctx, tx, builder.Delete(tokensTable)); err != nil {
		return fmt.Errorf("failed to clear old tokens: %w", err)
	}

	insert := builder.Replace(tokensTable).Columns("name", "value").
		Values(keyAccessToken, b.AccessToken)
	if b.RefreshToken != "" {
		insert = insert.Values(keyRefreshToken, b.RefreshToken)
	}
	if !b.ExpiresAt.IsZero() {
		insert = insert.Values(keyExpiresAt, strconv.FormatInt(b.ExpiresAt.Unix(), 10))
	}
	if err := execBuilder(ctx, tx, insert); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ClearTokens removes every persisted key together.
func (a *Adapter) ClearTokens(ctx context.Context) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := execBuilder(ctx, tx, builder.Delete(tokensTable)); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func execBuilder(ctx context.Context, tx *sql.Tx, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}
