package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aussiebroadwan/minelink/internal/link/domain"
	"github.com/aussiebroadwan/minelink/internal/link/store"
	"github.com/aussiebroadwan/minelink/pkg/idx"
)

type bindingsRepo struct {
	pool *pgxpool.Pool
}

const bindingColumns = `id, principal_id, display_name, external_id,
	access_token, refresh_token, token_expires_at, profile_snapshot,
	created_at, updated_at`

func (r *bindingsRepo) Save(ctx context.Context, p store.SaveParams) error {
	if !json.Valid(p.ProfileSnapshot) {
		return store.ErrInvalidProfile
	}

	now := time.Now().UTC()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO bindings (id, principal_id, display_name, external_id,
			access_token, refresh_token, token_expires_at, profile_snapshot,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (principal_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			external_id = EXCLUDED.external_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			profile_snapshot = EXCLUDED.profile_snapshot,
			updated_at = EXCLUDED.updated_at`,
		idx.New().String(),
		p.PrincipalID.String(),
		p.DisplayName,
		p.ExternalID,
		nullable(p.AccessToken),
		nullable(p.RefreshToken),
		tokenExpiry(now, p.ExpiresIn),
		string(p.ProfileSnapshot),
		now,
		now,
	)
	return mapConstraint(err)
}

func (r *bindingsRepo) Get(ctx context.Context, principalID uuid.UUID) (domain.Binding, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+bindingColumns+` FROM bindings WHERE principal_id = $1`,
		principalID.String(),
	)
	return scanBinding(row)
}

func (r *bindingsRepo) GetByExternalID(ctx context.Context, externalID string) (domain.Binding, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+bindingColumns+` FROM bindings WHERE external_id = $1`,
		externalID,
	)
	return scanBinding(row)
}

func (r *bindingsRepo) IsPrincipalBound(ctx context.Context, principalID uuid.UUID) (bool, error) {
	var bound bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bindings WHERE principal_id = $1)`,
		principalID.String(),
	).Scan(&bound)
	return bound, err
}

func (r *bindingsRepo) IsExternalIDBound(ctx context.Context, externalID string) (bool, error) {
	var bound bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bindings WHERE external_id = $1)`,
		externalID,
	).Scan(&bound)
	return bound, err
}

func (r *bindingsRepo) Delete(ctx context.Context, principalID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM bindings WHERE principal_id = $1`,
		principalID.String(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *bindingsRepo) List(ctx context.Context, page, pageSize int) ([]domain.Binding, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	rows, err := r.pool.Query(ctx,
		`SELECT `+bindingColumns+` FROM bindings
		 ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		pageSize, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bindings := make([]domain.Binding, 0, pageSize)
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

func (r *bindingsRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bindings`).Scan(&count)
	return count, err
}

func (r *bindingsRepo) UpdateTokens(ctx context.Context, principalID uuid.UUID, accessToken, refreshToken string, expiresIn int64) (bool, error) {
	now := time.Now().UTC()

	tag, err := r.pool.Exec(ctx, `
		UPDATE bindings
		SET access_token = $1, refresh_token = $2, token_expires_at = $3, updated_at = $4
		WHERE principal_id = $5`,
		nullable(accessToken),
		nullable(refreshToken),
		tokenExpiry(now, expiresIn),
		now,
		principalID.String(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *bindingsRepo) UpdateDisplayName(ctx context.Context, principalID uuid.UUID, displayName string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bindings SET display_name = $1, updated_at = $2 WHERE principal_id = $3`,
		displayName,
		time.Now().UTC(),
		principalID.String(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func tokenExpiry(now time.Time, expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	t := now.Add(time.Duration(expiresIn) * time.Second)
	return &t
}

func scanBinding(row pgx.Row) (domain.Binding, error) {
	var (
		b           domain.Binding
		principal   string
		accessTok   *string
		refreshTok  *string
		expiresAt   *time.Time
		snapshotRaw string
	)

	err := row.Scan(
		&b.ID,
		&principal,
		&b.DisplayName,
		&b.ExternalID,
		&accessTok,
		&refreshTok,
		&expiresAt,
		&snapshotRaw,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return domain.Binding{}, mapNotFound(err)
	}

	b.PrincipalID, err = uuid.Parse(principal)
	if err != nil {
		return domain.Binding{}, err
	}

	if accessTok != nil {
		b.AccessToken = *accessTok
	}
	if refreshTok != nil {
		b.RefreshToken = *refreshTok
	}
	b.TokenExpiresAt = expiresAt
	b.ProfileSnapshot = []byte(snapshotRaw)
	return b, nil
}
