package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/minelink/internal/link/domain"
	"github.com/aussiebroadwan/minelink/internal/link/store"
	"github.com/aussiebroadwan/minelink/pkg/idx"
)

type bindingsRepo struct {
	db *sql.DB
}

const bindingColumns = `id, principal_id, display_name, external_id,
	access_token, refresh_token, token_expires_at, profile_snapshot,
	created_at, updated_at`

func (r *bindingsRepo) Save(ctx context.Context, p store.SaveParams) error {
	if !json.Valid(p.ProfileSnapshot) {
		return store.ErrInvalidProfile
	}

	now := time.Now().UTC()
	expiresAt := tokenExpiry(now, p.ExpiresIn)

	// Upsert by principal: a re-bind keeps id and created_at. A unique
	// violation on external_id means another principal owns that identity.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bindings (id, principal_id, display_name, external_id,
			access_token, refresh_token, token_expires_at, profile_snapshot,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(principal_id) DO UPDATE SET
			display_name = excluded.display_name,
			external_id = excluded.external_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expires_at = excluded.token_expires_at,
			profile_snapshot = excluded.profile_snapshot,
			updated_at = excluded.updated_at`,
		idx.New().String(),
		p.PrincipalID.String(),
		p.DisplayName,
		p.ExternalID,
		mapStringNull(p.AccessToken),
		mapStringNull(p.RefreshToken),
		mapOptionalTime(expiresAt),
		string(p.ProfileSnapshot),
		now,
		now,
	)
	return mapConstraint(err)
}

func (r *bindingsRepo) Get(ctx context.Context, principalID uuid.UUID) (domain.Binding, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bindingColumns+` FROM bindings WHERE principal_id = ?`,
		principalID.String(),
	)
	return scanBinding(row)
}

func (r *bindingsRepo) GetByExternalID(ctx context.Context, externalID string) (domain.Binding, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bindingColumns+` FROM bindings WHERE external_id = ?`,
		externalID,
	)
	return scanBinding(row)
}

func (r *bindingsRepo) IsPrincipalBound(ctx context.Context, principalID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bindings WHERE principal_id = ?`,
		principalID.String(),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *bindingsRepo) IsExternalIDBound(ctx context.Context, externalID string) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bindings WHERE external_id = ?`,
		externalID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *bindingsRepo) Delete(ctx context.Context, principalID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bindings WHERE principal_id = ?`,
		principalID.String(),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *bindingsRepo) List(ctx context.Context, page, pageSize int) ([]domain.Binding, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bindingColumns+` FROM bindings
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
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
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bindings`).Scan(&count)
	return count, err
}

func (r *bindingsRepo) UpdateTokens(ctx context.Context, principalID uuid.UUID, accessToken, refreshToken string, expiresIn int64) (bool, error) {
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE bindings
		SET access_token = ?, refresh_token = ?, token_expires_at = ?, updated_at = ?
		WHERE principal_id = ?`,
		mapStringNull(accessToken),
		mapStringNull(refreshToken),
		mapOptionalTime(tokenExpiry(now, expiresIn)),
		now,
		principalID.String(),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *bindingsRepo) UpdateDisplayName(ctx context.Context, principalID uuid.UUID, displayName string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bindings SET display_name = ?, updated_at = ? WHERE principal_id = ?`,
		displayName,
		time.Now().UTC(),
		principalID.String(),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func tokenExpiry(now time.Time, expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	t := now.Add(time.Duration(expiresIn) * time.Second)
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (domain.Binding, error) {
	var (
		b           domain.Binding
		principal   string
		accessTok   sql.NullString
		refreshTok  sql.NullString
		expiresAt   sql.NullTime
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

	b.AccessToken = mapNullString(accessTok)
	b.RefreshToken = mapNullString(refreshTok)
	b.TokenExpiresAt = mapNullTimePtr(expiresAt)
	b.ProfileSnapshot = []byte(snapshotRaw)
	return b, nil
}
