package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/poro/notify-engine/internal/entity"

	_ "github.com/lib/pq"
)

type preferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) GetByUserID(ctx context.Context, userID string) (*entity.UserPreference, error) {
	query := `SELECT user_id, email, phone, push_token, opted_out, created_at, updated_at
		FROM user_preferences WHERE user_id = $1`

	var (
		p        entity.UserPreference
		email    sql.NullString
		phone    sql.NullString
		token    sql.NullString
		optedOut []byte
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &email, &phone, &token, &optedOut, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences for user %s: %w", userID, err)
	}

	p.Email = email.String
	p.Phone = phone.String
	p.PushToken = token.String

	if err := json.Unmarshal(optedOut, &p.OptedOut); err != nil {
		return nil, fmt.Errorf("unmarshal opted_out: %w", err)
	}

	return &p, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, p *entity.UserPreference) error {
	optedOut := p.OptedOut
	if optedOut == nil {
		optedOut = []entity.Channel{}
	}
	data, err := json.Marshal(optedOut)
	if err != nil {
		return fmt.Errorf("marshal opted_out: %w", err)
	}

	query := `INSERT INTO user_preferences (user_id, email, phone, push_token, opted_out, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			push_token = EXCLUDED.push_token,
			opted_out = EXCLUDED.opted_out,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query, p.UserID, p.Email, p.Phone, p.PushToken, data, time.Now())
	if err != nil {
		return fmt.Errorf("upsert preferences for user %s: %w", p.UserID, err)
	}
	return nil
}
