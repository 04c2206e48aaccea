package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Reel/internal/domain"
)

// ProviderRepo — конфигурации провайдеров в PostgreSQL.
//
// Движок только читает таблицу (provider.Catalog); пишут её
// административные эндпоинты и `reel provider import`.
type ProviderRepo struct {
	pool *pgxpool.Pool
}

// NewProviderRepo создаёт новый ProviderRepo.
func NewProviderRepo(pool *pgxpool.Pool) *ProviderRepo {
	return &ProviderRepo{pool: pool}
}

// Provider возвращает конфигурацию по имени модели.
func (r *ProviderRepo) Provider(ctx context.Context, name string) (*domain.ProviderConfig, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT config FROM providers WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return decodeProvider(data)
}

// ListProviders возвращает все конфигурации, отсортированные по имени.
func (r *ProviderRepo) ListProviders(ctx context.Context) ([]domain.ProviderConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT config FROM providers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderConfig
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		cfg, err := decodeProvider(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, rows.Err()
}

// UpsertProvider создаёт или заменяет конфигурацию.
func (r *ProviderRepo) UpsertProvider(ctx context.Context, cfg *domain.ProviderConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal provider: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO providers (name, category, provider, config, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (name) DO UPDATE
		SET category = EXCLUDED.category, provider = EXCLUDED.provider,
		    config = EXCLUDED.config, updated_at = NOW()
	`, cfg.Name, cfg.Category, cfg.Provider, data)
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}

// DeleteProvider удаляет конфигурацию.
func (r *ProviderRepo) DeleteProvider(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM providers WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeProvider(data []byte) (*domain.ProviderConfig, error) {
	var cfg domain.ProviderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal provider: %w", err)
	}
	return &cfg, nil
}
