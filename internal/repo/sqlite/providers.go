package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/repo"
)

// Provider возвращает конфигурацию провайдера по имени модели.
func (s *Store) Provider(ctx context.Context, name string) (*domain.ProviderConfig, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM providers WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return decodeProvider(data)
}

// ListProviders возвращает все конфигурации, отсортированные по имени.
func (s *Store) ListProviders(ctx context.Context) ([]domain.ProviderConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config FROM providers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderConfig
	for rows.Next() {
		var data string
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
func (s *Store) UpsertProvider(ctx context.Context, cfg *domain.ProviderConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal provider: %w", err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO providers (name, category, provider, config, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE
		 SET category = excluded.category, provider = excluded.provider,
		     config = excluded.config, updated_at = excluded.updated_at`,
		cfg.Name, cfg.Category, cfg.Provider, string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}

// DeleteProvider удаляет конфигурацию.
func (s *Store) DeleteProvider(ctx context.Context, name string) error {
	n, err := s.execAffected(ctx, `DELETE FROM providers WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func decodeProvider(data string) (*domain.ProviderConfig, error) {
	var cfg domain.ProviderConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal provider: %w", err)
	}
	return &cfg, nil
}
