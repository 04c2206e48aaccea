package repo

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Reel/internal/domain"
)

// JobFilter — параметры фильтрации jobs.
type JobFilter struct {
	UserID       string
	WorkflowType string
	Status       domain.JobStatus
	Limit        int
	Offset       int
}

// WithDefaults выставляет лимит по умолчанию (50, максимум 500).
func (f JobFilter) WithDefaults() JobFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// derefString возвращает "" для NULL.
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// marshalMap сериализует map в JSON. nil map — NULL.
func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// unmarshalMap разбирает JSON-колонку. NULL — nil map.
func unmarshalMap(data []byte, field string) (map[string]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return m, nil
}

// JobStatusStrings переводит статусы в []string для параметров запросов.
func JobStatusStrings(statuses []domain.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
