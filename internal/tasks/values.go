package tasks

import (
	"fmt"
	"strconv"
	"strings"
)

// str возвращает строковое значение поля или "".
func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// requireStr возвращает непустое строковое поле или ErrMissingInput.
func requireStr(m map[string]any, key string) (string, error) {
	s := strings.TrimSpace(str(m, key))
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingInput, key)
	}
	return s, nil
}

// list возвращает поле-массив как []any.
func list(m map[string]any, key string) []any {
	switch v := m[key].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	default:
		return nil
	}
}

// firstString ищет первое непустое строковое значение среди ключей результата.
// Массивы отдают первый строковый элемент, объекты — поле "url".
func firstString(result map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(result[key]); s != "" {
			return s
		}
	}
	return ""
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []any:
		for _, item := range x {
			if s := asString(item); s != "" {
				return s
			}
		}
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	case map[string]any:
		return asString(x["url"])
	}
	return ""
}

// copyKeys копирует заданные поля input в params, пропуская пустые.
func copyKeys(params, input map[string]any, keys ...string) {
	for _, k := range keys {
		v, ok := input[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		params[k] = v
	}
}
