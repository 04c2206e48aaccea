package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Extraction — результат извлечения полей по маппингу.
type Extraction struct {
	// Fields — все поля маппинга. Ненайденные присутствуют со значением nil.
	Fields map[string]any

	// Missing — имена полей, путь которых не нашёлся, в алфавитном порядке.
	Missing []string
}

// Complete возвращает true, если все пути нашлись.
func (e Extraction) Complete() bool {
	return len(e.Missing) == 0
}

// MissingError описывает ненайденные поля как ошибку. Nil, если всё нашлось.
func (e Extraction) MissingError() error {
	if e.Complete() {
		return nil
	}
	return fmt.Errorf("fields not found in response: %s", strings.Join(e.Missing, ", "))
}

// Extract извлекает поля из дерева по маппингу "поле → путь".
//
// Отсутствующий путь не является ошибкой: поле попадает в Missing.
func Extract(root any, mapping map[string]string) Extraction {
	ex := Extraction{Fields: make(map[string]any, len(mapping))}
	for field, path := range mapping {
		v, ok := Lookup(root, path)
		if !ok {
			ex.Fields[field] = nil
			ex.Missing = append(ex.Missing, field)
			continue
		}
		ex.Fields[field] = v
	}
	sort.Strings(ex.Missing)
	return ex
}

// Lookup проходит по дереву object/array/scalar по пути.
//
// Поддерживаются ключи через точку и числовые индексы в обеих формах:
// "data.items.0.url" и "data.items[0].url". Пустой путь или "." возвращает корень.
func Lookup(root any, path string) (any, bool) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false
	}

	current := root
	for _, seg := range segments {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		case []string:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// splitPath разбивает путь на сегменты.
func splitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")
	if path == "" || path == "." {
		return nil, nil
	}

	// "a[0].b" → "a.0.b"
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	path = strings.TrimPrefix(path, ".")

	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyPath, path)
		}
	}
	return segments, nil
}
