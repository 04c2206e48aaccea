package engine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// placeholderRe находит плейсхолдеры {{name}}. Пробелы внутри скобок допускаются.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-\[\]]+)\s*\}\}`)

// absent помечает значение тела, плейсхолдер которого не нашёлся в параметрах.
// Такие ключи удаляются из итогового тела.
type absent struct{}

// textMode — способ превращения значения параметра в текст.
type textMode int

const (
	// modeString — строковый контекст: массив отдаёт первый скаляр.
	modeString textMode = iota

	// modeBody — текст тела: массивы и объекты сериализуются в JSON.
	modeBody
)

// Placeholders возвращает имена плейсхолдеров в строке в порядке появления.
func Placeholders(tmpl string) []string {
	matches := placeholderRe.FindAllStringSubmatch(tmpl, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// MergeParams накладывает params поверх defaults. Значения params побеждают.
func MergeParams(defaults, params map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(params))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// Render подставляет параметры в строковый шаблон (заголовки и подобное).
//
// Массив подставляется своим первым скалярным элементом, объект как JSON.
// Отсутствующий параметр превращается в пустую строку.
func Render(tmpl string, params map[string]any) string {
	return renderText(tmpl, params, modeString)
}

// RenderURL подставляет параметры в URL.
//
// Значения в пути экранируются как сегмент пути, значения после '?' как
// параметр запроса. Значение, которое само является абсолютным URL, подставляется как есть.
func RenderURL(tmpl string, params map[string]any) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	queryStart := strings.Index(tmpl, "?")

	var b strings.Builder
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(tmpl, -1) {
		b.WriteString(tmpl[last:loc[0]])
		last = loc[1]

		value, ok := lookupParam(params, tmpl[loc[2]:loc[3]])
		if !ok {
			continue
		}
		s := stringify(value, modeString)

		switch {
		case strings.Contains(s, "://"):
			b.WriteString(s)
		case queryStart >= 0 && loc[0] > queryStart:
			b.WriteString(url.QueryEscape(s))
		default:
			b.WriteString(url.PathEscape(s))
		}
	}
	b.WriteString(tmpl[last:])
	return b.String()
}

// RenderHeaders рендерит все значения заголовков.
func RenderHeaders(headers map[string]string, params map[string]any) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		result[k] = Render(v, params)
	}
	return result
}

// RenderBody рендерит шаблон тела.
//
// Тело-строка рендерится как текст JSON: массивы и объекты сериализуются,
// строки экранируются без внешних кавычек. Тело-дерево (map/slice) обходится рекурсивно:
// строка, целиком состоящая из одного плейсхолдера, заменяется самим значением
// параметра с сохранением типа; отсутствующие такие значения удаляются из родителя.
func RenderBody(tmpl any, params map[string]any) any {
	if s, ok := tmpl.(string); ok {
		return renderText(s, params, modeBody)
	}
	v := renderTree(tmpl, params)
	if _, ok := v.(absent); ok {
		return nil
	}
	return v
}

func renderTree(value any, params map[string]any) any {
	switch v := value.(type) {
	case string:
		if name, ok := wholePlaceholder(v); ok {
			p, found := lookupParam(params, name)
			if !found {
				return absent{}
			}
			return p
		}
		return renderText(v, params, modeString)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered := renderTree(val, params)
			if _, skip := rendered.(absent); skip {
				continue
			}
			result[key] = rendered
		}
		return result

	case []any:
		result := make([]any, 0, len(v))
		for _, val := range v {
			rendered := renderTree(val, params)
			if _, skip := rendered.(absent); skip {
				continue
			}
			result = append(result, rendered)
		}
		return result

	case map[string]string:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered := renderTree(val, params)
			if _, skip := rendered.(absent); skip {
				continue
			}
			result[key] = rendered
		}
		return result

	default:
		return value
	}
}

// wholePlaceholder проверяет, что строка — ровно один плейсхолдер.
func wholePlaceholder(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	loc := placeholderRe.FindStringSubmatchIndex(trimmed)
	if loc == nil || loc[0] != 0 || loc[1] != len(trimmed) {
		return "", false
	}
	return trimmed[loc[2]:loc[3]], true
}

func renderText(tmpl string, params map[string]any, mode textMode) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		value, ok := lookupParam(params, name)
		if !ok {
			return ""
		}
		return stringify(value, mode)
	})
}

// lookupParam ищет параметр по точному имени, затем по dot-path.
func lookupParam(params map[string]any, name string) (any, bool) {
	if v, ok := params[name]; ok {
		return v, v != nil
	}
	if strings.ContainsAny(name, ".[") {
		v, ok := Lookup(params, name)
		return v, ok && v != nil
	}
	return nil, false
}

// stringify превращает значение параметра в текст.
func stringify(value any, mode textMode) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		if mode == modeBody {
			b, _ := json.Marshal(v)
			return string(b[1 : len(b)-1])
		}
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case []any:
		if mode == modeBody {
			return mustJSON(v)
		}
		for _, item := range v {
			if isScalar(item) {
				return stringify(item, mode)
			}
		}
		return ""
	case []string:
		if mode == modeBody {
			return mustJSON(v)
		}
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case map[string]any:
		return mustJSON(v)
	default:
		return fmt.Sprint(v)
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int64, json.Number:
		return true
	default:
		return false
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
