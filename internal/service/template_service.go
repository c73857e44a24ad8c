// internal/service/template_service.go
package service

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// RenderTemplate substitutes every {{ dotted.path }} with the value found in
// data. Paths that do not resolve render as the empty string.
func RenderTemplate(template string, data map[string]any) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		path := placeholder.FindStringSubmatch(m)[1]
		v, ok := ResolvePath(data, path)
		if !ok {
			return ""
		}
		return stringify(v)
	})
}

// ResolvePath walks data one dotted segment at a time. Numeric segments index arrays.
func ResolvePath(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ResolveRecipient reads the recipient from sendToPath, which is either a
// dotted path or a template.
func ResolveRecipient(sendToPath string, data map[string]any) string {
	path := strings.TrimSpace(sendToPath)
	if path == "" {
		return ""
	}
	if strings.Contains(path, "{{") {
		return strings.TrimSpace(RenderTemplate(path, data))
	}
	v, ok := ResolvePath(data, path)
	if !ok {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}
