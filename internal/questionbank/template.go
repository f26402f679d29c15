package questionbank

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderTemplate substitutes {column} placeholders in a narrative template
// with values from the row. Missing and null values default to "0".
func RenderTemplate(template string, row map[string]any) string {
	if template == "" {
		return ""
	}

	var b strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start

		b.WriteString(rest[:start])
		key := strings.TrimSpace(rest[start+1 : end])
		b.WriteString(renderValue(row[key]))
		rest = rest[end+1:]
	}
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "0"
	case float64:
		return formatFloat(val)
	case int64:
		return groupThousands(strconv.FormatInt(val, 10))
	case int:
		return groupThousands(strconv.Itoa(val))
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return groupThousands(strconv.FormatInt(int64(v), 10))
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// groupThousands inserts comma separators into an integer string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
