package expression

import (
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// ExtractExpressions yields every {{ }} span of text, delimiters included, in order.
// A }} inside a string literal does not close the span. An unterminated span
// ends the scan.
func ExtractExpressions(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := text

		for {
			start := strings.Index(rest, openDelim)
			if start == -1 {
				return
			}

			end := spanEnd(rest[start+len(openDelim):])
			if end == -1 {
				return
			}

			end += start + len(openDelim) + len(closeDelim)

			if !yield(rest[start:end]) {
				return
			}

			rest = rest[end:]
		}
	}
}

// ReplaceExpressions substitutes every {{ }} span in text with its stringified value.
// A span that fails is replaced by an [ERROR: ...] marker and the rest of the text is still rendered.
func ReplaceExpressions(text string, evaluator Evaluator) string {
	out, _ := substitute(text, evaluator, false)

	return out
}

// ResolveParameters returns a copy of params with every string leaf resolved.
// Values wholly wrapped in {{ }} or starting with = keep the evaluated type; embedded
// spans are substituted as text. The first failure aborts resolution.
func ResolveParameters(params map[string]any, evaluator Evaluator) (map[string]any, error) {
	out := make(map[string]any, len(params))

	for key, value := range params {
		resolved, err := resolveValue(value, evaluator)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}

		out[key] = resolved
	}

	return out, nil
}

func resolveValue(value any, evaluator Evaluator) (any, error) {
	switch v := value.(type) {
	case string:
		if _, ok := wholeSpan(v); ok || strings.HasPrefix(v, "=") {
			return evaluator.EvaluateExpression(v)
		}

		if !strings.Contains(v, openDelim) {
			return v, nil
		}

		return substitute(v, evaluator, true)
	case map[string]any:
		return ResolveParameters(v, evaluator)
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			resolved, err := resolveValue(item, evaluator)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}

			out[i] = resolved
		}

		return out, nil
	default:
		return value, nil
	}
}

func substitute(text string, evaluator Evaluator, strict bool) (string, error) {
	var out strings.Builder
	out.Grow(len(text))

	rest := text

	for span := range ExtractExpressions(text) {
		idx := strings.Index(rest, span)
		out.WriteString(rest[:idx])
		rest = rest[idx+len(span):]

		value, err := evaluator.EvaluateExpression(span)
		if err != nil {
			if strict {
				return "", err
			}

			out.WriteString(ErrorMarker(err))

			continue
		}

		out.WriteString(Stringify(value))
	}

	out.WriteString(rest)

	return out.String(), nil
}

// ErrorMarker renders err as the inline marker used in place of a failed span.
func ErrorMarker(err error) string {
	return "[ERROR: " + err.Error() + "]"
}

// wholeSpan reports whether raw consists of exactly one {{ }} span and returns its trimmed interior.
func wholeSpan(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, openDelim) || !strings.HasSuffix(trimmed, closeDelim) {
		return "", false
	}

	body := trimmed[len(openDelim):]

	end := spanEnd(body)
	if end == -1 || end+len(closeDelim) != len(body) {
		return "", false
	}

	inner := body[:end]
	if unquotedIndex(inner, openDelim) != -1 {
		return "", false
	}

	return strings.TrimSpace(inner), true
}

// spanEnd returns the index in s of the }} closing a span whose {{ was just
// consumed, or -1. Delimiters inside quoted strings are skipped; when a quote
// is never closed the first }} wins.
func spanEnd(s string) int {
	if i := unquotedIndex(s, closeDelim); i != -1 {
		return i
	}

	return strings.Index(s, closeDelim)
}

// unquotedIndex is strings.Index restricted to text outside ", ' and ` literals.
func unquotedIndex(s, sub string) int {
	var quote byte

	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote != 0 {
			switch {
			case c == '\\' && quote != '`':
				i++
			case c == quote:
				quote = 0
			}

			continue
		}

		if c == '"' || c == '\'' || c == '`' {
			quote = c

			continue
		}

		if strings.HasPrefix(s[i:], sub) {
			return i
		}
	}

	return -1
}

// Stringify converts an evaluation result to text: strings as-is, nil as empty,
// scalars in their canonical form, times as RFC 3339 and composites as compact JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	case json.RawMessage:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}

		return string(b)
	}
}
