package expression

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
)

var (
	errArgCount = errors.New("wrong number of arguments")
	errArgType  = errors.New("unsupported argument type")
)

// FunctionInfo describes a formula function for editor tooling.
type FunctionInfo struct {
	Name        string `json:"name"`
	Signature   string `json:"signature"`
	Description string `json:"description"`
}

type function struct {
	FunctionInfo
	call func(params ...any) (any, error)
}

// library returns the fixed formula function set bound to the engine clock.
func (e *Engine) library() []function {
	return []function{
		{FunctionInfo{"toUpperCase", "toUpperCase(text)", "Converts text to upper case"}, stringFn(strings.ToUpper)},
		{FunctionInfo{"toLowerCase", "toLowerCase(text)", "Converts text to lower case"}, stringFn(strings.ToLower)},
		{FunctionInfo{"trim", "trim(text)", "Removes leading and trailing whitespace"}, stringFn(strings.TrimSpace)},
		{FunctionInfo{"substring", "substring(text, start, end?)", "Returns the characters between start and end"}, substring},
		{FunctionInfo{"replace", "replace(text, search, replacement)", "Replaces every occurrence of search"}, replace},
		{FunctionInfo{"now", "now()", "Current date and time in the workflow timezone"}, func(params ...any) (any, error) {
			if len(params) != 0 {
				return nil, errArgCount
			}

			return e.now, nil
		}},
		{FunctionInfo{"today", "today()", "Today at midnight in the workflow timezone"}, func(params ...any) (any, error) {
			if len(params) != 0 {
				return nil, errArgCount
			}

			return e.today, nil
		}},
		{FunctionInfo{"formatDate", "formatDate(date, format?)", "Formats a date using YYYY, MM, DD, HH, mm, ss tokens"}, e.formatDate},
		{FunctionInfo{"round", "round(number, digits?)", "Rounds to the given number of decimal places"}, round},
		{FunctionInfo{"floor", "floor(number)", "Rounds down"}, mathFn(math.Floor)},
		{FunctionInfo{"ceil", "ceil(number)", "Rounds up"}, mathFn(math.Ceil)},
		{FunctionInfo{"abs", "abs(number)", "Absolute value"}, mathFn(math.Abs)},
		{FunctionInfo{"min", "min(numbers...)", "Smallest of the numbers or of an array"}, extremum(func(a, b float64) bool { return a < b })},
		{FunctionInfo{"max", "max(numbers...)", "Largest of the numbers or of an array"}, extremum(func(a, b float64) bool { return a > b })},
		{FunctionInfo{"first", "first(array)", "First element of an array"}, first},
		{FunctionInfo{"last", "last(array)", "Last element of an array"}, last},
		{FunctionInfo{"length", "length(value)", "Length of a string, array or object"}, length},
		{FunctionInfo{"join", "join(array, separator?)", "Joins array elements into a string"}, join},
		{FunctionInfo{"keys", "keys(object)", "Sorted keys of an object"}, keys},
		{FunctionInfo{"values", "values(object)", "Values of an object in key order"}, values},
		{FunctionInfo{"toString", "toString(value)", "Converts a value to its string form"}, unary(func(v any) (any, error) { return Stringify(v), nil })},
		{FunctionInfo{"toNumber", "toNumber(value)", "Converts a value to a number"}, unary(toNumber)},
		{FunctionInfo{"toBoolean", "toBoolean(value)", "Converts a value to a boolean"}, unary(toBoolean)},
		{FunctionInfo{"toJSON", "toJSON(value)", "Encodes a value as JSON"}, unary(toJSON)},
		{FunctionInfo{"fromJSON", "fromJSON(text)", "Decodes a JSON document"}, unary(fromJSON)},
		{FunctionInfo{"isEmpty", "isEmpty(value)", "True for nil, empty strings, arrays and objects"}, unary(func(v any) (any, error) { return isEmpty(v), nil })},
		{FunctionInfo{"isNotEmpty", "isNotEmpty(value)", "Negation of isEmpty"}, unary(func(v any) (any, error) { return !isEmpty(v), nil })},
		{FunctionInfo{"jq", "jq(value, query)", "Runs a jq query against a value"}, e.jq},
	}
}

func (e *Engine) functionOptions() []expr.Option {
	lib := e.library()
	opts := make([]expr.Option, 0, len(lib))

	for _, fn := range lib {
		opts = append(opts, expr.Function(fn.Name, fn.call))
	}

	return opts
}

func unary(fn func(any) (any, error)) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, errArgCount
		}

		return fn(params[0])
	}
}

func stringFn(fn func(string) string) func(params ...any) (any, error) {
	return unary(func(v any) (any, error) {
		return fn(Stringify(v)), nil
	})
}

func mathFn(fn func(float64) float64) func(params ...any) (any, error) {
	return unary(func(v any) (any, error) {
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T", errArgType, v)
		}

		return fn(f), nil
	})
}

func substring(params ...any) (any, error) {
	if len(params) < 2 || len(params) > 3 {
		return nil, errArgCount
	}

	runes := []rune(Stringify(params[0]))

	start, ok := toInt(params[1])
	if !ok {
		return nil, fmt.Errorf("%w: start must be a number", errArgType)
	}

	end := len(runes)

	if len(params) == 3 {
		if end, ok = toInt(params[2]); !ok {
			return nil, fmt.Errorf("%w: end must be a number", errArgType)
		}
	}

	start = min(max(start, 0), len(runes))
	end = min(max(end, start), len(runes))

	return string(runes[start:end]), nil
}

func replace(params ...any) (any, error) {
	if len(params) != 3 {
		return nil, errArgCount
	}

	return strings.ReplaceAll(Stringify(params[0]), Stringify(params[1]), Stringify(params[2])), nil
}

var dateTokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

func (e *Engine) formatDate(params ...any) (any, error) {
	if len(params) < 1 || len(params) > 2 {
		return nil, errArgCount
	}

	t, err := e.toTime(params[0])
	if err != nil {
		return nil, err
	}

	layout := time.RFC3339
	if len(params) == 2 {
		layout = dateTokens.Replace(Stringify(params[1]))
	}

	return t.Format(layout), nil
}

func (e *Engine) toTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.In(e.location), nil
	case string:
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", val, err)
		}

		return t.In(e.location), nil
	default:
		if ms, ok := toFloat(v); ok {
			return time.UnixMilli(int64(ms)).In(e.location), nil
		}

		return time.Time{}, fmt.Errorf("%w: %T is not a date", errArgType, v)
	}
}

func round(params ...any) (any, error) {
	if len(params) < 1 || len(params) > 2 {
		return nil, errArgCount
	}

	f, ok := toFloat(params[0])
	if !ok {
		return nil, fmt.Errorf("%w: %T", errArgType, params[0])
	}

	digits := 0
	if len(params) == 2 {
		if digits, ok = toInt(params[1]); !ok {
			return nil, fmt.Errorf("%w: digits must be a number", errArgType)
		}
	}

	pow := math.Pow(10, float64(digits))

	return math.Round(f*pow) / pow, nil
}

func extremum(better func(a, b float64) bool) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) == 1 {
			if items, ok := toSlice(params[0]); ok {
				params = items
			}
		}

		if len(params) == 0 {
			return nil, errArgCount
		}

		var best float64

		for i, p := range params {
			f, ok := toFloat(p)
			if !ok {
				return nil, fmt.Errorf("%w: %T", errArgType, p)
			}

			if i == 0 || better(f, best) {
				best = f
			}
		}

		return best, nil
	}
}

func first(params ...any) (any, error) {
	return unary(func(v any) (any, error) {
		items, ok := toSlice(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an array", errArgType, v)
		}

		if len(items) == 0 {
			return nil, nil
		}

		return items[0], nil
	})(params...)
}

func last(params ...any) (any, error) {
	return unary(func(v any) (any, error) {
		items, ok := toSlice(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an array", errArgType, v)
		}

		if len(items) == 0 {
			return nil, nil
		}

		return items[len(items)-1], nil
	})(params...)
}

func length(params ...any) (any, error) {
	return unary(func(v any) (any, error) {
		switch val := v.(type) {
		case nil:
			return 0, nil
		case string:
			return len([]rune(val)), nil
		}

		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return rv.Len(), nil
		default:
			return nil, fmt.Errorf("%w: %T has no length", errArgType, v)
		}
	})(params...)
}

func join(params ...any) (any, error) {
	if len(params) < 1 || len(params) > 2 {
		return nil, errArgCount
	}

	items, ok := toSlice(params[0])
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an array", errArgType, params[0])
	}

	sep := ","
	if len(params) == 2 {
		sep = Stringify(params[1])
	}

	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = Stringify(item)
	}

	return strings.Join(parts, sep), nil
}

func keys(params ...any) (any, error) {
	return unary(func(v any) (any, error) {
		m, ok := toMap(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an object", errArgType, v)
		}

		out := make([]any, 0, len(m))
		for _, k := range sortedKeys(m) {
			out = append(out, k)
		}

		return out, nil
	})(params...)
}

func values(params ...any) (any, error) {
	return unary(func(v any) (any, error) {
		m, ok := toMap(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an object", errArgType, v)
		}

		out := make([]any, 0, len(m))
		for _, k := range sortedKeys(m) {
			out = append(out, m[k])
		}

		return out, nil
	})(params...)
}

func toNumber(v any) (any, error) {
	if f, ok := toFloat(v); ok {
		return f, nil
	}

	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to number", val)
		}

		return f, nil
	case bool:
		if val {
			return 1.0, nil
		}

		return 0.0, nil
	case nil:
		return 0.0, nil
	default:
		return nil, fmt.Errorf("%w: %T", errArgType, v)
	}
}

func toBoolean(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return val != "", nil
		}

		return b, nil
	case nil:
		return false, nil
	}

	if f, ok := toFloat(v); ok {
		return f != 0, nil
	}

	return !isEmpty(v), nil
}

func toJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

func fromJSON(v any) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(Stringify(v)), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	return out, nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}

	return int(f), true
}

func toSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

func toMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	out := make(map[string]any, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}

	return out, true
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	slices.Sort(out)

	return out
}
