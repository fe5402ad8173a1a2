package expression

import (
	"fmt"
	"strings"
)

// internalPrefix replaces the leading $ of context names, which expr does not accept in identifiers.
const internalPrefix = "__"

// contextNames are the $-variables an expression may reference.
var contextNames = []string{"node", "json", "now", "today", "env", "workflow", "execution", "vars"}

var (
	knownNames    = make(map[string]struct{}, len(contextNames))
	errorReplacer *strings.Replacer
)

func init() {
	pairs := make([]string, 0, 2*len(contextNames))

	for _, name := range contextNames {
		knownNames[name] = struct{}{}
		pairs = append(pairs, internalPrefix+name, "$"+name)
	}

	errorReplacer = strings.NewReplacer(pairs...)
}

// rewrite turns $name references outside string literals into internal identifiers.
func rewrite(src string) (string, error) {
	var out strings.Builder
	out.Grow(len(src) + 8)

	var quote byte

	for i := 0; i < len(src); i++ {
		c := src[i]

		if quote != 0 {
			out.WriteByte(c)

			switch {
			case c == '\\' && quote != '`' && i+1 < len(src):
				i++
				out.WriteByte(src[i])
			case c == quote:
				quote = 0
			}

			continue
		}

		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
			out.WriteByte(c)
		case c == '$':
			end := i + 1
			for end < len(src) && isIdentByte(src[end]) {
				end++
			}

			name := src[i+1 : end]
			if name == "" {
				out.WriteByte(c)

				continue
			}

			if _, ok := knownNames[name]; !ok {
				return "", fmt.Errorf("%w: $%s", ErrUnknownVariable, name)
			}

			out.WriteString(internalPrefix)
			out.WriteString(name)

			i = end - 1
		default:
			out.WriteByte(c)
		}
	}

	return out.String(), nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// publicError rewrites internal identifiers in an error message back to their $ form.
func publicError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()

	public := errorReplacer.Replace(msg)
	if public == msg {
		return err
	}

	return &rewrittenError{msg: public, err: err}
}

type rewrittenError struct {
	msg string
	err error
}

func (e *rewrittenError) Error() string { return e.msg }

func (e *rewrittenError) Unwrap() error { return e.err }
