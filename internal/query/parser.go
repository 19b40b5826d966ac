package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is a fully parsed cortex query (spec.md §4.3).
type Query struct {
	Tag     string
	Prop    string
	By      string // secondary-index strategy name; "" if not given
	Limit   *int64
	MinTime *int64
	MaxTime *int64
	Valu    any  // nil unless HasValu
	HasValu bool
}

// Parse parses a cortex query string per spec.md §4.3's five-step grammar:
// split on '=' for the literal value, then '*' for by, '#' for limit, '@'
// for the time range, and finally ':' for tag/prop.
func Parse(raw string) (*Query, error) {
	left := raw
	q := &Query{}

	// 1. split on first '=' -> literal value
	if i := strings.IndexByte(left, '='); i >= 0 {
		rhs := strings.TrimSpace(left[i+1:])
		left = left[:i]
		valu, err := parseLiteral(rhs)
		if err != nil {
			return nil, fmt.Errorf("parsing query %q: bad literal: %w", raw, err)
		}
		q.Valu = valu
		q.HasValu = true
	}

	// 2. split left on first '*' -> by
	if i := strings.IndexByte(left, '*'); i >= 0 {
		q.By = strings.ToLower(strings.TrimSpace(left[i+1:]))
		left = left[:i]
	}

	// 3. split on first '#' -> limit
	if i := strings.IndexByte(left, '#'); i >= 0 {
		limStr := strings.TrimSpace(left[i+1:])
		left = left[:i]
		lim, err := parseIntLiteral(limStr)
		if err != nil {
			return nil, fmt.Errorf("parsing query %q: bad limit: %w", raw, err)
		}
		q.Limit = &lim
	}

	// 4. split on first '@' -> mintime[,maxtime]
	if i := strings.IndexByte(left, '@'); i >= 0 {
		timeStr := left[i+1:]
		left = left[:i]
		parts := strings.SplitN(timeStr, ",", 2)
		minT, err := parseIntLiteral(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("parsing query %q: bad mintime: %w", raw, err)
		}
		q.MinTime = &minT
		if len(parts) == 2 {
			maxT, err := parseIntLiteral(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("parsing query %q: bad maxtime: %w", raw, err)
			}
			q.MaxTime = &maxT
		}
	}

	// 5. remainder splits on first ':' -> tag, prop
	ci := strings.IndexByte(left, ':')
	if ci < 0 {
		return nil, fmt.Errorf("parsing query %q: missing tag:prop", raw)
	}
	q.Tag = strings.ToLower(strings.TrimSpace(left[:ci]))
	q.Prop = strings.ToLower(strings.TrimSpace(left[ci+1:]))
	if q.Tag == "" || q.Prop == "" {
		return nil, fmt.Errorf("parsing query %q: empty tag or prop", raw)
	}

	return q, nil
}

// parseIntLiteral parses a base-prefix-aware integer: 0x, 0o, 0b, else decimal.
func parseIntLiteral(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty integer")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base = 16
		s = s[2:]
	case strings.HasPrefix(s, "0o") || strings.HasPrefix(s, "0O"):
		base = 8
		s = s[2:]
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		base = 2
		s = s[2:]
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	if neg {
		v = -v
	}
	return v, nil
}

// parseLiteral parses the restricted RHS grammar: an integer, a
// double-quoted string, or a parenthesized comma-separated tuple of
// those. Anything else (function calls, bare identifiers, arbitrary
// expressions) is rejected.
func parseLiteral(s string) (any, error) {
	l := newLexer(s)
	v, err := parseLiteralValue(l)
	if err != nil {
		return nil, err
	}
	tok, err := l.Next()
	if err != nil {
		return nil, err
	}
	if tok.Type != TokenEOF {
		return nil, fmt.Errorf("unexpected trailing token %s at offset %d", tok.Type, tok.Pos)
	}
	return v, nil
}

func parseLiteralValue(l *lexer) (any, error) {
	tok, err := l.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case TokenNumber:
		return parseIntLiteral(tok.Text)
	case TokenString:
		return tok.Text, nil
	case TokenLParen:
		return parseTuple(l)
	default:
		return nil, fmt.Errorf("unexpected token %s at offset %d", tok.Type, tok.Pos)
	}
}

func parseTuple(l *lexer) ([]any, error) {
	var out []any
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenRParen {
			return out, nil
		}
		var v any
		switch tok.Type {
		case TokenNumber:
			v, err = parseIntLiteral(tok.Text)
		case TokenString:
			v = tok.Text
		default:
			return nil, fmt.Errorf("unexpected token %s in tuple at offset %d", tok.Type, tok.Pos)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		tok, err = l.Next()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenRParen:
			return out, nil
		case TokenComma:
			continue
		default:
			return nil, fmt.Errorf("expected ',' or ')' in tuple at offset %d", tok.Pos)
		}
	}
}

// Unparse reconstructs the canonical query string for q. For queries
// produced by Parse from canonical input (decimal integers, no
// unnecessary whitespace) Unparse(Parse(q)) == q, the round-trip
// property required by spec.md §8.
func Unparse(q *Query) string {
	var sb strings.Builder
	sb.WriteString(q.Tag)
	sb.WriteByte(':')
	sb.WriteString(q.Prop)

	if q.MinTime != nil {
		sb.WriteByte('@')
		sb.WriteString(strconv.FormatInt(*q.MinTime, 10))
		if q.MaxTime != nil {
			sb.WriteByte(',')
			sb.WriteString(strconv.FormatInt(*q.MaxTime, 10))
		}
	}
	if q.Limit != nil {
		sb.WriteByte('#')
		sb.WriteString(strconv.FormatInt(*q.Limit, 10))
	}
	if q.By != "" {
		sb.WriteByte('*')
		sb.WriteString(q.By)
	}
	if q.HasValu {
		sb.WriteByte('=')
		sb.WriteString(formatLiteral(q.Valu))
	}
	return sb.String()
}

func formatLiteral(v any) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		return `"` + strings.ReplaceAll(t, `"`, `\"`) + `"`
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatLiteral(e)
		}
		return "(" + strings.Join(parts, ",") + ")"
	default:
		return fmt.Sprintf("%v", t)
	}
}
