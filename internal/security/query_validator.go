package security

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyQuery       = errors.New("query is empty")
	ErrMultipleQueries  = errors.New("multi-statement queries are not allowed")
	ErrNotSelect        = errors.New("only SELECT or WITH queries are allowed")
	ErrForbiddenKeyword = errors.New("forbidden keyword detected")
)

// CleanQuery strips trailing statement terminators, whitespace and comments
// so the query can be embedded as a subquery. Comments and semicolons inside
// the query body or inside quoted literals are left untouched.
func CleanQuery(query string) string {
	masked := mask(query)
	end := len(masked)
	for end > 0 && isTrailing(masked[end-1]) {
		end--
	}
	return strings.TrimLeft(query[:end], " \t\r\n\f")
}

func isTrailing(b byte) bool {
	return b == ';' || b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

// ValidateQuery accepts a single read-only statement:
//  1. It must start with SELECT or WITH.
//  2. It must not stack statements.
//  3. It must not contain DML, DDL or privilege keywords outside of quoted
//     literals and comments.
//
// Callers should pass the result of CleanQuery.
func ValidateQuery(query string) error {
	code := strings.ToUpper(strings.TrimSpace(mask(query)))
	if code == "" {
		return ErrEmptyQuery
	}

	if !startsWithWord(code, "SELECT") && !startsWithWord(code, "WITH") && !strings.HasPrefix(code, "(") {
		return ErrNotSelect
	}

	if strings.Contains(code, ";") {
		return ErrMultipleQueries
	}

	for _, word := range forbidden {
		if containsWord(code, word) {
			return fmt.Errorf("%w: %s", ErrForbiddenKeyword, word)
		}
	}
	return nil
}

var forbidden = []string{
	"DELETE", "DROP", "INSERT", "UPDATE", "MERGE", "ALTER", "TRUNCATE", "GRANT", "REVOKE",
	"CREATE", "CALL", "EXEC", "EXECUTE", "INTO", "LOCK", "COMMIT", "ROLLBACK",
}

func startsWithWord(s, word string) bool {
	return strings.HasPrefix(s, word) && (len(s) == len(word) || isBoundary(s[len(word)]))
}

// containsWord reports whether word occurs in s as a standalone token.
// s must already be upper-case.
func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i == -1 {
			return false
		}
		start := idx + i
		end := start + len(word)

		if (start == 0 || isBoundary(s[start-1])) && (end == len(s) || isBoundary(s[end])) {
			return true
		}
		idx = start + 1
	}
}

func isBoundary(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' ||
		b == '(' || b == ')' || b == ',' || b == '=' || b == ';' ||
		b == '<' || b == '>' || b == '`' || b == '.' ||
		b == '"' || b == '[' || b == ']'
}

// mask returns a copy of query of the same byte length with comments
// replaced by spaces and quoted literals and identifiers replaced by '_'.
func mask(query string) string {
	out := []byte(query)
	n := len(out)
	for i := 0; i < n; {
		c := out[i]
		switch {
		case c == '-' && i+1 < n && out[i+1] == '-':
			for i < n && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		case c == '/' && i+1 < n && out[i+1] == '*':
			j := strings.Index(query[i+2:], "*/")
			stop := n
			if j >= 0 {
				stop = i + 2 + j + 2
			}
			for ; i < stop; i++ {
				out[i] = ' '
			}
		case c == '\'' || c == '"' || c == '`':
			j := strings.IndexByte(query[i+1:], c)
			stop := n
			if j >= 0 {
				stop = i + 1 + j + 1
			}
			for ; i < stop; i++ {
				out[i] = '_'
			}
		default:
			i++
		}
	}
	return string(out)
}
