package model

import (
	"fmt"
	"regexp"
	"strings"
)

// regexPrefix marks a pattern written as a regular expression instead of a glob
const regexPrefix = "re:"

// InterestPattern is a compiled rule deciding whether a remote path is relevant.
// It is immutable once compiled and safe to share between goroutines.
type InterestPattern struct {
	source string
	expr   *regexp.Regexp
}

// String returns the pattern as configured
func (p *InterestPattern) String() string {
	return p.source
}

// Match reports whether the pattern matches path
func (p *InterestPattern) Match(path string) bool {
	return p.expr.MatchString(path)
}

// CompileInterestPattern compiles one configured pattern.
//
// Patterns prefixed with "re:" are regular expressions matched against the full
// path. Other patterns are globs: "*" and "?" never cross a "/", "**" does.
// A glob without any "/" is matched against the final path segment only, so
// "*.csv" selects every csv file whatever its directory.
func CompileInterestPattern(pattern string) (*InterestPattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	if strings.HasPrefix(pattern, regexPrefix) {
		expr, err := regexp.Compile(strings.TrimPrefix(pattern, regexPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
		}
		return &InterestPattern{source: pattern, expr: expr}, nil
	}

	expr, err := globToRegexp(pattern)
	if err != nil {
		return nil, err
	}
	return &InterestPattern{source: pattern, expr: expr}, nil
}

// CompileInterestPatterns compiles the whole configured set, failing on the first bad one
func CompileInterestPatterns(patterns []string) ([]*InterestPattern, error) {
	compiled := make([]*InterestPattern, 0, len(patterns))
	for _, p := range patterns {
		ip, err := CompileInterestPattern(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, ip)
	}
	return compiled, nil
}

// Matches reports whether path matches at least one pattern
func Matches(path string, patterns []*InterestPattern) bool {
	for _, p := range patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

func globToRegexp(glob string) (*regexp.Regexp, error) {
	var b strings.Builder

	if strings.Contains(glob, "/") {
		b.WriteString("^")
	} else {
		b.WriteString("(?:^|/)")
	}

	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: %q: unterminated character class", ErrInvalidPattern, glob)
			}
			class := glob[i+1 : i+1+end]
			if class == "" {
				return nil, fmt.Errorf("%w: %q: empty character class", ErrInvalidPattern, glob)
			}
			if class[0] == '!' {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")

	expr, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, glob, err)
	}
	return expr, nil
}
