// Package search parses the filter bar of the resource summary page.
package search

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidQuery is wrapped by every parse/validation failure.
var ErrInvalidQuery = errors.New("invalid search query")

// SupportedKeys lists the filter keys that can narrow a resource summary.
var SupportedKeys = map[string]struct{}{
	"span.op":                         {},
	"span.domain":                     {},
	"span.group":                      {},
	"transaction":                     {},
	"transaction.method":              {},
	"file_extension":                  {},
	"resource.render_blocking_status": {},
	"release":                         {},
	"environment":                     {},
}

// ProfileKeys lists the filter keys the profiling service understands.
var ProfileKeys = map[string]struct{}{
	"android_api_level":      {},
	"device_classification":  {},
	"device_locale":          {},
	"device_manufacturer":    {},
	"device_model":           {},
	"device_os_build_number": {},
	"device_os_name":         {},
	"device_os_version":      {},
	"platform":               {},
	"transaction_name":       {},
	"version":                {},
}

// Filters maps a supported key to its single required value.
type Filters map[string]string

// Keys returns the filter keys in sorted order.
func (f Filters) Keys() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String renders filters back to query syntax, keys sorted.
func (f Filters) String() string {
	parts := make([]string, 0, len(f))
	for _, k := range f.Keys() {
		v := f[k]
		if strings.ContainsAny(v, " \t\"") {
			v = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
		}
		parts = append(parts, k+":"+v)
	}
	return strings.Join(parts, " ")
}

type term struct {
	negated bool
	key     string
	op      string
	value   string
	hasKey  bool
}

// ParseFilters parses `key:value` terms. Only equality on supported keys is
// allowed and each key may carry one value.
func ParseFilters(query string) (Filters, error) {
	return parseWithKeys(query, SupportedKeys)
}

// ParseProfileFilters is ParseFilters over the profiling key set.
func ParseProfileFilters(query string) (Filters, error) {
	return parseWithKeys(query, ProfileKeys)
}

func parseWithKeys(query string, keys map[string]struct{}) (Filters, error) {
	terms, err := tokenize(query)
	if err != nil {
		return nil, err
	}

	out := Filters{}
	for _, t := range terms {
		if !t.hasKey {
			return nil, fmt.Errorf("%w: Invalid query: Unknown filter", ErrInvalidQuery)
		}
		if t.negated || t.op != "" {
			return nil, fmt.Errorf("%w: Invalid query: Illegal operator", ErrInvalidQuery)
		}
		if _, ok := keys[t.key]; !ok {
			return nil, fmt.Errorf("%w: Invalid query: %s is not supported", ErrInvalidQuery, t.key)
		}
		if prev, ok := out[t.key]; ok && prev != t.value {
			return nil, fmt.Errorf("%w: Invalid query: Multiple filters for %s", ErrInvalidQuery, t.key)
		}
		out[t.key] = t.value
	}
	return out, nil
}

func tokenize(query string) ([]term, error) {
	var terms []term
	s := query
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return terms, nil
		}

		var t term
		if s[i] == '!' {
			t.negated = true
			i++
		}

		keyStart := i
		for i < len(s) && !isSpace(s[i]) && s[i] != ':' && s[i] != '"' {
			i++
		}
		if i < len(s) && s[i] == ':' {
			t.key = s[keyStart:i]
			t.hasKey = t.key != ""
			i++
			for _, op := range []string{">=", "<=", ">", "<"} {
				if strings.HasPrefix(s[i:], op) {
					t.op = op
					i += len(op)
					break
				}
			}
		} else {
			i = keyStart
		}

		val, next, err := readValue(s, i)
		if err != nil {
			return nil, err
		}
		t.value = val
		i = next
		terms = append(terms, t)
	}
}

func readValue(s string, i int) (string, int, error) {
	if i < len(s) && s[i] == '"' {
		start := i
		i++
		var b strings.Builder
		for i < len(s) {
			switch s[i] {
			case '\\':
				if i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
			case '"':
				return b.String(), i + 1, nil
			}
			b.WriteByte(s[i])
			i++
		}
		return "", 0, fmt.Errorf("%w: Parse error: quoted_value (column %d)", ErrInvalidQuery, start+1)
	}
	start := i
	for i < len(s) && !isSpace(s[i]) {
		i++
	}
	return s[start:i], i, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
