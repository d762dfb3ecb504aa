/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/uptrace/bun/dialect"
)

type undefined struct{}

// Undefined marks a parameter whose value is absent. It is bound as NULL.
var Undefined = undefined{}

// NormalizeParams returns a copy of params in which every absent value
// (untyped nil, typed nil pointer/map/slice/func/chan/interface, Undefined)
// is replaced by an untyped nil so the driver binds SQL NULL. The input
// slice is left untouched.
func NormalizeParams(params []any) []any {
	out := make([]any, len(params))
	for i, p := range params {
		if isAbsent(p) {
			out[i] = nil
			continue
		}
		out[i] = p
	}
	return out
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(undefined); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		// []byte{} is an empty blob, not NULL; only the nil slice is absent.
		return rv.IsNil()
	}
	return false
}

// CountPlaceholders counts the '?' markers of query that sit outside quoted
// literals, quoted identifiers and comments, as dialect d parses them.
func CountPlaceholders(d dialect.Name, query string) int {
	n := 0
	scanPlaceholders(d, query, func(int) { n++ })
	return n
}

// Rebind rewrites the '?' markers of query into the bind syntax of dialect
// d. Only PostgreSQL differs: markers become $1, $2, ... in order. Markers
// inside literals and comments are left alone.
func Rebind(d dialect.Name, query string) string {
	if d != dialect.PG {
		return query
	}
	var b strings.Builder
	last, n := 0, 0
	scanPlaceholders(d, query, func(pos int) {
		n++
		b.WriteString(query[last:pos])
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
		last = pos + 1
	})
	if n == 0 {
		return query
	}
	b.WriteString(query[last:])
	return b.String()
}

// scanPlaceholders calls fn with the offset of every bind marker in query.
func scanPlaceholders(d dialect.Name, query string, fn func(pos int)) {
	// only MySQL treats a backslash inside a literal as an escape
	backslash := d == dialect.MySQL
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case '\'', '"', '`':
			i = skipQuoted(query, i, c, backslash)
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				for i < len(query) && query[i] != '\n' {
					i++
				}
			}
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				end := strings.Index(query[i+2:], "*/")
				if end < 0 {
					return
				}
				i += end + 3
			}
		case '?':
			fn(i)
		}
	}
}

// skipQuoted returns the index of the closing quote that matches the one at
// start. Doubled quotes stay inside the literal, and so do backslash escapes
// when backslash is set.
func skipQuoted(s string, start int, q byte, backslash bool) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if backslash && q != '`' {
				i++
			}
		case q:
			if i+1 < len(s) && s[i+1] == q {
				i++
				continue
			}
			return i
		}
	}
	return len(s)
}

// prepareParams normalizes params and checks them against the statement's
// placeholders.
func prepareParams(op string, d dialect.Name, query string, params []any) ([]any, error) {
	if want := CountPlaceholders(d, query); want != len(params) {
		return nil, queryErrorf(op, "statement has %d placeholders but %d params were given", want, len(params))
	}
	return NormalizeParams(params), nil
}
