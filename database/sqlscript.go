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
	"bufio"
	"fmt"
	"strings"
)

// Script annotations. A file without section markers is all "up".
//
//	-- +migrate Up
//	CREATE TABLE ...;
//	-- +migrate StatementBegin
//	CREATE TRIGGER ... BEGIN ...; END;
//	-- +migrate StatementEnd
//	-- +migrate Down
//	DROP TABLE ...;
const (
	markerPrefix   = "-- +migrate"
	markerUp       = "up"
	markerDown     = "down"
	markerStmtOpen = "statementbegin"
	markerStmtEnd  = "statementend"
)

// SQLScript is a parsed migration or seed file.
type SQLScript struct {
	Up   []string
	Down []string
}

// ParseSQLScript splits content into up and down statements. Outside a
// StatementBegin/End block a statement ends at a line ending in ';' and
// whole-line "--" comments are dropped; inside a block lines are kept
// verbatim so trigger and function bodies survive.
func ParseSQLScript(content string) (*SQLScript, error) {
	script := &SQLScript{}
	target := &script.Up
	var (
		current strings.Builder
		inBlock bool
		lineNo  int
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			*target = append(*target, stmt)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if marker, ok := parseMarker(line); ok {
			switch marker {
			case markerUp, markerDown:
				if inBlock {
					return nil, fmt.Errorf("line %d: section marker inside a statement block", lineNo)
				}
				flush()
				if marker == markerUp {
					target = &script.Up
				} else {
					target = &script.Down
				}
			case markerStmtOpen:
				if inBlock {
					return nil, fmt.Errorf("line %d: nested StatementBegin", lineNo)
				}
				flush()
				inBlock = true
			case markerStmtEnd:
				if !inBlock {
					return nil, fmt.Errorf("line %d: StatementEnd without StatementBegin", lineNo)
				}
				flush()
				inBlock = false
			default:
				return nil, fmt.Errorf("line %d: unknown annotation %q", lineNo, line)
			}
			continue
		}

		if inBlock {
			current.WriteString(raw)
			current.WriteString("\n")
			continue
		}
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString(" ")
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inBlock {
		return nil, fmt.Errorf("unterminated StatementBegin block")
	}
	flush()
	return script, nil
}

// SplitStatements returns the statements of a script that has no sections.
func SplitStatements(content string) ([]string, error) {
	script, err := ParseSQLScript(content)
	if err != nil {
		return nil, err
	}
	return append(script.Up, script.Down...), nil
}

func parseMarker(line string) (string, bool) {
	if !strings.HasPrefix(line, markerPrefix) {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, markerPrefix))), true
}

// Queries wraps parameterless statements.
func Queries(stmts []string) []Query {
	out := make([]Query, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, Query{SQL: s})
	}
	return out
}
