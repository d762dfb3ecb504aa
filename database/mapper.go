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
	"context"
	"fmt"
)

// RowMapper turns one row into a domain value. It must not do I/O.
type RowMapper[T any] func(Row) (T, error)

// MapOne maps a single row. ok is false when row is nil.
func MapOne[T any](row Row, mapper RowMapper[T]) (v T, ok bool, err error) {
	if row == nil {
		return v, false, nil
	}
	v, err = mapper(row)
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// MapAll maps rows in order and stops at the first failure.
func MapAll[T any](rows []Row, mapper RowMapper[T]) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		v, err := mapper(row)
		if err != nil {
			return nil, fmt.Errorf("map row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// GetAs runs Get and maps the result.
func GetAs[T any](ctx context.Context, ex Executor, mapper RowMapper[T], query string, params ...any) (T, bool, error) {
	row, err := ex.Get(ctx, query, params...)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return MapOne(row, mapper)
}

// AllAs runs All and maps every row.
func AllAs[T any](ctx context.Context, ex Executor, mapper RowMapper[T], query string, params ...any) ([]T, error) {
	rows, err := ex.All(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return MapAll(rows, mapper)
}
