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

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tomoncle/keysell/database"
	"github.com/tomoncle/keysell/types"
	"github.com/uptrace/bun/dialect"
)

var errNoGeneratedID = errors.New("insert did not report a generated id")

// baseRepository implements CrudRepository and PageQueryRepository for one
// table given its SELECT shape and row mapper.
type baseRepository[T any] struct {
	db      database.DataAccess
	table   string
	columns string
	from    string
	idCol   string
	order   string
	sorts   map[string]string
	mapper  database.RowMapper[T]
}

var (
	_ CrudRepository[Address]    = (*baseRepository[Address])(nil)
	_ PageQueryRepository[Buyer] = (*baseRepository[Buyer])(nil)
)

func (r *baseRepository[T]) selectSQL() string {
	return "SELECT " + r.columns + " FROM " + r.from
}

func (r *baseRepository[T]) GetOne(ctx context.Context, id int64) (*T, error) {
	return r.getOne(ctx, r.db, id)
}

func (r *baseRepository[T]) getOne(ctx context.Context, ex database.Executor, id int64) (*T, error) {
	v, ok, err := database.GetAs(ctx, ex, r.mapper, r.selectSQL()+" WHERE "+r.idCol+" = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func (r *baseRepository[T]) GetAll(ctx context.Context) ([]*T, error) {
	items, err := database.AllAs(ctx, r.db, r.mapper, r.selectSQL()+" ORDER BY "+r.order)
	if err != nil {
		return nil, err
	}
	return pointers(items), nil
}

func (r *baseRepository[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	query, params := r.selectSQL(), []any(nil)
	if filter != nil && filter.Where != "" {
		query += " WHERE " + filter.Where
		params = filter.Params
	}
	items, err := database.AllAs(ctx, r.db, r.mapper, query+" ORDER BY "+r.order, params...)
	if err != nil {
		return nil, err
	}
	return pointers(items), nil
}

func (r *baseRepository[T]) Page(ctx context.Context, req *types.PageRequest) (*types.Pagination[T], error) {
	var (
		where  string
		params []any
	)
	if f := req.GetFilter(); f != nil && f.Where != "" {
		where = " WHERE " + f.Where
		params = f.Params
	}
	pagination := types.NewDefaultPagination[T](req.GetPage(), req.GetPageSize())
	row, err := r.db.Get(ctx, "SELECT COUNT(*) AS total FROM "+r.from+where, params...)
	if err != nil {
		return nil, err
	}
	total := row.Int64("total")
	if total == 0 {
		return pagination, nil
	}

	query := r.selectSQL() + where + req.OrderBy(r.sorts, r.order) + " LIMIT ? OFFSET ?"
	args := append(append([]any(nil), params...), req.GetPageSize(), req.GetOffset())
	items, err := database.AllAs(ctx, r.db, r.mapper, query, args...)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = pointers(items)
	return pagination, nil
}

func (r *baseRepository[T]) Delete(ctx context.Context, id int64) (bool, error) {
	if _, err := r.db.Run(ctx, "DELETE FROM "+r.table+" WHERE id = ?", id); err != nil {
		return false, err
	}
	row, err := r.db.Get(ctx, "SELECT COUNT(*) AS count FROM "+r.table+" WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	return row.Int64("count") == 0, nil
}

// insertID runs an INSERT and returns the generated id. PostgreSQL only
// reports it through RETURNING.
func insertID(ctx context.Context, ex database.Executor, d dialect.Name, query string, params ...any) (int64, error) {
	if d == dialect.PG {
		query += " RETURNING id"
	}
	res, err := ex.Run(ctx, query, params...)
	if err != nil {
		return 0, err
	}
	if !res.HasLastInsertID {
		return 0, errNoGeneratedID
	}
	return res.LastInsertID, nil
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}

func optTime(row database.Row, col string) *time.Time {
	if t, ok := row.Time(col); ok {
		return &t
	}
	return nil
}

func ids(rows []database.Row, col string) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		if !r.IsNull(col) {
			out = append(out, r.Int64(col))
		}
	}
	return out
}

// orNil turns zero ids into NULL.
func orNil(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
