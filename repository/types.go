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

	"github.com/tomoncle/keysell/types"
)

// CrudRepository defines the read and delete operations shared by every
// table-backed repository.
type CrudRepository[T any] interface {
	// GetOne returns nil when no row has the id.
	GetOne(ctx context.Context, id int64) (*T, error)

	GetAll(ctx context.Context) ([]*T, error)

	// Delete reports whether the row is gone afterwards.
	Delete(ctx context.Context, id int64) (bool, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}
