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
	"fmt"

	"github.com/tomoncle/keysell/database"
)

type AddressRepository struct {
	baseRepository[Address]
}

func NewAddressRepository(db database.DataAccess) *AddressRepository {
	return &AddressRepository{baseRepository[Address]{
		db:      db,
		table:   "addresses",
		columns: "id, street, complement, zip_code, city, country_code",
		from:    "addresses",
		idCol:   "id",
		order:   "id ASC",
		sorts:   map[string]string{"id": "id", "city": "city", "zip_code": "zip_code"},
		mapper:  mapAddress,
	}}
}

func mapAddress(row database.Row) (Address, error) {
	return Address{
		ID:          row.Int64("id"),
		Street:      row.NullString("street"),
		Complement:  row.NullString("complement"),
		ZipCode:     row.String("zip_code"),
		City:        row.String("city"),
		CountryCode: row.String("country_code"),
	}, nil
}

// Create inserts a and sets its ID.
func (r *AddressRepository) Create(ctx context.Context, a *Address) error {
	return r.create(ctx, r.db, a)
}

func (r *AddressRepository) create(ctx context.Context, ex database.Executor, a *Address) error {
	if !a.IsValid() {
		return fmt.Errorf("address needs zip code, city and country code")
	}
	id, err := insertID(ctx, ex, r.db.Dialect(),
		"INSERT INTO addresses (street, complement, zip_code, city, country_code) VALUES (?, ?, ?, ?, ?)",
		a.Street, a.Complement, a.ZipCode, a.City, a.CountryCode)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// Update overwrites every column of the address and returns the stored row.
func (r *AddressRepository) Update(ctx context.Context, id int64, a *Address) (*Address, error) {
	if err := r.update(ctx, r.db, id, a); err != nil {
		return nil, err
	}
	return r.GetOne(ctx, id)
}

func (r *AddressRepository) update(ctx context.Context, ex database.Executor, id int64, a *Address) error {
	_, err := ex.Run(ctx,
		"UPDATE addresses SET street = ?, complement = ?, zip_code = ?, city = ?, country_code = ? WHERE id = ?",
		a.Street, a.Complement, a.ZipCode, a.City, a.CountryCode, id)
	return err
}

// save creates, updates or detaches the address referenced by a parent row
// and returns the id to store in its address_id column (0 for none).
func (r *AddressRepository) save(ctx context.Context, ex database.Executor, a *Address) (int64, error) {
	switch {
	case a.IsEmpty():
		return 0, nil
	case a.ID > 0:
		return a.ID, r.update(ctx, ex, a.ID, a)
	default:
		err := r.create(ctx, ex, a)
		return a.ID, err
	}
}
