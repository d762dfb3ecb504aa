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

	"github.com/google/uuid"
	"github.com/tomoncle/keysell/database"
)

const buyerColumns = `b.id, b.uuid, b.first_name, b.last_name, b.email, b.phone, b.sex,
	b.preferred_language, b.budget, b.budget_currency, b.user_id, b.created_by, b.created_at,
	b.updated_by, b.updated_at, a.id AS address_ref, a.street, a.complement, a.zip_code,
	a.city, a.country_code`

type BuyerRepository struct {
	baseRepository[Buyer]
	addresses *AddressRepository
}

func NewBuyerRepository(db database.DataAccess, addresses *AddressRepository) *BuyerRepository {
	return &BuyerRepository{
		baseRepository: baseRepository[Buyer]{
			db:      db,
			table:   "buyers",
			columns: buyerColumns,
			from:    "buyers b LEFT JOIN addresses a ON b.address_id = a.id",
			idCol:   "b.id",
			order:   "b.created_at ASC, b.id ASC",
			sorts: map[string]string{
				"id":         "b.id",
				"last_name":  "b.last_name",
				"first_name": "b.first_name",
				"email":      "b.email",
				"budget":     "b.budget",
				"created_at": "b.created_at",
				"city":       "a.city",
			},
			mapper: mapBuyer,
		},
		addresses: addresses,
	}
}

func mapBuyer(row database.Row) (Buyer, error) {
	b := Buyer{
		ID:                row.Int64("id"),
		UUID:              row.String("uuid"),
		FirstName:         row.String("first_name"),
		LastName:          row.String("last_name"),
		Email:             row.String("email"),
		Phone:             row.NullString("phone"),
		Sex:               row.NullString("sex"),
		PreferredLanguage: row.NullString("preferred_language"),
		Budget:            row.Float64("budget"),
		BudgetCurrency:    row.NullString("budget_currency"),
		UserID:            row.NullInt64("user_id"),
		CreatedBy:         row.NullInt64("created_by"),
		UpdatedBy:         row.NullInt64("updated_by"),
		UpdatedAt:         optTime(row, "updated_at"),
	}
	b.CreatedAt, _ = row.Time("created_at")
	if !row.IsNull("address_ref") {
		b.Address = &Address{
			ID:          row.Int64("address_ref"),
			Street:      row.NullString("street"),
			Complement:  row.NullString("complement"),
			ZipCode:     row.String("zip_code"),
			City:        row.String("city"),
			CountryCode: row.String("country_code"),
		}
	}
	return b, nil
}

// Create stores the buyer and its address in one transaction, assigns a
// fresh uuid and returns the stored row.
func (r *BuyerRepository) Create(ctx context.Context, b *Buyer) (*Buyer, error) {
	var created *Buyer
	err := r.db.RunInTx(ctx, func(ctx context.Context, tx database.Executor) error {
		addressID, err := r.addresses.save(ctx, tx, b.Address)
		if err != nil {
			return err
		}
		id, err := insertID(ctx, tx, r.db.Dialect(),
			`INSERT INTO buyers (uuid, first_name, last_name, email, phone, sex, preferred_language,
				budget, budget_currency, address_id, user_id, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), b.FirstName, b.LastName, b.Email, b.Phone, b.Sex, b.PreferredLanguage,
			b.Budget, b.BudgetCurrency, orNil(addressID), b.UserID, b.CreatedBy)
		if err != nil {
			return err
		}
		created, err = r.getOne(ctx, tx, id)
		return err
	})
	return created, err
}

// Update keeps the stored value of every nil optional field.
func (r *BuyerRepository) Update(ctx context.Context, id int64, b *Buyer) (*Buyer, error) {
	var updated *Buyer
	err := r.db.RunInTx(ctx, func(ctx context.Context, tx database.Executor) error {
		addressID, err := r.addresses.save(ctx, tx, b.Address)
		if err != nil {
			return err
		}
		_, err = tx.Run(ctx,
			`UPDATE buyers
			SET first_name = COALESCE(?, first_name),
				last_name = COALESCE(?, last_name),
				email = COALESCE(?, email),
				phone = COALESCE(?, phone),
				sex = COALESCE(?, sex),
				preferred_language = COALESCE(?, preferred_language),
				budget_currency = COALESCE(?, budget_currency),
				address_id = COALESCE(?, address_id),
				updated_by = ?
			WHERE id = ?`,
			emptyToNil(b.FirstName), emptyToNil(b.LastName), emptyToNil(b.Email), b.Phone, b.Sex,
			b.PreferredLanguage, b.BudgetCurrency, orNil(addressID), b.UpdatedBy, id)
		if err != nil {
			return err
		}
		updated, err = r.getOne(ctx, tx, id)
		return err
	})
	return updated, err
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
