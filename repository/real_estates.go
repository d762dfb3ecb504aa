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

	"github.com/tomoncle/keysell/database"
)

const realEstateColumns = `re.id, re.type, re.terraced, re.surface, re.room_count, re.shower_count,
	re.terrace_count, re.has_garden, re.garden_surface, re.is_secured, re.security_detail,
	re.facade_count, re.location, re.price, re.price_currency, re.status, re.remark,
	re.created_by, re.created_at, re.updated_by, re.updated_at, a.id AS address_ref,
	a.street, a.complement, a.zip_code, a.city, a.country_code`

const insertOwnerPrefix = "INSERT INTO real_estates_sellers (real_estate_id, seller_id)"

type RealEstateRepository struct {
	baseRepository[RealEstate]
	addresses *AddressRepository
}

func NewRealEstateRepository(db database.DataAccess, addresses *AddressRepository) *RealEstateRepository {
	return &RealEstateRepository{
		baseRepository: baseRepository[RealEstate]{
			db:      db,
			table:   "real_estates",
			columns: realEstateColumns,
			from:    "real_estates re LEFT JOIN addresses a ON re.address_id = a.id",
			idCol:   "re.id",
			order:   "re.created_at ASC, re.id ASC",
			sorts: map[string]string{
				"id":         "re.id",
				"price":      "re.price",
				"surface":    "re.surface",
				"created_at": "re.created_at",
				"city":       "a.city",
			},
			mapper: mapRealEstate,
		},
		addresses: addresses,
	}
}

func mapRealEstate(row database.Row) (RealEstate, error) {
	re := RealEstate{
		ID:             row.Int64("id"),
		Type:           row.String("type"),
		Terraced:       row.Bool("terraced"),
		Surface:        row.Float64("surface"),
		RoomCount:      row.Int64("room_count"),
		ShowerCount:    row.NullInt64("shower_count"),
		TerraceCount:   row.NullInt64("terrace_count"),
		HasGarden:      row.Bool("has_garden"),
		GardenSurface:  row.NullFloat64("garden_surface"),
		IsSecured:      row.Bool("is_secured"),
		SecurityDetail: row.NullString("security_detail"),
		FacadeCount:    row.NullInt64("facade_count"),
		Location:       row.NullString("location"),
		Price:          row.Float64("price"),
		PriceCurrency:  row.String("price_currency"),
		Status:         row.NullString("status"),
		Remark:         row.NullString("remark"),
		CreatedBy:      row.NullInt64("created_by"),
		UpdatedBy:      row.NullInt64("updated_by"),
		UpdatedAt:      optTime(row, "updated_at"),
	}
	if re.Type == "" {
		re.Type = "NONE"
	}
	re.CreatedAt, _ = row.Time("created_at")
	if !row.IsNull("address_ref") {
		re.Address = &Address{
			ID:          row.Int64("address_ref"),
			Street:      row.NullString("street"),
			Complement:  row.NullString("complement"),
			ZipCode:     row.String("zip_code"),
			City:        row.String("city"),
			CountryCode: row.String("country_code"),
		}
	}
	return re, nil
}

// GetOne returns the real estate with its address and owners.
func (r *RealEstateRepository) GetOne(ctx context.Context, id int64) (*RealEstate, error) {
	return r.load(ctx, r.db, id)
}

func (r *RealEstateRepository) load(ctx context.Context, ex database.Executor, id int64) (*RealEstate, error) {
	re, err := r.getOne(ctx, ex, id)
	if err != nil || re == nil {
		return re, err
	}
	re.Owners, err = r.owners(ctx, ex, id)
	if err != nil {
		return nil, err
	}
	return re, nil
}

// Create stores the real estate, its address and its owner links in one
// transaction.
func (r *RealEstateRepository) Create(ctx context.Context, re *RealEstate) (*RealEstate, error) {
	var created *RealEstate
	err := r.db.RunInTx(ctx, func(ctx context.Context, tx database.Executor) error {
		addressID, err := r.addresses.save(ctx, tx, re.Address)
		if err != nil {
			return err
		}
		id, err := insertID(ctx, tx, r.db.Dialect(),
			`INSERT INTO real_estates (type, terraced, surface, room_count, shower_count, terrace_count,
				has_garden, garden_surface, is_secured, security_detail, facade_count, location,
				price, price_currency, status, remark, address_id, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			re.Type, re.Terraced, re.Surface, re.RoomCount, re.ShowerCount, re.TerraceCount,
			re.HasGarden, re.GardenSurface, re.IsSecured, re.SecurityDetail, re.FacadeCount, re.Location,
			re.Price, re.PriceCurrency, re.Status, re.Remark, orNil(addressID), re.CreatedBy)
		if err != nil {
			return err
		}
		if _, err := tx.BatchInsert(ctx, insertOwnerPrefix, ownerRows(id, re.Owners)); err != nil {
			return err
		}
		created, err = r.load(ctx, tx, id)
		return err
	})
	return created, err
}

// SetOwners replaces the owner links of a real estate.
func (r *RealEstateRepository) SetOwners(ctx context.Context, id int64, sellerIDs []int64) error {
	return r.db.RunInTx(ctx, func(ctx context.Context, tx database.Executor) error {
		if _, err := tx.Run(ctx, "DELETE FROM real_estates_sellers WHERE real_estate_id = ?", id); err != nil {
			return err
		}
		_, err := tx.BatchInsert(ctx, insertOwnerPrefix, ownerRows(id, sellerIDs))
		return err
	})
}

// AddOwners links additional sellers and returns how many links were
// written. Either every link is written or none.
func (r *RealEstateRepository) AddOwners(ctx context.Context, id int64, sellerIDs []int64) (int64, error) {
	return r.db.BatchInsert(ctx, insertOwnerPrefix, ownerRows(id, sellerIDs))
}

// Owners lists the seller ids linked to a real estate.
func (r *RealEstateRepository) Owners(ctx context.Context, id int64) ([]int64, error) {
	return r.owners(ctx, r.db, id)
}

func (r *RealEstateRepository) owners(ctx context.Context, ex database.Executor, id int64) ([]int64, error) {
	rows, err := ex.All(ctx,
		"SELECT seller_id FROM real_estates_sellers WHERE real_estate_id = ? ORDER BY seller_id", id)
	if err != nil {
		return nil, err
	}
	return ids(rows, "seller_id"), nil
}

// UpdateStatus sets the sale status; remark may be nil.
func (r *RealEstateRepository) UpdateStatus(ctx context.Context, id int64, status string, remark *string, updatedBy *int64) error {
	_, err := r.db.Run(ctx,
		"UPDATE real_estates SET status = ?, status_remark = ?, updated_by = ? WHERE id = ?",
		status, remark, updatedBy, id)
	return err
}

// FindAllOwners lists sellers as select-list entries ordered by name.
func (r *RealEstateRepository) FindAllOwners(ctx context.Context) ([]LabelValue, error) {
	return database.AllAs(ctx, r.db, mapLabelValue,
		"SELECT id AS value, last_name, first_name FROM sellers ORDER BY last_name, first_name")
}

func mapLabelValue(row database.Row) (LabelValue, error) {
	label := row.String("label")
	if label == "" {
		label = row.String("last_name") + " " + row.String("first_name")
	}
	return LabelValue{Label: label, Value: row.Int64("value")}, nil
}

func ownerRows(realEstateID int64, sellerIDs []int64) [][]any {
	rows := make([][]any, 0, len(sellerIDs))
	for _, s := range sellerIDs {
		rows = append(rows, []any{realEstateID, s})
	}
	return rows
}
