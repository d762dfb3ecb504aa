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
	"time"

	"github.com/tomoncle/keysell/types"
)

type Address struct {
	ID          int64
	Street      *string
	Complement  *string
	ZipCode     string
	City        string
	CountryCode string
}

// IsEmpty reports whether no field that makes an address was filled in.
func (a *Address) IsEmpty() bool {
	return a == nil || (a.ZipCode == "" && a.City == "" && a.CountryCode == "" &&
		(a.Street == nil || *a.Street == "") && (a.Complement == nil || *a.Complement == ""))
}

// IsValid reports whether the required columns are present.
func (a *Address) IsValid() bool {
	return a != nil && a.ZipCode != "" && a.City != "" && a.CountryCode != ""
}

type Buyer struct {
	ID                int64
	UUID              string
	FirstName         string
	LastName          string
	Email             string
	Phone             *string
	Sex               *string
	PreferredLanguage *string
	Budget            float64
	BudgetCurrency    *string
	Address           *Address
	UserID            *int64
	CreatedBy         *int64
	CreatedAt         time.Time
	UpdatedBy         *int64
	UpdatedAt         *time.Time
}

type RealEstate struct {
	ID             int64
	Type           string
	Terraced       bool
	Surface        float64
	RoomCount      int64
	ShowerCount    *int64
	TerraceCount   *int64
	HasGarden      bool
	GardenSurface  *float64
	IsSecured      bool
	SecurityDetail *string
	FacadeCount    *int64
	Location       *string
	Price          float64
	PriceCurrency  string
	Status         *string
	Remark         *string
	Address        *Address
	// Owners are seller ids linked through real_estates_sellers.
	Owners    []int64
	CreatedBy *int64
	CreatedAt time.Time
	UpdatedBy *int64
	UpdatedAt *time.Time
}

type Task struct {
	ID           int64
	UUID         string
	Type         *int64
	Status       types.TaskStatus
	Title        string
	Description  *string
	Date         *time.Time
	Duration     *int64
	RealEstateID *int64
	Users        []int64
	CreatedBy    *int64
	CreatedAt    time.Time
	UpdatedBy    *int64
	UpdatedAt    *time.Time
}

// LabelValue is a select-list entry.
type LabelValue struct {
	Label string
	Value int64
}
