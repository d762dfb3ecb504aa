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

import "github.com/tomoncle/keysell/database"

// Repositories groups the repositories sharing one DataAccess.
type Repositories struct {
	Addresses   *AddressRepository
	Buyers      *BuyerRepository
	RealEstates *RealEstateRepository
	Tasks       *TaskRepository
}

func New(db database.DataAccess) *Repositories {
	addresses := NewAddressRepository(db)
	return &Repositories{
		Addresses:   addresses,
		Buyers:      NewBuyerRepository(db, addresses),
		RealEstates: NewRealEstateRepository(db, addresses),
		Tasks:       NewTaskRepository(db),
	}
}
