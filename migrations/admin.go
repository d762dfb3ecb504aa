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

package migrations

import (
	"context"
	"time"

	"github.com/tomoncle/keysell/database"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminUUID     = "fa2e07d2-8560-4788-ae12-3afc0037223a"
	AdminUsername = "admin"
	AdminEmail    = "admin@example.com"
)

// seedAdminUser creates the administrator account. Without a password the
// account is created inactive and cannot log in until one is set.
func seedAdminUser(password string) database.MigrationItem {
	return database.MigrationItem{
		Version:     "0002",
		Name:        "seed_admin_user",
		Description: "seed admin user",
		Up: func(ctx context.Context, db database.Executor) ([]database.Query, error) {
			row, err := db.Get(ctx, "SELECT id FROM users WHERE username = ?", AdminUsername)
			if err != nil {
				return nil, err
			}
			if row != nil {
				return nil, nil
			}

			var hash any = database.Undefined
			active := false
			if password != "" {
				b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
				if err != nil {
					return nil, err
				}
				hash, active = string(b), true
			}
			return []database.Query{database.Q(
				`INSERT INTO users (uuid, username, email, password, first_name, last_name, sex, role, is_active, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				AdminUUID, AdminUsername, AdminEmail, hash,
				"Administrator", "System", "M", "ADMIN", active, time.Now().UTC(),
			)}, nil
		},
		Down: func(context.Context, database.Executor) ([]database.Query, error) {
			return []database.Query{database.Q("DELETE FROM users WHERE uuid = ?", AdminUUID)}, nil
		},
	}
}
