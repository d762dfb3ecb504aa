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

package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
	"github.com/tomoncle/keysell/database"
)

var errUnhealthy = errors.New("database is unhealthy")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the database and print the result as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, _, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer closeQuietly(db)

		status := database.CheckHealth(cmd.Context(), db)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			return err
		}
		if !status.Healthy {
			return errUnhealthy
		}
		return nil
	},
}
