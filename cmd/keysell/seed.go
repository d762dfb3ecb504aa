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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tomoncle/keysell/database"
)

var (
	seedPath string
	seedEnv  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Execute the SQL data files for an environment",
	Long: `seed runs <path>/common/*.sql and then <path>/environments/<env>/*.sql,
each file in its own transaction, stopping at the first failure. Migrations
are not applied; run "keysell migrate up" first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, cfg, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer closeQuietly(db)

		if seedPath != "" {
			cfg.Seed.Filepath = seedPath
		}
		if seedEnv != "" {
			cfg.Seed.Environment = seedEnv
		}
		results, err := database.NewSeeder(db, &cfg.Seed, database.NewDefaultLogger()).Run(cmd.Context())
		for _, r := range results {
			status := "ok"
			if r.Err != nil {
				status = "failed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s (%d statements)\n", status, r.File, r.Statements)
		}
		return err
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPath, "path", "", "seed root directory, overrides DB_SEED_PATH")
	seedCmd.Flags().StringVar(&seedEnv, "env", "", "environment directory, overrides APP_ENV")
}
