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
	"context"

	"github.com/spf13/cobra"
	"github.com/tomoncle/keysell/database"
	"github.com/tomoncle/keysell/utils"
)

var (
	configPath   string
	databaseURL  string
	databaseFile string
	logLevel     string
	logFormat    string
	logFile      string
)

var rootCmd = &cobra.Command{
	Use:   "keysell",
	Short: "Manage the keysell agency database",
	Long: `keysell opens the agency database named by DATABASE_URL (MySQL or
PostgreSQL) or, when no URL is set, the embedded SQLite file DATABASE_FILE,
and runs migrations, seed files and health checks against it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		utils.SetConsoleOutput(cmd.ErrOrStderr())
		if logFormat != "" {
			utils.ConfigureConsoleLogFormat(logFormat)
		}
		if logFile != "" {
			utils.ConfigureFileLog(utils.FileLogConfig{
				Enabled:    true,
				Path:       logFile,
				MaxSizeMB:  100,
				MaxBackups: 5,
				MaxAgeDays: 30,
				Format:     "json",
			})
		}
		if logLevel != "" {
			utils.SetAllLoggersLevel(logLevel)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", utils.EnvDefaultString("KEYSELL_CONFIG", "configs/config.yaml"), "YAML config file")
	flags.StringVar(&databaseURL, "url", "", "database URL, overrides DATABASE_URL")
	flags.StringVar(&databaseFile, "file", "", "embedded database file, overrides DATABASE_FILE")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "console log format (text, json)")
	flags.StringVar(&logFile, "log-file", "", "also write JSON logs to this rotating file")

	rootCmd.AddCommand(migrateCmd, seedCmd, healthCmd)
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig() (*database.Config, error) {
	cfg, err := database.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if databaseURL != "" {
		cfg.Connection.URL = databaseURL
	}
	if databaseFile != "" {
		cfg.Connection.File = databaseFile
	}
	return cfg, cfg.Validate()
}

// openDatabase opens the configured backend without migrating it.
func openDatabase(ctx context.Context) (database.Database, *database.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(ctx, &cfg.Connection, database.NewDefaultLogger())
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

func closeQuietly(db database.Database) {
	if err := db.Close(); err != nil {
		database.NewDefaultLogger().Warn("close database", "error", err)
	}
}
