/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
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
	"database/sql"
	"fmt"
	"net/url"
	"os"

	"github.com/golang-migrate/migrate"
	"github.com/golang-migrate/migrate/database/postgres"
	_ "github.com/golang-migrate/migrate/source/file"
	dbconf "github.com/kthomas/go-db-config"

	"github.com/provideplatform/datapool/common"
)

const defaultMigrationsSource = "file://./ops/migrations"

func main() {
	cfg := dbconf.GetDBConfig()

	err := migrateUp(cfg)
	if err != nil {
		common.Log.Errorf("failed to migrate proof registry schema; %s", err.Error())
		os.Exit(1)
	}
}

// dsn returns the postgres connection string for the configured database
func dsn(cfg *dbconf.DBConfig) string {
	sslmode := cfg.DatabaseSSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf(
		"postgres://%s:%d/%s?user=%s&password=%s&sslmode=%s",
		cfg.DatabaseHost,
		cfg.DatabasePort,
		cfg.DatabaseName,
		cfg.DatabaseUser,
		url.QueryEscape(cfg.DatabasePassword),
		sslmode,
	)
}

func migrationsSource() string {
	if source := os.Getenv("DATABASE_MIGRATIONS_SOURCE"); source != "" {
		return source
	}
	return defaultMigrationsSource
}

func migrateUp(cfg *dbconf.DBConfig) error {
	db, err := sql.Open("postgres", dsn(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database %s; %s", cfg.DatabaseName, err.Error())
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to initialize migrations driver; %s", err.Error())
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsSource(), cfg.DatabaseName, driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations; %s", err.Error())
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations; %s", err.Error())
	}

	common.Log.Debugf("proof registry schema is up to date in database %s", cfg.DatabaseName)
	return nil
}
