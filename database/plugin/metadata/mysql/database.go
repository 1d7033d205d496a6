// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/herita/database/plugin/metadata/internal/gormstore"
	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// mysqlErrUnknownDatabase is returned by the server when the requested
// database does not exist
const mysqlErrUnknownDatabase = 1049

// MetadataStoreMysql stores metadata in MySQL
type MetadataStoreMysql struct {
	*gormstore.Store
	logger   *slog.Logger
	host     string
	user     string
	password string
	database string
	sslMode  string
	timeZone string
	dsn      string
	port     uint
}

// New connects to MySQL, creating the database when it is missing, and
// migrates the schema
func New(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	d := &MetadataStoreMysql{}
	for _, opt := range opts {
		opt(d)
	}
	d.setDefaults()
	dsn, err := d.buildDSN()
	if err != nil {
		return nil, err
	}
	logDatabase := d.database
	if cfg, err := mysql.ParseDSN(dsn); err == nil {
		logDatabase = cfg.DBName
	}
	metadataDb, err := openDB(dsn)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) ||
			mysqlErr.Number != mysqlErrUnknownDatabase {
			return nil, err
		}
		created, createErr := ensureDatabaseExists(dsn)
		if createErr != nil {
			return nil, fmt.Errorf("create database: %w", createErr)
		}
		if !created {
			return nil, err
		}
		d.logger.Info(
			"created mysql database "+logDatabase,
			"component", "database",
		)
		metadataDb, err = openDB(dsn)
		if err != nil {
			return nil, err
		}
	}
	d.logger.Info(
		"connected to mysql metadata store",
		"component", "database",
		"host", d.host,
		"port", d.port,
		"database", logDatabase,
	)
	// Configure connection pool
	sqlDB, err := metadataDb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	store, err := gormstore.New(metadataDb, d.logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	d.Store = store
	return d, nil
}

func openDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(
		gormmysql.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
}

func (d *MetadataStoreMysql) setDefaults() {
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if d.host == "" {
		d.host = "localhost"
	}
	if d.port == 0 {
		d.port = 3306
	}
	if d.user == "" {
		d.user = "root"
	}
	if d.database == "" {
		d.database = "herita"
	}
}

// buildDSN returns the configured DSN, or one assembled from the individual
// connection options
func (d *MetadataStoreMysql) buildDSN() (string, error) {
	if dsn := strings.TrimSpace(d.dsn); dsn != "" {
		return dsn, nil
	}
	cfg := mysql.NewConfig()
	cfg.User = d.user
	cfg.Passwd = d.password
	cfg.Net = "tcp"
	cfg.Addr = d.host + ":" + strconv.FormatUint(uint64(d.port), 10)
	cfg.DBName = d.database
	cfg.ParseTime = true
	cfg.AllowNativePasswords = true
	if d.timeZone != "" {
		loc, err := time.LoadLocation(d.timeZone)
		if err != nil {
			return "", fmt.Errorf("invalid time zone %q: %w", d.timeZone, err)
		}
		cfg.Loc = loc
	}
	cfg.TLSConfig = d.sslMode
	return cfg.FormatDSN(), nil
}

// ensureDatabaseExists connects without selecting a database and creates the
// one named in dsn. It reports false when dsn names no database.
func ensureDatabaseExists(dsn string) (bool, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return false, err
	}
	dbName := cfg.DBName
	if dbName == "" {
		return false, nil
	}
	cfg.DBName = ""
	adminDb, err := openDB(cfg.FormatDSN())
	if err != nil {
		return false, err
	}
	sqlAdminDb, err := adminDb.DB()
	if err != nil {
		return false, err
	}
	defer sqlAdminDb.Close()
	quoted := strings.ReplaceAll(dbName, "`", "``")
	if result := adminDb.Exec("CREATE DATABASE IF NOT EXISTS `" + quoted + "`"); result.Error != nil {
		return false, result.Error
	}
	return true, nil
}

// Close closes the database connection
func (d *MetadataStoreMysql) Close() error {
	return d.CloseDB()
}
