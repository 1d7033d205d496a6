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
package metadata

import (
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/herita/database/models"
	"github.com/blinklabs-io/herita/database/plugin/metadata/mysql"
	"github.com/blinklabs-io/herita/database/plugin/metadata/postgres"
	"github.com/blinklabs-io/herita/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/herita/database/types"
	"gorm.io/gorm"
)

const (
	BackendSqlite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMysql    = "mysql"

	DefaultBackend = BackendSqlite
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Certifications
	AddCertification(*models.Certification, types.Txn) error
	UpdateCertification(*models.Certification, types.Txn) error
	GetCertification(uint64, types.Txn) (*models.Certification, error)
	GetCertifications(types.Txn) ([]models.Certification, error)
	AddCertificationTransfer(*models.CertificationTransfer, types.Txn) error
	GetCertificationTransfers(types.Txn) ([]models.CertificationTransfer, error)
	GetCertificationTransfersByToken(
		uint64, // tokenId
		types.Txn,
	) ([]models.CertificationTransfer, error)

	// Registry state
	GetRegistryState(types.Txn) (*models.RegistryState, error)
	SetRegistryState(*models.RegistryState, types.Txn) error
}

// Connection holds the individual connection settings for the network
// backends. They are ignored when a DSN is given.
type Connection struct {
	Host     string
	User     string
	Password string
	Database string
	SSLMode  string
	TimeZone string
	Port     uint
}

type Config struct {
	Logger *slog.Logger
	// Backend is one of sqlite, postgres or mysql. Empty selects sqlite.
	Backend string
	// DataDir holds the sqlite files. An empty value keeps them in memory.
	DataDir    string
	DSN        string
	Connection Connection
}

// New returns a metadata store for the configured backend
func New(cfg Config) (MetadataStore, error) {
	switch cfg.Backend {
	case "", BackendSqlite:
		return sqlite.New(
			sqlite.WithDataDir(cfg.DataDir),
			sqlite.WithLogger(cfg.Logger),
		)
	case BackendPostgres:
		conn := cfg.Connection
		return postgres.New(
			postgres.WithDSN(cfg.DSN),
			postgres.WithHost(conn.Host),
			postgres.WithPort(conn.Port),
			postgres.WithUser(conn.User),
			postgres.WithPassword(conn.Password),
			postgres.WithDatabase(conn.Database),
			postgres.WithSSLMode(conn.SSLMode),
			postgres.WithTimeZone(conn.TimeZone),
			postgres.WithLogger(cfg.Logger),
		)
	case BackendMysql:
		conn := cfg.Connection
		return mysql.New(
			mysql.WithDSN(cfg.DSN),
			mysql.WithHost(conn.Host),
			mysql.WithPort(conn.Port),
			mysql.WithUser(conn.User),
			mysql.WithPassword(conn.Password),
			mysql.WithDatabase(conn.Database),
			mysql.WithSSLMode(conn.SSLMode),
			mysql.WithTimeZone(conn.TimeZone),
			mysql.WithLogger(cfg.Logger),
		)
	default:
		return nil, fmt.Errorf("unknown metadata backend: %s", cfg.Backend)
	}
}
