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

package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSNDefaults(t *testing.T) {
	d := &MetadataStorePostgres{}
	d.setDefaults()
	assert.Equal(
		t,
		"host=localhost user=postgres password= dbname=herita port=5432 sslmode=disable TimeZone=UTC",
		d.buildDSN(),
	)
}

func TestBuildDSNOptions(t *testing.T) {
	d := &MetadataStorePostgres{}
	for _, opt := range []PostgresOptionFunc{
		WithHost("db.example.com"),
		WithPort(6543),
		WithUser("herita"),
		WithPassword("secret"),
		WithDatabase("registry"),
		WithSSLMode("require"),
		WithTimeZone("Europe/Rome"),
	} {
		opt(d)
	}
	d.setDefaults()
	assert.Equal(
		t,
		"host=db.example.com user=herita password=secret dbname=registry port=6543 sslmode=require TimeZone=Europe/Rome",
		d.buildDSN(),
	)
}

func TestBuildDSNExplicit(t *testing.T) {
	d := &MetadataStorePostgres{}
	WithDSN("  postgres://u:p@host/db  ")(d)
	WithHost("ignored")(d)
	d.setDefaults()
	assert.Equal(t, "postgres://u:p@host/db", d.buildDSN())
}
