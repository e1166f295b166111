package twofactor

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// The production schema lives in the goose migrations and targets postgres;
// tests recreate the two tables this package touches in sqlite dialect.
var testSchema = []string{
	`CREATE TABLE two_factor_profiles (
		id text PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		user_id text NOT NULL UNIQUE,
		enabled boolean NOT NULL DEFAULT false,
		encrypted_secret text,
		enabled_at datetime,
		last_authenticated_at datetime,
		recovery_code_hash varchar(128),
		recovery_code_generated_at datetime,
		trusted_ip varchar(45),
		trusted_fingerprint varchar(64),
		trusted_until datetime,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE trusted_devices (
		id text PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
		user_id text NOT NULL,
		fingerprint varchar(64) NOT NULL,
		ip_address varchar(45) NOT NULL,
		user_agent text,
		created_at datetime,
		expires_at datetime NOT NULL,
		last_used_at datetime,
		UNIQUE (user_id, fingerprint)
	)`,
}

// openTestDB returns a fresh in-memory database. Each call gets its own
// named shared-cache database so gorm's connection pool sees one schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:twofactor_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	for _, ddl := range testSchema {
		require.NoError(t, db.Exec(ddl).Error)
	}

	return db
}
