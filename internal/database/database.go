package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/karatcart/internal/models"
)

// Connect opens the database, creating it first when missing, and runs migrations.
func Connect(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if err := ensureDatabase(dsn); err != nil {
		return nil, fmt.Errorf("ensure database: %w", err)
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := conn.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn("failed to ensure uuid-ossp extension", zap.Error(err))
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return conn, nil
}

func migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.CacheEntry{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	return nil
}

func ensureDatabase(dsn string) error {
	dbName, masterDSN, ok, err := splitDSN(dsn)
	if err != nil || !ok {
		return err
	}

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}

// splitDSN returns the target database name and a DSN pointing at the
// postgres maintenance database. ok is false for key=value DSNs and DSNs
// without a database path, which are used as-is.
func splitDSN(dsn string) (dbName, masterDSN string, ok bool, err error) {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return "", "", false, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", "", false, err
	}

	dbName = strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return "", "", false, nil
	}

	parsed.Path = "/postgres"
	return dbName, parsed.String(), true, nil
}
