package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const (
	driverName     = "postgres"
	connectTimeout = 5 * time.Second
	// invalid_catalog_name
	errCodeUnknownDatabase = "3D000"
)

// OpenDb connects to the database of the given DSN. With autoCreate, a missing
// database is created once before giving up.
func OpenDb(dsn string, autoCreate bool) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil && autoCreate && isUnknownDatabase(err) {
		if err = createDatabase(ctx, dsn); err == nil {
			err = db.PingContext(ctx)
		}
	}
	if err != nil {
		// nolint
		db.Close()
		return nil, fmt.Errorf("unable to establish connection with db: %w", err)
	}
	return db, nil
}

func isUnknownDatabase(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == errCodeUnknownDatabase
}

func createDatabase(ctx context.Context, dsn string) error {
	rootDSN, dbName, err := splitDatabaseName(dsn)
	if err != nil {
		return err
	}

	rootDB, err := sql.Open(driverName, rootDSN)
	if err != nil {
		return err
	}
	// nolint
	defer rootDB.Close()

	log.Infof("postgres database %s does not exist, creating it...", dbName)
	_, err = rootDB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName))
	return err
}

// splitDatabaseName returns the DSN pointing at the server default database
// along with the database name it originally referenced. Both the URL and the
// key/value DSN formats are accepted.
func splitDatabaseName(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", err
		}
		dbName := strings.TrimPrefix(u.Path, "/")
		if dbName == "" {
			return "", "", fmt.Errorf("missing database name in dsn")
		}
		u.Path = ""
		return u.String(), dbName, nil
	}

	var dbName string
	fields := strings.Fields(dsn)
	rootFields := make([]string, 0, len(fields))
	for _, field := range fields {
		if name, ok := strings.CutPrefix(field, "dbname="); ok {
			dbName = strings.Trim(name, "'")
			continue
		}
		rootFields = append(rootFields, field)
	}
	if dbName == "" {
		return "", "", fmt.Errorf("missing database name in dsn")
	}
	return strings.Join(rootFields, " "), dbName, nil
}
