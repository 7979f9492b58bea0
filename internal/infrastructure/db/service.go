package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/binaryplan/binaryd/internal/core/domain"
	"github.com/binaryplan/binaryd/internal/core/ports"
	badgerdb "github.com/binaryplan/binaryd/internal/infrastructure/db/badger"
	pgdb "github.com/binaryplan/binaryd/internal/infrastructure/db/postgres"
	sqlitedb "github.com/binaryplan/binaryd/internal/infrastructure/db/sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed sqlite/migration/*
var migrations embed.FS

//go:embed postgres/migration/*
var pgMigration embed.FS

var (
	accountStoreTypes = map[string]func(...interface{}) (domain.AccountRepository, error){
		"badger":   badgerdb.NewAccountRepository,
		"sqlite":   sqlitedb.NewAccountRepository,
		"postgres": pgdb.NewAccountRepository,
	}
	settlementStoreTypes = map[string]func(...interface{}) (domain.SettlementRepository, error){
		"badger":   badgerdb.NewSettlementRepository,
		"sqlite":   sqlitedb.NewSettlementRepository,
		"postgres": pgdb.NewSettlementRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	DataStoreType   string
	DataStoreConfig []interface{}
}

type service struct {
	accountStore    domain.AccountRepository
	settlementStore domain.SettlementRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	accountStoreFactory, ok := accountStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}
	settlementStoreFactory, ok := settlementStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	var accountStore domain.AccountRepository
	var settlementStore domain.SettlementRepository
	var err error

	switch config.DataStoreType {
	case "badger":
		accountStore, err = accountStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open account store: %s", err)
		}
		settlementStore, err = settlementStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open settlement store: %s", err)
		}

	case "postgres":
		if len(config.DataStoreConfig) != 2 {
			return nil, fmt.Errorf("invalid data store config for postgres")
		}

		dsn, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid DSN for postgres")
		}

		autoCreate, ok := config.DataStoreConfig[1].(bool)
		if !ok {
			return nil, fmt.Errorf("invalid autocreate flag for postgres")
		}

		db, err := pgdb.OpenDb(dsn, autoCreate)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres db: %s", err)
		}

		pgDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres migration driver: %s", err)
		}
		if err := runMigrations(pgMigration, "postgres/migration", "postgres", pgDriver); err != nil {
			return nil, err
		}

		if accountStore, settlementStore, err = openSqlStores(
			db, accountStoreFactory, settlementStoreFactory,
		); err != nil {
			return nil, err
		}

	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config")
		}

		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		dbFile := filepath.Join(baseDir, sqliteDbFile)
		db, err := sqlitedb.OpenDb(dbFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init sqlite migration driver: %s", err)
		}
		if err := runMigrations(migrations, "sqlite/migration", "binarydb", driver); err != nil {
			return nil, err
		}

		if accountStore, settlementStore, err = openSqlStores(
			db, accountStoreFactory, settlementStoreFactory,
		); err != nil {
			return nil, err
		}
	}

	log.Debugf("opened %s repo manager", config.DataStoreType)

	return &service{
		accountStore:    accountStore,
		settlementStore: settlementStore,
	}, nil
}

func (s *service) Accounts() domain.AccountRepository {
	return s.accountStore
}

func (s *service) Settlements() domain.SettlementRepository {
	return s.settlementStore
}

func (s *service) Close() {
	s.accountStore.Close()
	s.settlementStore.Close()
}

// runMigrations applies the embedded migrations found under dir, if any is
// pending.
func runMigrations(fsys embed.FS, dir, dbName string, driver database.Driver) error {
	source, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to embed %s migrations: %s", dbName, err)
	}
	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return fmt.Errorf("failed to create %s migration instance: %s", dbName, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run %s migrations: %s", dbName, err)
	}
	return nil
}

func openSqlStores(
	db *sql.DB,
	accountStoreFactory func(...interface{}) (domain.AccountRepository, error),
	settlementStoreFactory func(...interface{}) (domain.SettlementRepository, error),
) (domain.AccountRepository, domain.SettlementRepository, error) {
	accountStore, err := accountStoreFactory(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open account store: %s", err)
	}
	settlementStore, err := settlementStoreFactory(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open settlement store: %s", err)
	}
	return accountStore, settlementStore, nil
}
