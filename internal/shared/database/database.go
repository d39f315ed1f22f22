package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// pure-Go sqlite driver registered as "sqlite"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB wraps both GORM and sql.DB
type DB struct {
	*sql.DB
	GORM   *gorm.DB
	Driver string
}

// Options tunes the connection
type Options struct {
	LogLevel     logger.LogLevel
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects with the given driver (postgres or sqlite)
func Open(driver, dsn string, opts Options) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		driver = DriverPostgres
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(opts.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	switch driver {
	case DriverSQLite:
		// a single connection keeps shared in-memory databases alive and avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	default:
		maxOpen, maxIdle := opts.MaxOpenConns, opts.MaxIdleConns
		if maxOpen == 0 {
			maxOpen = 25
		}
		if maxIdle == 0 {
			maxIdle = 5
		}
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxIdle)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	log.Info().Str("driver", driver).Msg("✅ Database connected (GORM)!")
	return &DB{DB: sqlDB, GORM: gormDB, Driver: driver}, nil
}

// NewDB connects or exits the process, for cmd entrypoints
func NewDB(driver, dsn string) *DB {
	db, err := Open(driver, dsn, Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to open database")
	}
	return db
}

// OpenMemory opens a private in-memory sqlite database named name
func OpenMemory(name string) (*DB, error) {
	return Open(DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), Options{LogLevel: logger.Silent})
}

func (db *DB) Close() error {
	log.Info().Msg("🔌 Closing database connection...")
	return db.DB.Close()
}
