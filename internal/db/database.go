package db

import (
	"database/sql"
	"fmt"

	gorp "github.com/go-gorp/gorp/v3"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/icao-pkd/pkd/internal/log"
)

// NewDbMap opens dsn with dialectName's driver and builds the root gorp
// mapping object, exactly as the teacher's NewDbMap does — minus the
// teacher's fixed initTables call, since our table set is registered by
// internal/repository against the returned DbMap (repository.RegisterTables
// makes one AddTableWithName call per row model, in a single function
// like the teacher's initTables).
func NewDbMap(dialectName DialectName, dsn string, logger log.Logger) (*gorp.DbMap, error) {
	driver, err := driverForDialectName(dialectName)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging %s database: %w", driver, err)
	}

	dialect, ok := dialectMap[driver]
	if !ok {
		return nil, fmt.Errorf("no gorp dialect registered for driver %q", driver)
	}

	logger.Info(fmt.Sprintf("connected to %s database", driver))

	return &gorp.DbMap{Db: sqlDB, Dialect: dialect, TypeConverter: PKDTypeConverter{}}, nil
}
