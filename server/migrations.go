package server

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/sightd/sightd/server/auth"
	"github.com/sightd/sightd/server/videojob"
	"gorm.io/gorm"
)

// Open or create the DB
func openDB(log logs.Log, config dbh.DBConfig) (*gorm.DB, error) {
	log.Infof("Opening DB (%v)", config.LogSafeDescription())
	return dbh.OpenDB(log, config, migrations(log), 0)
}

func migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx, auth.SchemaSQL))
	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx, videojob.SchemaSQL))

	return migs
}
