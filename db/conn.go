// Package db opens the backing database and runs migrations
package db

import (
	"fmt"

	"nimbus/account-api/internal/model"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New opens the database selected by db.driver and migrates the credential
// tables. TranslateError is on so unique-index violations surface as
// gorm.ErrDuplicatedKey regardless of driver
func New() (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}

	var (
		conn *gorm.DB
		err  error
	)

	switch driver := viper.GetString("db.driver"); driver {
	case "postgres":
		conn, err = gorm.Open(postgres.Open(viper.GetString("db.dsn")), cfg)
	case "sqlite":
		conn, err = gorm.Open(sqlite.Open(viper.GetString("db.dsn")), cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database, %w", err)
	}

	err = conn.AutoMigrate(&model.User{}, &model.Token{}, &model.ResendRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return conn, nil
}
