// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package connectors

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/configs"
)

// DatabaseConnector hands out gorm handles for the embedded metadata
// database. Session metadata is small and local; sqlite is sufficient.
type DatabaseConnector interface {
	DB(ctx context.Context) *gorm.DB
	Migrate(models ...interface{}) error
	Close() error
}

type sqliteConnector struct {
	db     *gorm.DB
	logger commons.Logger
}

func NewDatabaseConnector(cfg configs.DatabaseConfig, logger commons.Logger) (DatabaseConnector, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database %s: %w", cfg.Path, err)
	}
	return &sqliteConnector{db: db, logger: logger}, nil
}

func (c *sqliteConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *sqliteConnector) Migrate(models ...interface{}) error {
	return c.db.AutoMigrate(models...)
}

func (c *sqliteConnector) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
