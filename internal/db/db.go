package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects gorm to the local state database.
// driver is "sqlite" (dsn is a file path or sqlite URI) or "mysql".
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch strings.ToLower(driver) {
	case "", "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite: empty dsn")
		}
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
				return nil, fmt.Errorf("create state dir: %w", err)
			}
		}
		return gorm.Open(gormsqlite.Open(dsn), cfg)
	case "mysql":
		// DSN demo: app:apppass@tcp(127.0.0.1:3306)/pantry?charset=utf8mb4&parseTime=true&loc=Local
		return gorm.Open(mysql.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported state driver %q", driver)
	}
}
