// Package sqlstore keeps slots in a gorm table, on sqlite by default or mysql.
package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/pantry-assistant/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type KV struct {
	Key       string    `gorm:"primaryKey;type:varchar(128)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (KV) TableName() string { return "kv_slots" }

type Repo struct {
	db *gorm.DB
}

// NewRepo migrates the slot table and returns a Repo over it.
func NewRepo(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&KV{}); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Get(ctx context.Context, key string) (string, error) {
	var kv KV
	if err := r.db.WithContext(ctx).Where(&KV{Key: key}).First(&kv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return kv.Value, nil
}

func (r *Repo) Put(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&KV{Key: key, Value: value, UpdatedAt: time.Now()}).Error
}

func (r *Repo) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Delete(&KV{Key: key}).Error
}
