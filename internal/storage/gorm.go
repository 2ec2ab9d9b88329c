package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry — строка таблицы ключ-значение.
type Entry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName фиксирует имя таблицы независимо от NamingStrategy.
func (Entry) TableName() string { return "kv_entries" }

// GormBackend хранит значения в таблице kv_entries.
//
// Блокировок между процессами не даёт: последняя запись побеждает.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend оборачивает уже открытое соединение.
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

// OpenPostgres открывает соединение по DSN и создаёт таблицу, если её нет.
func OpenPostgres(dsn string) (*GormBackend, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	return NewGormBackend(db), nil
}

func (g *GormBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var e Entry
	err := g.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return e.Value, true, nil
}

func (g *GormBackend) Set(ctx context.Context, key, value string) error {
	e := Entry{Key: key, Value: value}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

func (g *GormBackend) Remove(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Where("key = ?", key).Delete(&Entry{}).Error
}

// Close закрывает пул соединений.
func (g *GormBackend) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
