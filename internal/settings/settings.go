// Package settings хранит пользовательские предпочтения и служебные
// настройки приложения рядом со списком задач, каждое под своим ключом.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"taskkeeper/internal/storage"

	"github.com/go-playground/validator/v10"
)

const (
	KeyPreferences = "@user_preferences"
	KeyAppSettings = "@app_settings"
	KeyLastSync    = "@last_sync"
)

// ErrInvalid: предпочтения не прошли валидацию.
var ErrInvalid = errors.New("invalid preferences")

// Preferences хранит пользовательские предпочтения.
type Preferences struct {
	Theme           string `json:"theme" validate:"oneof=light dark"`
	Notifications   bool   `json:"notifications"`
	DefaultReminder int    `json:"defaultReminder" validate:"gte=0,lte=10080"`
	SortBy          string `json:"sortBy" validate:"oneof=date priority title createdAt"`
	ViewMode        string `json:"viewMode" validate:"oneof=list grid"`
}

// DefaultPreferences — значения для первого запуска.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:           "light",
		Notifications:   true,
		DefaultReminder: 10,
		SortBy:          "date",
		ViewMode:        "list",
	}
}

// AppSettings — служебные настройки приложения.
type AppSettings struct {
	FirstLaunch bool   `json:"firstLaunch"`
	LastVersion string `json:"lastVersion"`
	Language    string `json:"language"`
}

// DefaultAppSettings возвращает значения для первого запуска.
func DefaultAppSettings() AppSettings {
	return AppSettings{FirstLaunch: true, LastVersion: "1.0.0", Language: "en"}
}

// Clearer удаляет данные другого владельца того же бэкенда
// (например, tasks.Store со своим ключом и своей блокировкой).
type Clearer func(ctx context.Context) error

// Service читает и пишет настройки через тот же бэкенд, что и задачи.
type Service struct {
	backend  storage.Backend
	keys     []string
	clearers []Clearer
	logger   *log.Logger
	validate *validator.Validate
}

// NewService создаёт сервис настроек.
//
// clearers вызываются в ClearAll: чужие ключи сервис напрямую не трогает.
func NewService(backend storage.Backend, logger *log.Logger, clearers ...Clearer) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		backend:  backend,
		keys:     []string{KeyPreferences, KeyAppSettings, KeyLastSync},
		clearers: clearers,
		logger:   logger,
		validate: validator.New(),
	}
}

// Preferences возвращает сохранённые предпочтения или значения по умолчанию.
func (s *Service) Preferences(ctx context.Context) (Preferences, error) {
	p := DefaultPreferences()
	if err := s.read(ctx, KeyPreferences, &p); err != nil {
		s.logger.Printf("settings: preferences: %v", err)
		return Preferences{}, err
	}
	return p, nil
}

// SavePreferences проверяет и сохраняет предпочтения целиком.
func (s *Service) SavePreferences(ctx context.Context, p Preferences) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.write(ctx, KeyPreferences, p); err != nil {
		s.logger.Printf("settings: save preferences: %v", err)
		return err
	}
	return nil
}

// UpdatePreferences читает, изменяет и записывает предпочтения.
// Ошибка change отменяет запись.
func (s *Service) UpdatePreferences(ctx context.Context, change func(*Preferences) error) (Preferences, error) {
	p, err := s.Preferences(ctx)
	if err != nil {
		return Preferences{}, err
	}
	if err := change(&p); err != nil {
		return Preferences{}, err
	}
	if err := s.SavePreferences(ctx, p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// AppSettings возвращает сохранённые настройки или значения по умолчанию.
func (s *Service) AppSettings(ctx context.Context) (AppSettings, error) {
	a := DefaultAppSettings()
	if err := s.read(ctx, KeyAppSettings, &a); err != nil {
		s.logger.Printf("settings: app settings: %v", err)
		return AppSettings{}, err
	}
	return a, nil
}

// SaveAppSettings сохраняет настройки целиком.
func (s *Service) SaveAppSettings(ctx context.Context, a AppSettings) error {
	if err := s.write(ctx, KeyAppSettings, a); err != nil {
		s.logger.Printf("settings: save app settings: %v", err)
		return err
	}
	return nil
}

// SetLaunched отмечает, что первый запуск уже был.
func (s *Service) SetLaunched(ctx context.Context) (AppSettings, error) {
	a, err := s.AppSettings(ctx)
	if err != nil {
		return AppSettings{}, err
	}
	a.FirstLaunch = false
	if err := s.SaveAppSettings(ctx, a); err != nil {
		return AppSettings{}, err
	}
	return a, nil
}

// ClearAll вызывает clearers и удаляет собственные ключи сервиса.
func (s *Service) ClearAll(ctx context.Context) error {
	var errs []error
	for _, fn := range s.clearers {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, key := range s.keys {
		if err := s.backend.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Printf("settings: clear all: %v", err)
		return err
	}
	return nil
}

// read накладывает сохранённый JSON поверх dst; отсутствующий ключ не ошибка.
func (s *Service) read(ctx context.Context, key string, dst any) error {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Service) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
