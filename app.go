package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"planadmin/internal/config"
	"planadmin/internal/events"
	"planadmin/internal/logger"
	"planadmin/internal/redis"
	"planadmin/internal/service/account"
	"planadmin/internal/service/preferences"
	"planadmin/internal/storage"
)

// app is the wiring shared by every command that touches the database.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	db       *sql.DB
	dbType   string
	cache    *redis.Client
	bus      *events.Bus
	accounts *account.Service
	prefs    *preferences.Service
}

// loadConfig reads .env (when present) and the config file.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return config.Load(configFile)
}

// bootstrap opens and migrates the database, connects redis when enabled and
// subscribes the preference service to user creation.
func bootstrap() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	dbType := cfg.BasicConfig.Database
	log.WithField("database", dbType).Debug("opening database")
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(db, dbType); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db, dbType: dbType}
	if cfg.Redis.Enabled {
		a.cache, err = redis.NewRedisClient(cfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create redis client: %w", err)
		}
	}

	a.bus = events.NewBus(log)
	a.accounts = account.NewService(db, dbType, a.bus)
	a.prefs = preferences.NewService(db, log)
	a.prefs.Register(a.bus)
	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
