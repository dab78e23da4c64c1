package database

import (
	"fmt"
	"time"

	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/pkg/config"
	applog "go-warehouse-ws/pkg/logger"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the connection string, preferring DATABASE_URL when set.
func DSN(cfg config.PostgresConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode, cfg.TimeZone,
	)
}

func ConnectDB(cfg config.PostgresConfig) (*gorm.DB, error) {
	log := applog.Get()

	gormLogger := logger.New(
		log,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  DSN(cfg),
		PreferSimpleProtocol: true, // Disables implicit prepared statements for pooled transaction mode
	}), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: false,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.Tracing {
		if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
			log.Warnf("db connected but failed to install otelgorm plugin: %v", pluginErr)
		}
	}

	log.Info("Database connection established")
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Privilege{},
		&model.Role{},
		&model.Warehouse{},
		&model.User{},
		&model.Customer{},
		&model.Product{},
		&model.StorageLot{},
		&model.Transaction{},
		&model.Payment{},
	)
}
