package postgres

import (
	"log"
	"time"

	"github.com/splitpay/checkout-core/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MustInitDB opens the GORM connection pool against the durable store.
// Schema changes are owned by migrate.RunMigrations, not AutoMigrate —
// the durable tables need the CAS-friendly indexes and the updated_at
// trigger that migration SQL describes precisely.
func MustInitDB(cfg *config.AppConfig) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DB.Dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB handle: %v\n", err.Error())
	}

	// Sized for a single-region orchestrator process: enough headroom for
	// the fan-out authorize/capture goroutines of a few concurrent
	// checkouts without starving the webhook reconciler's own queries.
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db
}
