package migration

import (
	"strings"

	"github.com/smallbiznis/residence/internal/config"
	pkgdb "github.com/smallbiznis/residence/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run applies SQL migrations on postgres. Other dialects are migrated
// from the models when DATABASE_AUTO_MIGRATE is set.
func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")

	if strings.EqualFold(strings.TrimSpace(cfg.DBType), pkgdb.DialectPostgres) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	}

	if !cfg.DBAutoMigrate {
		log.Warn("schema migration skipped", zap.String("dialect", cfg.DBType))
		return nil
	}
	if err := AutoMigrate(conn); err != nil {
		return err
	}
	log.Info("schema auto-migrated", zap.String("dialect", cfg.DBType))
	return nil
}
