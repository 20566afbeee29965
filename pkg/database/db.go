package database

import (
	"Storefront/config"
	"Storefront/models"
	"Storefront/pkg/log"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 初始化数据库连接
func NewDB(conf *config.Config) *gorm.DB {
	db, err := Open(conf.MySQL, conf.Debug())
	if err != nil {
		log.L.Fatal("failed to connect database", zap.Error(err))
	}
	log.L.Info("connect database success", zap.String("driver", db.Dialector.Name()))
	return db
}

func Open(conf *config.MySQL, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if conf.IsSQLite() {
		dialector = sqlite.Open(conf.Dsn())
	} else {
		dialector = mysql.Open(conf.Dsn())
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite 只有一个写者，单连接让事务天然串行
	if conf.IsSQLite() {
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	if conf.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(conf.MaxOpenConns)
	}
	if conf.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(conf.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// AutoMigrate 建表 / 补字段
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Inventory{},
		&models.Order{},
		&models.OrderOutbox{},
	)
}
