package testutil

import (
	"testing"

	accountdomain "mailstream/internal/account/domain"
	contactdomain "mailstream/internal/contact/domain"
	syncdomain "mailstream/internal/sync/domain"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a fresh in-memory database migrated with the full schema.
// Each call returns an isolated store; cleanup happens with the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&accountdomain.Account{},
		&contactdomain.Contact{},
		&syncdomain.StoredMessage{},
		&syncdomain.SyncRun{},
		&syncdomain.FailedSyncItem{},
		&syncdomain.EnrichmentQueueItem{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// NewLogger returns a quiet logger entry for use in tests.
func NewLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l.WithField("component", "test")
}
