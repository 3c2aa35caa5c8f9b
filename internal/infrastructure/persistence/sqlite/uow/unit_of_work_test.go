package uow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"markalloc/internal/infrastructure/persistence/sqlite/model"
	"markalloc/internal/ports"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "uow.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.MarkingCycle{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func insertCycle(ctx context.Context, t *testing.T, year int) error {
	t.Helper()
	db, ok := ports.TxFromContext(ctx).(*gorm.DB)
	if !ok {
		t.Fatalf("tx in context = %T", ports.TxFromContext(ctx))
	}
	now := time.Now().UTC()
	return db.Create(&model.MarkingCycle{Year: year, Status: "OPEN", TotalRequired: 1, CreatedAt: now, UpdatedAt: now}).Error
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := setupDB(t)
	u := NewUnitOfWork(db)
	boom := errors.New("boom")

	err := u.WithTx(context.Background(), func(txCtx context.Context) error {
		if err := insertCycle(txCtx, t, 2025); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var count int64
	if err := db.Model(&model.MarkingCycle{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rows after rollback = %d", count)
	}
}

func TestWithTxJoinsOuterTransaction(t *testing.T) {
	db := setupDB(t)
	u := NewUnitOfWork(db)

	err := u.WithTx(context.Background(), func(outer context.Context) error {
		outerTx := ports.TxFromContext(outer)
		return u.WithTx(outer, func(inner context.Context) error {
			if ports.TxFromContext(inner) != outerTx {
				t.Fatalf("inner call opened a new transaction")
			}
			return insertCycle(inner, t, 2026)
		})
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	var count int64
	if err := db.Model(&model.MarkingCycle{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows after commit = %d", count)
	}
}
