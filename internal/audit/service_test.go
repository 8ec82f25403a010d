package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kasa-backend/internal/models"
)

func TestEntry_ToLog(t *testing.T) {
	branch := uint(3)
	e := Entry{
		BranchID:    &branch,
		UserID:      9,
		UserName:    "Ayşe",
		EntityType:  models.AuditEntityCashSession,
		EntityID:    12,
		Action:      models.AuditActionOpen,
		Description: "Kasa açıldı",
		After:       map[string]any{"opening_total": "1500.00"},
	}

	row, err := e.toLog()
	require.NoError(t, err)
	assert.Equal(t, "null", row.BeforeData)
	assert.JSONEq(t, `{"opening_total":"1500.00"}`, row.AfterData)
	assert.Equal(t, models.AuditActionOpen, row.Action)
	assert.Equal(t, &branch, row.BranchID)
}

func TestEntry_ToLogRejectsUnserializable(t *testing.T) {
	_, err := Entry{After: make(chan int)}.toLog()
	assert.Error(t, err)
}

func TestRecord_SwallowsWriterErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rec := &Recorder{Err: errors.New("db down")}

	Record(context.Background(), rec, zap.New(core), Entry{EntityType: models.AuditEntityFundPool, EntityID: 1})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "audit log yazılamadı", logs.All()[0].Message)
	assert.Empty(t, rec.Entries())
}

func TestRecord_NilWriter(t *testing.T) {
	assert.NotPanics(t, func() {
		Record(context.Background(), nil, zap.NewNop(), Entry{})
	})
}
