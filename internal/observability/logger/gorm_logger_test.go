package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))
	return logs
}

func TestGormLoggerDowngradesExpectedErrors(t *testing.T) {
	logs := observeGlobal(t)
	cfg := DefaultGormLoggerConfig()
	cfg.ExpectedError = func(err error) bool { return strings.Contains(err.Error(), "UNIQUE") }
	l := NewGormLogger(cfg).LogMode(gormlogger.Info)

	sql := func() (string, int64) { return "INSERT INTO mpesa_transactions (trans_id) VALUES (?)", 0 }
	l.Trace(context.Background(), time.Now(), sql, errors.New("UNIQUE constraint failed: mpesa_transactions.trans_id"))
	l.Trace(context.Background(), time.Now(), sql, errors.New("disk I/O error"))

	entries := logs.FilterMessage("gorm.query").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "INSERT", entries[1].ContextMap()["operation"])
}

func TestGormLoggerSilencesExpectedErrorsAtWarn(t *testing.T) {
	logs := observeGlobal(t)
	cfg := DefaultGormLoggerConfig()
	cfg.ExpectedError = func(error) bool { return true }
	l := NewGormLogger(cfg)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "INSERT", 0 }, errors.New("dup"))
	assert.Zero(t, logs.Len())
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT_FOR_UPDATE", operationFromSQL("SELECT * FROM customers WHERE id = ? FOR UPDATE"))
	assert.Equal(t, "INSERT", operationFromSQL("  insert into receipts (id) values (?)"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
