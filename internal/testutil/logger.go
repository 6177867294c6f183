// Package testutil provides shared test helpers for SysInfo packages.
package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Logger returns a debug-level logger that writes through tb.Log, so session
// and module logs show up only for failing or verbose tests.
func Logger(tb testing.TB) *zap.Logger {
	return zaptest.NewLogger(tb, zaptest.Level(zap.DebugLevel))
}
