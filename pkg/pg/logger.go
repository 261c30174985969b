package pg

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/vowbill/pkg/logger"
)

const defaultMigrationsTable = "schema_migrations"

// MigrationLogger routes goose output to structured records tagged with the
// migrations component and the version table. It implements goose.Logger.
// Fatalf logs at error level and does not exit; Migrate reports failures
// through its returned error.
type MigrationLogger struct {
	ctx context.Context
	log *slog.Logger
}

// NewMigrationLogger creates a MigrationLogger writing to log.
// A nil log discards the output.
func NewMigrationLogger(ctx context.Context, log *slog.Logger, table string) *MigrationLogger {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if table == "" {
		table = defaultMigrationsTable
	}
	return &MigrationLogger{
		ctx: ctx,
		log: log.With(logger.Component("migrations"), slog.String("table", table)),
	}
}

func (l *MigrationLogger) Printf(format string, v ...any) {
	l.write(slog.LevelInfo, format, v...)
}

func (l *MigrationLogger) Fatalf(format string, v ...any) {
	l.write(slog.LevelError, format, v...)
}

// goose terminates most lines with a newline and pads status columns.
func (l *MigrationLogger) write(level slog.Level, format string, v ...any) {
	msg := strings.Join(strings.Fields(fmt.Sprintf(format, v...)), " ")
	if msg == "" {
		return
	}
	l.log.Log(l.ctx, level, msg)
}
