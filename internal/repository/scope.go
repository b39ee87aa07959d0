package repository

import (
	"context"
	"errors"
	"strings"

	"go-pos-api/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// tenantScoped is the only entry point repositories use to query tenant
// owned tables. Soft deleted rows are excluded through gorm.DeletedAt, which
// is never bypassed with Unscoped.
func tenantScoped(db *gorm.DB, table interface{}, tenantID uuid.UUID) *gorm.DB {
	return db.Model(table).Where("tenant_id = ?", tenantID)
}

// likePattern escapes LIKE wildcards and wraps the lowered term for a
// case-insensitive substring match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}

// isUniqueViolation recognises unique index violations from gorm's error
// translation as well as raw PostgreSQL and SQLite messages.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// isExpected reports errors that are part of the normal domain flow and do
// not need to be logged as storage failures.
func isExpected(err error) bool {
	var (
		ve *apperror.ValidationError
		nf *apperror.NotFoundError
		ce *apperror.ConflictError
		de *apperror.DomainError
		ip *apperror.InsufficientPaymentError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &de) ||
		errors.As(err, &ip) || errors.Is(err, context.Canceled)
}

// opLogger logs unexpected storage errors with operation context and hands
// them back unchanged.
type opLogger struct {
	log       *zap.Logger
	component string
}

func newOpLogger(log *zap.Logger, component string) opLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return opLogger{log: log, component: component}
}

func (l opLogger) fail(op string, err error, fields ...zap.Field) error {
	if err == nil || isExpected(err) {
		return err
	}
	l.log.Error("repository operation failed",
		append([]zap.Field{zap.String("component", l.component), zap.String("op", op), zap.Error(err)}, fields...)...)
	return err
}
