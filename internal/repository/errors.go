package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicate        = errors.New("duplicate value violates unique constraint")
	ErrForeignKey       = errors.New("referenced record does not exist")
	ErrUnknownResource  = errors.New("unknown resource")
	ErrMissingID        = errors.New("record must contain its primary key")
	ErrNothingToUpdate  = errors.New("no fields to update")
	ErrNoRowsMatched    = errors.New("no rows matched the condition")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrMissingCondition = errors.New("a condition in the form {\"column\": value} is required")
)

// UnknownColumnError 记录中出现了表里不存在的列
type UnknownColumnError struct {
	Table  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("table %s has no column named %s", e.Table, e.Column)
}

// InvalidValueError 列值类型或取值不合法。Error() 只包含列名和期望的值，
// 底层错误通过 Unwrap 保留给日志。
type InvalidValueError struct {
	Column   string
	Expected string
	Err      error
}

func (e *InvalidValueError) Error() string {
	if e.Column == "" {
		return ErrInvalidRecord.Error()
	}
	return fmt.Sprintf("%s: column %s expects %s", ErrInvalidRecord, e.Column, e.Expected)
}

func (e *InvalidValueError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidRecord}
	}
	return []error{ErrInvalidRecord, e.Err}
}

// PostgreSQL SQLSTATE
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify 将驱动错误映射为仓库层错误
func classify(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	}

	// pgx 驱动
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		}
	}

	// lib/pq 驱动，gorm 不会翻译它的错误
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	}
	return err
}
