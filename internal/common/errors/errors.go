package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode представляет код ошибки
type ErrorCode string

const (
	// Общие ошибки
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeConflict   ErrorCode = "CONFLICT"
	ErrCodeTransient  ErrorCode = "TRANSIENT_ERROR"

	// Операция пропущена из-за конфигурации (фича выключена, канал не найден)
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// Ошибки розыгрышей
	ErrCodeEmptyCatalog ErrorCode = "EMPTY_CATALOG"
	ErrCodeDrawNotFound ErrorCode = "DRAW_NOT_FOUND"

	// Ошибки леджера
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// Ошибки базы данных
	ErrCodeDatabaseError     ErrorCode = "DATABASE_ERROR"
	ErrCodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"
)

// AppError представляет типизированную ошибку приложения
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

// Error возвращает строковое представление ошибки
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsValidation проверяет, является ли ошибка ошибкой валидации
func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation || e.Code == ErrCodeEmptyCatalog
}

// IsConflict: коллизия ключа идемпотентности или гонка статусов.
// Для вызывающего это no-op, а не сбой.
func (e *AppError) IsConflict() bool {
	return e.Code == ErrCodeConflict
}

// IsTransient проверяет, стоит ли повторять операцию
func (e *AppError) IsTransient() bool {
	return e.Code == ErrCodeTransient ||
		e.Code == ErrCodeDatabaseError ||
		e.Code == ErrCodeTransactionFailed
}

// WithDetail добавляет детальную информацию к ошибке
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New создает новую ошибку приложения
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap оборачивает существующую ошибку
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf оборачивает существующую ошибку с форматированием
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// NewValidationError создает ошибку валидации
func NewValidationError(reason string) *AppError {
	return New(ErrCodeValidation, reason)
}

// NewNotFoundError создает ошибку "не найдено"
func NewNotFoundError(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

// NewConflictError создает ошибку конфликта
func NewConflictError(reason string) *AppError {
	return New(ErrCodeConflict, reason)
}

// NewConfigurationError создает ошибку конфигурации (операция пропускается с логом)
func NewConfigurationError(reason string) *AppError {
	return New(ErrCodeConfiguration, reason)
}

// NewDatabaseError создает ошибку базы данных
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// HasCode проверяет, несет ли ошибка (или ее причина) данный код
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// AsAppError приводит ошибку к AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
