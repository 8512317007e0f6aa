package core

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the stable, caller-visible class of a failure.
type Category string

// Error categories.
const (
	CategoryMissingColumns       Category = "missing_columns"
	CategoryNonNumericColumn     Category = "non_numeric_column"
	CategoryInvalidTarget        Category = "invalid_target"
	CategoryUnsupportedMethod    Category = "unsupported_method"
	CategoryUnsupportedAlgorithm Category = "unsupported_algorithm"
	CategoryAlreadyInProgress    Category = "already_in_progress"
	CategoryAlreadyFinished      Category = "already_finished"
	CategoryStorageUnavailable   Category = "storage_unavailable"
	CategoryNotFound             Category = "not_found"
	CategoryInvalidArgument      Category = "invalid_argument"
	CategoryInternal             Category = "internal"
)

// Sentinel errors for errors.Is checks. Any *Error with the same category
// matches its sentinel regardless of detail.
var (
	ErrMissingColumns       = &Error{Category: CategoryMissingColumns}
	ErrNonNumericColumn     = &Error{Category: CategoryNonNumericColumn}
	ErrInvalidTarget        = &Error{Category: CategoryInvalidTarget}
	ErrUnsupportedMethod    = &Error{Category: CategoryUnsupportedMethod}
	ErrUnsupportedAlgorithm = &Error{Category: CategoryUnsupportedAlgorithm}
	ErrAlreadyInProgress    = &Error{Category: CategoryAlreadyInProgress}
	ErrAlreadyFinished      = &Error{Category: CategoryAlreadyFinished}
	ErrStorageUnavailable   = &Error{Category: CategoryStorageUnavailable}
	ErrNotFound             = &Error{Category: CategoryNotFound}
	ErrInvalidArgument      = &Error{Category: CategoryInvalidArgument}
)

// Error is a categorized failure with a human-readable detail.
type Error struct {
	Category Category
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return e.Detail + ": " + e.Err.Error()
	case e.Detail != "":
		return e.Detail
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Category)
	}
}

// Is matches sentinels of the same category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Category == e.Category && t.Detail == "" && t.Err == nil
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a categorized error.
func Errorf(cat Category, format string, args ...any) error {
	return &Error{Category: cat, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a category and detail to an underlying error.
func Wrap(cat Category, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Category: cat, Detail: fmt.Sprintf(format, args...), Err: err}
}

// CategoryOf returns the category of err, or CategoryInternal.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}

// MissingColumnsError reports absent columns.
func MissingColumnsError(columns []string) error {
	return Errorf(CategoryMissingColumns, "missing columns: %s", strings.Join(columns, ", "))
}
