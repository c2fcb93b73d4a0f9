package dataprocessing

import (
	"errors"
	"fmt"
	"strings"
)

// Table kinds used in error messages.
const (
	KindHoldings     = "holdings"
	KindCorrelations = "correlations"
)

// FileError reports a source table that is missing or cannot be read in
// its expected format.
type FileError struct {
	Kind string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s file not readable: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s file not readable: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// SchemaError reports a structural defect in a source table. For the
// holdings table MissingColumns lists every absent required column; for the
// correlation matrix Problem describes the malformation.
type SchemaError struct {
	Kind           string
	Path           string
	MissingColumns []string
	FoundColumns   []string
	Problem        string
}

func (e *SchemaError) Error() string {
	if len(e.MissingColumns) > 0 {
		return fmt.Sprintf("%s table %s missing required columns: [%s]; found columns: [%s]",
			e.Kind, e.Path, strings.Join(e.MissingColumns, ", "), strings.Join(e.FoundColumns, ", "))
	}
	return fmt.Sprintf("%s table %s: %s", e.Kind, e.Path, e.Problem)
}

// IsFileError reports whether err wraps a *FileError.
func IsFileError(err error) bool {
	var fe *FileError
	return errors.As(err, &fe)
}

// IsSchemaError reports whether err wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
