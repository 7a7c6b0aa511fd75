package types

import (
	"errors"
	"fmt"
)

// The ingestion pipeline reports failures through a small set of typed
// errors so callers can branch with errors.As and map them to exit codes.
// Wrapping is always done with %w; these types are the unwrap targets.

// ConfigError reports an unusable configuration document. Fatal at startup,
// recoverable during hot reload (the previous configuration stays active).
type ConfigError struct {
	File    string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("config %s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError reports an ill-formed supplier format: an unknown input
// reference, a bad parameter combination, an unparsable condition. It is
// raised when a document is compiled, never while rows are being processed.
type ValidationError struct {
	Supplier string
	Column   string
	Action   string
	Message  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Column != "" && e.Action != "":
		return fmt.Sprintf("supplier %q column %s action %s: %s", e.Supplier, e.Column, e.Action, e.Message)
	case e.Column != "":
		return fmt.Sprintf("supplier %q column %s: %s", e.Supplier, e.Column, e.Message)
	case e.Supplier != "":
		return fmt.Sprintf("supplier %q: %s", e.Supplier, e.Message)
	}
	return e.Message
}

// FileError reports an input file that cannot be used: missing, unreadable,
// or carrying an extension outside the allow-list.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// ArgumentError reports a processing request the pipeline will not accept:
// a relative path, a missing file, an extension outside the allow-list. It
// is raised before anything is opened or written.
type ArgumentError struct {
	Name    string // argument name, e.g. "path"
	Value   string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Name, e.Value, e.Message)
}

// SupplierNotDetectedError means no configured supplier's filename patterns
// matched the input file.
type SupplierNotDetectedError struct {
	Path string
}

func (e *SupplierNotDetectedError) Error() string {
	return fmt.Sprintf("no supplier configuration matches file %s", e.Path)
}

// DuplicateOfferError means an offer with the same name already exists for
// the supplier. The run writes nothing; re-processing a file is idempotent.
type DuplicateOfferError struct {
	Supplier  string
	OfferName string
}

func (e *DuplicateOfferError) Error() string {
	return fmt.Sprintf("offer %q already exists for supplier %q", e.OfferName, e.Supplier)
}

// ActionError reports a single action that blew up on a single cell. It is
// logged and counted but never fails the run; the column simply produces
// nothing for that row.
type ActionError struct {
	Row    int
	Column string
	Op     string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("row %d column %s op %s: %v", e.Row, e.Column, e.Op, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// RowDroppedError records a data row excluded from the upsert, usually for
// a missing product name. It surfaces as a warning on the processing result,
// never as a run failure.
type RowDroppedError struct {
	Row    int
	Reason string
}

func (e *RowDroppedError) Error() string {
	return fmt.Sprintf("row %d dropped: %s", e.Row, e.Reason)
}

// ProcessingFailedError wraps whatever killed a run mid-flight, tagged with
// the phase that failed so operators can tell a read failure from a commit
// failure.
type ProcessingFailedError struct {
	Phase      string
	RowsSeen   int
	RowsFailed int
	Err        error
}

func (e *ProcessingFailedError) Error() string {
	return fmt.Sprintf("processing failed during %s (rows seen %d, failed %d): %v",
		e.Phase, e.RowsSeen, e.RowsFailed, e.Err)
}

func (e *ProcessingFailedError) Unwrap() error { return e.Err }

// IsDuplicateOffer reports whether err is, or wraps, a duplicate-offer
// rejection.
func IsDuplicateOffer(err error) bool {
	var d *DuplicateOfferError
	return errors.As(err, &d)
}

// IsConfig reports whether err is, or wraps, a configuration error.
func IsConfig(err error) bool {
	var c *ConfigError
	var v *ValidationError
	return errors.As(err, &c) || errors.As(err, &v)
}

// IsArgument reports whether err is, or wraps, a rejected argument.
func IsArgument(err error) bool {
	var a *ArgumentError
	return errors.As(err, &a)
}
