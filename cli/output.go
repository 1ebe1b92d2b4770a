package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/stevemurr/bizstore/collection"
	"github.com/stevemurr/bizstore/common"
	"github.com/stevemurr/bizstore/entity"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The store rejected or failed the operation
	ExitCommandError = 2 // Bad flags, arguments or configuration
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode names the category of a store error for JSON output.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, common.ErrValidationFailure):
		return "validation_failure"
	case errors.Is(err, common.ErrUnauthorizedAccess):
		return "unauthorized_access"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrStorageFailure):
		return "storage_failure"
	}
	if GetExitCode(err) == ExitCommandError {
		return "command_error"
	}
	return "error"
}

// Response is the JSON envelope written with --format json.
type Response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Printer renders command results as text tables or JSON envelopes.
type Printer struct {
	Format string
	Writer io.Writer
}

func (p *Printer) json() bool { return p.Format == "json" }

func (p *Printer) encode(v any) error {
	return json.NewEncoder(p.Writer).Encode(v)
}

// Success writes data as is in JSON mode, or as one line of text.
func (p *Printer) Success(data any) error {
	if p.json() {
		return p.encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(p.Writer, data)
	return err
}

// Lines writes one value per line, or a JSON array.
func (p *Printer) Lines(values []string) error {
	if p.json() {
		if values == nil {
			values = []string{}
		}
		return p.encode(Response{Status: "ok", Data: values})
	}
	for _, v := range values {
		if _, err := fmt.Fprintln(p.Writer, v); err != nil {
			return err
		}
	}
	return nil
}

// Error reports err; used by main for JSON output so scripts can parse failures.
func (p *Printer) Error(err error) error {
	if p.json() {
		return p.encode(Response{Status: "error", Error: &ResponseError{Code: ErrorCode(err), Message: err.Error()}})
	}
	_, werr := fmt.Fprintf(p.Writer, "Error: %v\n", err)
	return werr
}

// Records writes documents as an ID / UPDATED / FIELDS table.
func (p *Printer) Records(docs []collection.Document) error {
	if p.json() {
		if docs == nil {
			docs = []collection.Document{}
		}
		return p.encode(Response{Status: "ok", Data: docs})
	}
	tw := tabwriter.NewWriter(p.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tFIELDS")
	for _, d := range docs {
		updated, _ := d[collection.FieldUpdatedAt].(string)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID(), updated, fields(d))
	}
	return tw.Flush()
}

// Record writes a single document.
func (p *Printer) Record(doc collection.Document) error {
	if p.json() {
		return p.encode(Response{Status: "ok", Data: doc})
	}
	return p.Records([]collection.Document{doc})
}

// Masters writes entries as a TYPE / VALUE / ID table.
func (p *Printer) Masters(entries []entity.MasterEntry) error {
	if p.json() {
		if entries == nil {
			entries = []entity.MasterEntry{}
		}
		return p.encode(Response{Status: "ok", Data: entries})
	}
	tw := tabwriter.NewWriter(p.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tVALUE\tID")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Type, e.Value, e.ID)
	}
	return tw.Flush()
}

// fields renders the non-reserved fields as sorted key=value pairs.
func fields(d collection.Document) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		switch k {
		case collection.FieldID, collection.FieldCreatedAt, collection.FieldUpdatedAt:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + fieldValue(d[k])
	}
	return strings.Join(parts, " ")
}

func fieldValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
