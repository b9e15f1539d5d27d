package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/genlock/internal/catalogspec"
)

// ValidationError is one problem found in a catalog.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid          bool              `json:"valid"`
	Generations    int               `json:"generations,omitempty"` // including genesis
	Administrators int               `json:"administrators,omitempty"`
	Errors         []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog>",
		Short: "Validate a CUE catalog without applying it",
		Long: `Validate a CUE catalog file or directory without touching a database.

The catalog is checked against the #Catalog schema and then applied to a
scratch in-memory engine, so every engine rule (prerequisites, auto-unlock
pricing, size limit) is checked exactly as init would.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	catalog, err := catalogspec.Load(path)
	if err != nil {
		var le *catalogspec.LoadError
		if errors.As(err, &le) && (le.Code == catalogspec.ErrCodeNotFound || le.Code == catalogspec.ErrCodeNoFiles) {
			return outputValidateError(formatter, le.Code, le.Message, nil)
		}
		return outputValidationErrors(formatter, []ValidationError{toValidationError(err)})
	}

	formatter.VerboseLog("Loaded %d generation(s) from %s", len(catalog.Generations)+1, path)

	if err := catalogspec.Check(context.Background(), catalog); err != nil {
		return outputValidationErrors(formatter, []ValidationError{toValidationError(err)})
	}

	return outputValidateSuccess(formatter, ValidationResult{
		Valid:          true,
		Generations:    len(catalog.Generations) + 1,
		Administrators: len(catalog.Administrators),
	})
}

// toValidationError converts a load or check failure, keeping the CUE
// position when there is one.
func toValidationError(err error) ValidationError {
	var le *catalogspec.LoadError
	if !errors.As(err, &le) {
		return ValidationError{Code: catalogspec.ErrCodeCatalog, Message: err.Error()}
	}
	ve := ValidationError{Code: le.Code, Message: le.Message}
	if le.Pos.IsValid() {
		ve.File = le.Pos.Filename()
		ve.Line = le.Pos.Line()
		ve.Column = le.Pos.Column()
	}
	return ve
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Catalog valid (%d generations)\n", result.Generations)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Missing input is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", err.File, err.Line, err.Column)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
