package cli

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/spf13/cobra"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError locates one schema or structure violation.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var searchPath []string

	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Validate a scenario without running it",
		Long: `Validate a scenario file without running it.

Checks the document against the scenario schema (field types, event kinds,
require values), then loads subroutines and builds the execution graph to
surface structural defects: unknown events, respond targets that are not
recvs, dependency cycles.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0], searchPath)
		},
	}

	cmd.Flags().StringArrayVar(&searchPath, "search-path", nil, "additional directories searched for subroutine files (repeatable)")

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, path string, searchPath []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error("E_LOAD", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read scenario", err)
	}

	var validationErrors []ValidationError

	// Schema pass: types, enumerations, required fields.
	validationErrors = append(validationErrors, validateSchema(path, data)...)
	formatter.VerboseLog("schema check: %d error(s)", len(validationErrors))

	// Structural pass: parse strictly, load subroutines, build the graph.
	if _, _, _, err := loadScenario(path, searchPath); err != nil {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "graph",
			Message: err.Error(),
		})
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter)
}

// validateSchema unifies the YAML document with the embedded CUE schema.
func validateSchema(path string, data []byte) []ValidationError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return []ValidationError{{Field: "schema", Message: err.Error()}}
	}
	scenarioDef := schema.LookupPath(cue.ParsePath("#Scenario"))

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return []ValidationError{{Field: "yaml", Message: err.Error()}}
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return []ValidationError{{Field: "yaml", Message: err.Error()}}
	}

	unified := scenarioDef.Unify(doc)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		var out []ValidationError
		for _, e := range cueerrors.Errors(err) {
			out = append(out, ValidationError{
				Field:   strings.Join(cueerrors.Path(e), "."),
				Message: e.Error(),
			})
		}
		return out
	}
	return nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintln(formatter.Writer, "✓ Scenario valid")
	return nil
}

// outputValidationErrors outputs validation failures with exit code 1.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		_ = formatter.Error("E_VALIDATE", errs[0].Message, ValidationResult{Valid: false, Errors: errs})
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Field, e.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n", e.Message)
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
