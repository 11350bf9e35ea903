package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablesync/internal/compiler"
	"github.com/roach88/tablesync/internal/validate"
)

// ValidationResult holds definition validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Tables []string                   `json:"tables,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	// Data is set when a table's stored baseline was checked too.
	Data *DataValidation `json:"data,omitempty"`
}

// DataValidation is the outcome of the advisory checks over a baseline.
type DataValidation struct {
	Table  string           `json:"table"`
	Issues int              `json:"issues"`
	Report *validate.Report `json:"report"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate [table]",
		Short: "Validate table definitions and, optionally, a stored baseline",
		Long: `Validate the CUE table definitions named by the specs setting.

Every definition is compiled and checked; all errors are reported. With a
table name, the stored baseline of that table is also run through the
relationship, blank catalogue and consistency checks. Data findings are
advisory unless --strict is given.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit with failure when the data checks find issues")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, args []string, strict bool) error {
	f := opts.formatter(cmd)

	cfg, err := opts.LoadConfig()
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeConfig, err.Error())
	}

	result, err := ValidateTables(cfg.Specs)
	if err != nil {
		return failLoad(f, err)
	}
	f.Debugf("Validated %d table(s) from %s", len(result.Tables), cfg.Specs)
	if !result.Valid {
		return outputValidationErrors(f, result)
	}
	if len(args) == 0 {
		return outputValidateSuccess(f, result)
	}

	e, err := openEnv(opts, f)
	if err != nil {
		return err
	}
	defer e.Close()

	syncer, err := e.syncer(args[0], f)
	if err != nil {
		return err
	}
	allow, err := e.allowList(f)
	if err != nil {
		return err
	}
	rep, err := syncer.Validate(cmd.Context(), allow)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeGeneric, err.Error())
	}
	result.Data = &DataValidation{Table: syncer.Table(), Issues: rep.Issues(), Report: rep}

	if err := outputValidateSuccess(f, result); err != nil {
		return err
	}
	if strict && rep.HasIssues() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d data issue(s)", syncer.Table(), rep.Issues()))
	}
	return nil
}

// ValidateTables compiles and checks every table definition under path.
// Errors locating or loading the CUE files are returned as err; errors in
// the definitions themselves are collected in the result.
func ValidateTables(path string) (*ValidationResult, error) {
	loadResult, loadErrors := LoadTables(path, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	result := &ValidationResult{}
	for _, err := range loadErrors {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			return nil, err
		}
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
		})
	}

	for _, spec := range loadResult.Tables {
		result.Tables = append(result.Tables, spec.Name)
		for _, verr := range compiler.Validate(spec) {
			verr.Field = spec.Name + "." + verr.Field
			result.Errors = append(result.Errors, verr)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result, nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(f *OutputFormatter, result *ValidationResult) error {
	if f.JSON() {
		return f.Emit(result, "")
	}

	f.Printf("✓ All tables valid (%s)\n", strings.Join(result.Tables, ", "))
	if d := result.Data; d != nil {
		printDataValidation(f, d)
	}
	return nil
}

func printDataValidation(f *OutputFormatter, d *DataValidation) {
	if d.Issues == 0 {
		f.Printf("✓ %s: no data issues\n", d.Table)
		return
	}
	r := d.Report
	f.Printf("! %s: %d data issue(s)\n", d.Table, d.Issues)
	if r.Relationship.Ran {
		f.Printf("  contracts with several vendors: %d\n", r.Relationship.Count)
		for _, c := range r.Relationship.Items {
			f.Printf("    %s: %s\n", c.Contract, strings.Join(c.Vendors, ", "))
		}
	}
	if r.BlankCatalogue.Ran {
		f.Printf("  blank catalogue rows: %d (%d allow-listed)\n", r.BlankCatalogue.Count, r.Allowed)
	}
	if r.Consistency.Ran {
		f.Printf("  inconsistent catalogue groups: %d\n", r.Consistency.Count)
		for _, g := range r.Consistency.Items {
			f.Printf("    %s / %s / %s: %s\n", g.Identity, g.Vendor, g.AccountPrefix, strings.Join(g.Catalogues, ", "))
		}
	}
}

// outputValidationErrors outputs definition errors.
func outputValidationErrors(f *OutputFormatter, result *ValidationResult) error {
	errs := result.Errors
	if f.JSON() {
		if err := f.FailWith(result, errs[0].Code, errs[0].Message, nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	f.Printf("✗ Validation failed\n\n")
	for _, err := range errs {
		f.Printf("  %s %s: %s\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
