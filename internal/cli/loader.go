package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fam/internal/compiler"
	"github.com/roach88/fam/internal/ir"
)

// LoadResult contains the results of loading a spec directory.
type LoadResult struct {
	Spec      *compiler.Spec
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads the CUE package in dir and compiles it to a Spec.
// Compilation stops at the first error; rule and instruction checks that
// can report many problems at once belong to compiler.Validate.
func LoadSpecs(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	spec, err := compiler.CompileSpec(value)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{
		Spec:      spec,
		CUEValue:  value,
		FileCount: len(cueFiles),
	}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Database open/read/write error

	// Spec compilation errors
	ErrCodeAccount     = "E101" // Invalid account declaration
	ErrCodeActuals     = "E102" // Invalid actual snapshot
	ErrCodeRuleType    = "E103" // Missing or unknown rule type
	ErrCodeRuleValue   = "E104" // Missing or non-numeric rule parameter
	ErrCodeRuleRef     = "E105" // Malformed reference or period
	ErrCodeInstruction = "E110" // Malformed balance change
	ErrCodeCompute     = "E120" // Invalid compute defaults

	// Forecast errors, one per ir.ErrorCode
	ErrCodeBuildCycle       = "E201"
	ErrCodeMissingRule      = "E202"
	ErrCodeUnknownReference = "E203"
	ErrCodeInvalidParameter = "E204"
	ErrCodeRequiredField    = "E205"
	ErrCodeInsufficientActs = "E206"
	ErrCodeCashAccount      = "E207"
	ErrCodeBalanceInstr     = "E208"
	ErrCodeEvalConsistency  = "E209"
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case strings.HasPrefix(field, "accounts."):
		return ErrCodeAccount
	case strings.HasPrefix(field, "actuals"):
		return ErrCodeActuals
	case strings.HasPrefix(field, "rules."):
		switch {
		case strings.HasSuffix(field, ".type"):
			return ErrCodeRuleType
		case strings.Contains(field, ".ref"), strings.Contains(field, ".base"), strings.Contains(field, ".period"):
			return ErrCodeRuleRef
		default:
			return ErrCodeRuleValue
		}
	case strings.HasPrefix(field, "balance_changes"):
		return ErrCodeInstruction
	case strings.HasPrefix(field, "compute."):
		return ErrCodeCompute
	default:
		return ErrCodeGeneric
	}
}

// MapForecastErrorCode maps an ir.Error code found in err's chain to a CLI
// error code.
func MapForecastErrorCode(err error) string {
	switch ir.CodeOf(err) {
	case ir.CodeBuildCycle:
		return ErrCodeBuildCycle
	case ir.CodeMissingRule:
		return ErrCodeMissingRule
	case ir.CodeUnknownReference:
		return ErrCodeUnknownReference
	case ir.CodeInvalidParameter:
		return ErrCodeInvalidParameter
	case ir.CodeRequiredField:
		return ErrCodeRequiredField
	case ir.CodeInsufficientActuals:
		return ErrCodeInsufficientActs
	case ir.CodeCashAccount:
		return ErrCodeCashAccount
	case ir.CodeBalanceInstruction:
		return ErrCodeBalanceInstr
	case ir.CodeEvaluationConsistency:
		return ErrCodeEvalConsistency
	default:
		return ErrCodeGeneric
	}
}
