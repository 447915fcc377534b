// Package spell wires the full tokenize→parse→transform→generate→validate
// pipeline and the scheduler/state-store/adapter-registry orchestration
// around it into the two entrypoints the CLI calls: Compile and Run.
package spell

import (
	"fmt"
	"time"

	"github.com/franalgaba/grimoire-sub002/internal/ir"
	"github.com/franalgaba/grimoire-sub002/internal/lexer"
	"github.com/franalgaba/grimoire-sub002/internal/parser"
	"github.com/franalgaba/grimoire-sub002/internal/transform"
	"github.com/franalgaba/grimoire-sub002/internal/validate"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/mod/semver"
)

// CompileResult is the compiler boundary's output (spec.md §7:
// "{success, errors, warnings, ir?}" — compile-time errors never escape as
// Go errors, only as this struct's Errors field).
type CompileResult struct {
	Success  bool
	Errors   []validate.Finding
	Warnings []validate.Finding
	IR       *ir.SpellIR
}

// Clock abstracts "now" so Compile is reproducible in tests; defaults to
// time.Now via Compile's zero-value handling.
type Clock func() time.Time

// Compile runs the full pipeline over src: tokenize, parse, lower, generate
// IR (hashing src with blake2b-256 and validating the declared version
// against semver), then validate the result (spec.md §4.F).
func Compile(id, src string, now Clock) CompileResult {
	if now == nil {
		now = time.Now
	}

	toks, err := lexer.Tokenize(src)
	if err != nil {
		return CompileResult{Errors: []validate.Finding{{
			Code: "GRIMOIRE_PARSE_ERROR", Severity: validate.SeverityError, Message: err.Error(),
		}}}
	}

	spellAST, err := parser.Parse(toks)
	if err != nil {
		return CompileResult{Errors: []validate.Finding{{
			Code: "GRIMOIRE_PARSE_ERROR", Severity: validate.SeverityError, Message: err.Error(),
		}}}
	}

	if spellAST.Version != "" && !semver.IsValid("v"+spellAST.Version) {
		return CompileResult{Errors: []validate.Finding{{
			Code: "GRIMOIRE_PARSE_ERROR", Severity: validate.SeverityError,
			Message: fmt.Sprintf("invalid semantic version %q", spellAST.Version),
		}}}
	}

	lowered, diags := transform.Lower(spellAST)
	// The transformer never fails outright (that's the validator's job once
	// IR exists), so every Diagnostic it raises is a warning.
	var findings []validate.Finding
	for _, d := range diags {
		findings = append(findings, validate.Finding{Code: d.Code, Message: d.Message, Severity: validate.SeverityWarning})
	}

	hash := blake2b.Sum256([]byte(src))
	created := now().UTC().Format(time.RFC3339)
	sir := ir.Generate(id, lowered, fmt.Sprintf("%x", hash), created)

	res := validate.Validate(sir)
	findings = append(findings, res.Errors...)
	findings = append(findings, res.Warnings...)
	out := splitFindings(findings)
	out.Success = res.Valid
	if res.Valid {
		out.IR = sir
	}
	return out
}

func splitFindings(findings []validate.Finding) CompileResult {
	var out CompileResult
	out.Success = true
	for _, f := range findings {
		if f.Severity == validate.SeverityError {
			out.Errors = append(out.Errors, f)
			out.Success = false
		} else {
			out.Warnings = append(out.Warnings, f)
		}
	}
	return out
}
