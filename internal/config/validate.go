package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ledgermsg/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// ValidationError reports the first schema violation.
type ValidationError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("invalid config: %s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// Validate checks cfg against the embedded CUE schema, then checks that
// every key decodes to 32 bytes.
func Validate(cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	// nil slices encode as null, which the schema's lists reject.
	normalized := *cfg
	if normalized.Genesis == nil {
		normalized.Genesis = []GenesisAllocation{}
	}
	if normalized.Server.CORSOrigins == nil {
		normalized.Server.CORSOrigins = []string{}
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(normalized))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}

	if _, err := cfg.ProgramID(); err != nil {
		return &ValidationError{Field: "ledger.program_id", Message: err.Error()}
	}
	for i, g := range cfg.Genesis {
		if _, err := ir.ParsePubkey(g.Address); err != nil {
			return &ValidationError{Field: fmt.Sprintf("genesis.%d.address", i), Message: err.Error()}
		}
	}
	return nil
}

// formatCUEError keeps the first error and its path.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	format, args := first.Msg()
	verr := &ValidationError{
		Field:   pathString(first.Path()),
		Message: fmt.Sprintf(format, args...),
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		verr.Pos = positions[0]
	}
	return verr
}

func pathString(path []string) string {
	if len(path) == 0 {
		return "config"
	}
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}
