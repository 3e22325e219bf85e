// CUE schema validation code.
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// validateWithCUE checks the raw YAML config against the CUE schema before
// it is unmarshalled, so type and range violations carry schema positions.
func validateWithCUE(configPath string, configYAML []byte, schemaPath string) error {
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("read CUE schema: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaBytes, cue.Filename(schemaPath))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile CUE schema: %w", err)
	}

	file, err := cueyaml.Extract(configPath, configYAML)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	val := ctx.BuildFile(file)
	if err := val.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: schema validation: %v", ErrInvalid, err)
	}
	return nil
}
