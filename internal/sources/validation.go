package sources

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/source.json
var sourceSchemaJSON string

var sourceSchema = jsonschema.MustCompileString("source.json", sourceSchemaJSON)

// Validate checks s against the source invariants. Structural invariants
// are checked first, then the JSON schema of the document. All failures are
// collected into a single *ValidationError.
func Validate(s *Source) error {
	var errs []FieldError

	if a := s.Automation; a != nil && a.Parser != nil && a.RegexParsing != nil {
		errs = append(errs, FieldError{
			Field:   "automation",
			Message: "parser and regexParsing are mutually exclusive",
		})
	}

	schemaErrs, err := validateSchema(s)
	if err != nil {
		return err
	}
	errs = append(errs, schemaErrs...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateSchema(s *Source) ([]FieldError, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal source: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal source: %w", err)
	}

	err = sourceSchema.Validate(doc)
	if err == nil {
		return nil, nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("validate source: %w", err)
	}

	var out []FieldError
	collectLeaves(verr, &out)
	return out, nil
}

func collectLeaves(verr *jsonschema.ValidationError, out *[]FieldError) {
	if len(verr.Causes) == 0 {
		*out = append(*out, FieldError{
			Field:   fieldPath(verr.InstanceLocation),
			Message: verr.Message,
		})
		return
	}
	for _, c := range verr.Causes {
		collectLeaves(c, out)
	}
}

// fieldPath converts a JSON pointer (/automation/schedule) to a dotted path.
func fieldPath(pointer string) string {
	p := strings.TrimPrefix(pointer, "/")
	p = strings.ReplaceAll(p, "/", ".")
	p = strings.ReplaceAll(p, "~1", "/")
	return strings.ReplaceAll(p, "~0", "~")
}
