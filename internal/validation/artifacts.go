// Package validation checks artifact documents against both their typed
// contracts and the embedded JSON schema. Both validators must agree: the
// typed layer catches structural drift, the schema layer catches format
// violations the types cannot express.
package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/example/runvault/internal/core/pathsafe"
	"github.com/example/runvault/internal/models"
)

//go:embed artifacts.schema.json
var schemaDocument []byte

const schemaURL = "https://runvault.example/schemas/artifacts.schema.json"

// Validator holds the compiled schema fragments. Construct once and share;
// there is no package-level cache.
type Validator struct {
	summary      *jsonschema.Schema
	health       *jsonschema.Schema
	availability *jsonschema.Schema
	report       *jsonschema.Schema
	index        *jsonschema.Schema
}

// New compiles the embedded artifact schema.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaDocument)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	v := &Validator{}
	for _, frag := range []struct {
		name   string
		target **jsonschema.Schema
	}{
		{"run_summary", &v.summary},
		{"run_health", &v.health},
		{"provider_availability", &v.availability},
		{"run_report", &v.report},
		{"run_index", &v.index},
	} {
		schema, err := compiler.Compile(schemaURL + "#/$defs/" + frag.name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", frag.name, err)
		}
		*frag.target = schema
	}
	return v, nil
}

// RunSummary validates a run_summary document.
func (v *Validator) RunSummary(data []byte) []string {
	var doc models.RunSummary
	return validateBoth("run_summary", v.summary, data, &doc, doc.Validate)
}

// RunHealth validates a run_health document.
func (v *Validator) RunHealth(data []byte) []string {
	var doc models.RunHealth
	return validateBoth("run_health", v.health, data, &doc, doc.Validate)
}

// ProviderAvailability validates a provider_availability document.
func (v *Validator) ProviderAvailability(data []byte) []string {
	var doc models.ProviderAvailability
	return validateBoth("provider_availability", v.availability, data, &doc, doc.Validate)
}

// RunReport validates a run_report document.
func (v *Validator) RunReport(data []byte) []string {
	var doc models.RunReport
	return validateBoth("run_report", v.report, data, &doc, doc.Validate)
}

// RunIndex validates a run's index document. It has no typed Validate; the
// schema plus strict decoding carry the contract.
func (v *Validator) RunIndex(data []byte) []string {
	var errs []string
	var doc models.RunIndexDoc
	if err := strictUnmarshal(data, &doc); err != nil {
		errs = append(errs, fmt.Sprintf("run_index: %v", err))
	}
	if err := validateAgainstSchema(v.index, data); err != nil {
		errs = append(errs, fmt.Sprintf("run_index: schema: %v", err))
	}
	return errs
}

// RunDir validates every well-known document in a run directory. A missing
// document is reported as an issue, not an error; only an unresolvable path
// fails the whole check.
func (v *Validator) RunDir(dir string) ([]string, error) {
	var issues []string
	docs := []struct {
		name     string
		validate func([]byte) []string
	}{
		{models.RunIndexFile, v.RunIndex},
		{models.RunSummaryFile, v.RunSummary},
		{models.RunHealthFile, v.RunHealth},
		{models.ProviderAvailabilityFile, v.ProviderAvailability},
		{models.RunReportFile, v.RunReport},
	}
	for _, doc := range docs {
		path, err := pathsafe.Resolve(dir, doc.name)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: unreadable: %v", doc.name, err))
			continue
		}
		issues = append(issues, doc.validate(data)...)
	}
	return issues, nil
}

// validateBoth runs the typed validator and the schema validator and merges
// their findings.
func validateBoth(name string, schema *jsonschema.Schema, data []byte, target any, typed func() []string) []string {
	var errs []string
	if err := strictUnmarshal(data, target); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", name, err))
	} else {
		errs = append(errs, typed()...)
	}
	if err := validateAgainstSchema(schema, data); err != nil {
		errs = append(errs, fmt.Sprintf("%s: schema: %v", name, err))
	}
	return errs
}

func validateAgainstSchema(schema *jsonschema.Schema, data []byte) error {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	return schema.Validate(payload)
}

func strictUnmarshal(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("unexpected trailing JSON payload")
	}
	return nil
}
