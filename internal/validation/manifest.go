package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lex00/cdk-example-go/construct"
)

const manifestSchemaURL = "file:///cdk-example/manifest.schema.json"

//go:embed schema/manifest.schema.json
var manifestSchemaJSON []byte

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

func loadManifestSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(manifestSchemaURL, bytes.NewReader(manifestSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(manifestSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateManifest checks manifest against the cloud assembly manifest schema.
func ValidateManifest(manifest construct.Manifest) error {
	sch, err := loadManifestSchema()
	if err != nil {
		return fmt.Errorf("loading manifest schema: %w", err)
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return err
	}
	var document any
	if err := json.Unmarshal(data, &document); err != nil {
		return err
	}
	return sch.Validate(document)
}

// ValidateManifests checks the manifest of asm and every nested assembly.
func ValidateManifests(asm *construct.Assembly) []Issue {
	var issues []Issue
	var walk func(a *construct.Assembly, where string)
	walk = func(a *construct.Assembly, where string) {
		if err := ValidateManifest(a.Manifest); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Stack:    where,
				Check:    "manifest",
				Message:  err.Error(),
			})
		}
		for _, n := range a.Nested {
			walk(n, n.DirectoryName)
		}
	}
	walk(asm, construct.ManifestFile)
	return issues
}
