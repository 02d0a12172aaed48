package runtimeconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "source_url": {"type": "string"},
    "wordpress_domain": {"type": "string"},
    "username": {"type": "string"},
    "apikey": {"type": "string"},
    "collection": {"type": "string"},
    "fingerprint_file": {"type": "string"},
    "timeout": {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"},
    "fetch_concurrency": {"type": "integer", "minimum": 1},
    "flush_each_entry": {"type": "boolean"},
    "status": {"type": "string"},
    "requests_per_second": {"type": "number", "minimum": 0},
    "metrics_file": {"type": "string"},
    "markdown": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "extensions": {"type": "array", "items": {"type": "string"}},
        "sanitize": {"type": "boolean"},
        "hard_wraps": {"type": "boolean"},
        "safe_mode": {"type": "boolean"}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "provider": {"type": "string"},
        "level": {"type": "string"},
        "format": {"type": "string"},
        "add_source": {"type": "boolean"},
        "focus": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("config.schema.json", strings.NewReader(configSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("config.schema.json")
	})
	return compiledSchema, schemaErr
}

// checkStructure validates a JSON document against the config schema.
func checkStructure(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("pagesync config: compile schema: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return configError(fmt.Errorf("pagesync config: decode: %w", err))
	}

	if err := schema.Validate(payload); err != nil {
		var validationErr *jsonschema.ValidationError
		if !errors.As(err, &validationErr) {
			return configError(err)
		}
		var fields goerrors.ValidationErrors
		for _, issue := range collectIssues(validationErr) {
			fields = append(fields, goerrors.FieldError{Field: issue.location, Message: issue.message})
		}
		return goerrors.NewValidation("configuration is invalid", fields...).
			WithTextCode(TextCodeConfigInvalid)
	}
	return nil
}

type schemaIssue struct {
	location string
	message  string
}

func collectIssues(err *jsonschema.ValidationError) []schemaIssue {
	var issues []schemaIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			location := strings.TrimPrefix(strings.TrimSpace(node.InstanceLocation), "/")
			if location == "" {
				location = "#"
			}
			issues = append(issues, schemaIssue{
				location: strings.ReplaceAll(location, "/", "."),
				message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}
