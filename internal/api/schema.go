package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	jobStatusSchemaOnce sync.Once
	jobStatusSchema     *jsonschema.Schema
	jobStatusSchemaErr  error
)

// jobStatusSchemaMap describes the fields the poller relies on. Extra fields
// are allowed so the service can grow its payload.
func jobStatusSchemaMap() map[string]any {
	nullable := func(kind string) map[string]any {
		return map[string]any{"type": []string{kind, "null"}}
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"status"},
		"properties": map[string]any{
			"job_id":       nullable("string"),
			"status":       map[string]any{"type": "string", "minLength": 1},
			"progress":     map[string]any{"type": "number"},
			"current_step": nullable("string"),
			"result":       nullable("object"),
			"error":        nullable("string"),
		},
	}
}

func compiledJobStatusSchema() (*jsonschema.Schema, error) {
	jobStatusSchemaOnce.Do(func() {
		raw, err := json.Marshal(jobStatusSchemaMap())
		if err != nil {
			jobStatusSchemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("job_status.json", bytes.NewReader(raw)); err != nil {
			jobStatusSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		jobStatusSchema, jobStatusSchemaErr = compiler.Compile("job_status.json")
	})
	return jobStatusSchema, jobStatusSchemaErr
}

func validateJobStatus(body []byte) error {
	schema, err := compiledJobStatusSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("unmarshal job status: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("job status does not match schema: %w", err)
	}
	return nil
}
