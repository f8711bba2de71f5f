package flow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hupe1980/agentflow/core"
)

// OutputSchemaProcessor constrains generation to the agent's declared
// response schema. Structured output and function calling are mutually
// exclusive, so request assembly fails when the agent carries both.
type OutputSchemaProcessor struct{}

// NewOutputSchemaProcessor creates a new output schema processor.
func NewOutputSchemaProcessor() *OutputSchemaProcessor { return &OutputSchemaProcessor{} }

// Name returns the processor's identifier.
func (p *OutputSchemaProcessor) Name() string { return "output_schema" }

// ProcessRequest sets the response schema on the request.
func (p *OutputSchemaProcessor) ProcessRequest(ictx *core.InvocationContext, req *core.Request, agent FlowAgent) error {
	schema := agent.OutputSchema()
	if schema == nil {
		return nil
	}
	if len(agent.GetTools()) > 0 {
		return fmt.Errorf("agent %s: output schema cannot be combined with tools", agent.GetName())
	}
	req.ResponseSchema = schema
	return nil
}

// OutputValidator checks final response text against a compiled JSON schema
// and returns the parsed value. Compile once at agent construction; Validate
// per final response.
type OutputValidator struct {
	schema *jsonschema.Schema
}

// NewOutputValidator compiles the raw schema document. Compilation failures
// surface synchronously so a bad schema never reaches run time.
func NewOutputValidator(doc map[string]any) (*OutputValidator, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal output schema: %w", err)
	}
	resource, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse output schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("output_schema.json", resource); err != nil {
		return nil, fmt.Errorf("add output schema resource: %w", err)
	}
	schema, err := compiler.Compile("output_schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	return &OutputValidator{schema: schema}, nil
}

// Validate parses the raw JSON text and checks it against the schema,
// returning the decoded value on success.
func (v *OutputValidator) Validate(raw string) (any, error) {
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(raw)))
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := v.schema.Validate(value); err != nil {
		return nil, fmt.Errorf("response does not match output schema: %w", err)
	}
	return value, nil
}
