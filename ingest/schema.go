package ingest

import (
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// rowSchema is the expected shape of a raw telemetry row. The check is
// diagnostic only: rows that fail validation still go through normalization,
// which has its own per-field defaults. The schema stays deliberately loose
// about value types since sources disagree on encodings; it exists to flag
// structurally broken exports early.
const rowSchema = `{
	"type": "object",
	"required": ["hostname"],
	"properties": {
		"hostname": {"type": "string"},
		"timestamp": {"type": ["string", "null"]},
		"pid": {"type": ["string", "number", "null"]},
		"ppid": {"type": ["string", "number", "null"]},
		"name": {"type": ["string", "null"]},
		"exe_path": {"type": ["string", "null"]},
		"cmdline": {"type": ["string", "null"]},
		"user": {"type": ["string", "null"]},
		"os_type": {"type": ["string", "null"]},
		"remote_ips": {"type": ["string", "array", "null"]},
		"dns_queries": {"type": ["string", "array", "null"]},
		"registry_writes": {"type": ["string", "array", "null"]},
		"child_processes": {"type": ["string", "array", "null"]},
		"loaded_modules": {"type": ["string", "array", "null"]},
		"outbound_bytes": {"type": ["string", "number", "array", "null"]},
		"inbound_bytes": {"type": ["string", "number", "null"]},
		"conn_count": {"type": ["string", "number", "null"]}
	}
}`

// recordValidator wraps the compiled row schema. A nil validator (schema
// failed to compile) degrades to a no-op; validation must never block
// ingestion.
type recordValidator struct {
	schema *gojsonschema.Schema
	logger *zap.SugaredLogger
	warned int
}

// maxValidationWarnings caps log noise from a systematically malformed file.
const maxValidationWarnings = 10

func newRecordValidator(logger *zap.SugaredLogger) *recordValidator {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(rowSchema))
	if err != nil {
		logger.Warnf("row schema failed to compile, skipping validation: %v", err)
		return &recordValidator{logger: logger}
	}
	return &recordValidator{schema: schema, logger: logger}
}

func (v *recordValidator) check(index int, row map[string]interface{}) {
	if v.schema == nil || v.warned >= maxValidationWarnings {
		return
	}
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(row))
	if err != nil || result.Valid() {
		return
	}
	v.warned++
	for _, desc := range result.Errors() {
		v.logger.Debugw("row failed schema validation", "row", index, "problem", desc.String())
	}
	if v.warned == maxValidationWarnings {
		v.logger.Debug("further schema validation warnings suppressed")
	}
}
