package middleware

import (
	"regexp"
	"strings"
	"sync"

	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

// requestSchema binds one JSON Schema to an HTTP method and path pattern.
type requestSchema struct {
	method  string
	pattern *regexp.Regexp
	name    string
	schema  *gojsonschema.Schema
}

// SchemaLoader validates request bodies against the embedded JSON Schemas
// for the write endpoints.
type SchemaLoader struct {
	schemas []requestSchema
}

var (
	loaderOnce   sync.Once
	sharedLoader *SchemaLoader
)

// schemaSources maps a schema name to its JSON Schema document. Shapes
// mirror the service-layer submission structs.
var schemaSources = map[string]string{
	"login_request": `{
		"type": "object",
		"required": ["username", "password"],
		"additionalProperties": false,
		"properties": {
			"username": {"type": "string", "minLength": 1, "maxLength": 64},
			"password": {"type": "string", "minLength": 1}
		}
	}`,
	"signup_request": `{
		"type": "object",
		"required": ["username", "password"],
		"additionalProperties": false,
		"properties": {
			"username": {"type": "string", "minLength": 1, "maxLength": 64},
			"password": {"type": "string", "minLength": 6},
			"email": {"type": "string"},
			"timezone": {"type": "string"}
		}
	}`,
	"exam_submission": `{
		"type": "object",
		"required": ["exam_date", "paper_name", "sections"],
		"additionalProperties": false,
		"properties": {
			"exam_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
			"paper_name": {"type": "string", "minLength": 1},
			"total_minutes": {"type": "number", "minimum": 0},
			"sections": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["section_name", "correct_count", "total_questions", "minutes_used"],
					"additionalProperties": false,
					"properties": {
						"section_name": {"type": "string", "minLength": 1},
						"correct_count": {"type": "integer", "minimum": 0},
						"total_questions": {"type": "integer", "minimum": 0},
						"minutes_used": {"type": "number", "minimum": 0}
					}
				}
			}
		}
	}`,
	"review_note_submission": `{
		"type": "object",
		"required": ["note_date", "section_name"],
		"additionalProperties": false,
		"properties": {
			"note_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
			"paper_name": {"type": "string"},
			"section_name": {"type": "string", "minLength": 1},
			"wrong_count": {"type": "integer", "minimum": 0},
			"knowledge_gap": {"type": "integer", "minimum": 0},
			"method_unfamiliar": {"type": "integer", "minimum": 0},
			"careless_trap": {"type": "integer", "minimum": 0},
			"reason_text": {"type": "string"},
			"next_action_text": {"type": "string"}
		}
	}`,
	"strategy_save": `{
		"type": "object",
		"required": ["quant_seconds_per_question", "data_minutes_per_passage", "logic_seconds_per_question"],
		"additionalProperties": false,
		"properties": {
			"quant_seconds_per_question": {"type": "integer", "minimum": 1},
			"data_minutes_per_passage": {"type": "integer", "minimum": 1},
			"logic_seconds_per_question": {"type": "integer", "minimum": 1},
			"quant_easy_only": {"type": "boolean"},
			"data_skip_on_timeout": {"type": "boolean"},
			"review_window_days": {"type": "integer", "minimum": 1},
			"custom_notes": {"type": "string"}
		}
	}`,
	"task_toggle": `{
		"type": "object",
		"required": ["index", "done"],
		"additionalProperties": false,
		"properties": {
			"index": {"type": "integer", "minimum": 0},
			"done": {"type": "boolean"}
		}
	}`,
	"task_add": `{
		"type": "object",
		"required": ["text"],
		"additionalProperties": false,
		"properties": {
			"text": {"type": "string", "minLength": 1, "maxLength": 200}
		}
	}`,
	"profile_update": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"email": {"type": "string"},
			"timezone": {"type": "string"}
		}
	}`,
	"password_update": `{
		"type": "object",
		"required": ["new_password"],
		"additionalProperties": false,
		"properties": {
			"current_password": {"type": "string"},
			"new_password": {"type": "string", "minLength": 6}
		}
	}`,
}

// schemaBindings routes write endpoints to their request schema.
var schemaBindings = []struct {
	method  string
	pattern string
	name    string
}{
	{"POST", `^/v1/auth/login$`, "login_request"},
	{"POST", `^/v1/auth/signup$`, "signup_request"},
	{"POST", `^/v1/exams$`, "exam_submission"},
	{"POST", `^/v1/reviews$`, "review_note_submission"},
	{"PUT", `^/v1/strategy$`, "strategy_save"},
	{"PUT", `^/v1/checkin/tasks$`, "task_toggle"},
	{"POST", `^/v1/checkin/tasks$`, "task_add"},
	{"PUT", `^/v1/profile$`, "profile_update"},
	{"PUT", `^/v1/profile/password$`, "password_update"},
}

// AutoLoadSchemas compiles the embedded request schemas. Compilation
// failures are programmer errors and panic at startup.
func AutoLoadSchemas() *SchemaLoader {
	loaderOnce.Do(func() {
		loader := &SchemaLoader{}
		for _, binding := range schemaBindings {
			source, ok := schemaSources[binding.name]
			if !ok {
				panic("no schema source for " + binding.name)
			}
			schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
			if err != nil {
				panic("invalid schema " + binding.name + ": " + err.Error())
			}
			loader.schemas = append(loader.schemas, requestSchema{
				method:  binding.method,
				pattern: regexp.MustCompile(binding.pattern),
				name:    binding.name,
				schema:  schema,
			})
		}
		sharedLoader = loader
	})
	return sharedLoader
}

// DetermineRequestSchemaFromPath returns the schema name registered for the
// endpoint, or "" when the endpoint has no request schema.
func (l *SchemaLoader) DetermineRequestSchemaFromPath(path, method string) string {
	for _, s := range l.schemas {
		if s.method == method && s.pattern.MatchString(path) {
			return s.name
		}
	}
	return ""
}

// ValidateData validates a decoded JSON document against a named schema.
func (l *SchemaLoader) ValidateData(data interface{}, schemaName string) error {
	for _, s := range l.schemas {
		if s.name != schemaName {
			continue
		}
		result, err := s.schema.Validate(gojsonschema.NewGoLoader(data))
		if err != nil {
			return contextutils.WrapError(err, "schema validation failed to run")
		}
		if result.Valid() {
			return nil
		}
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return contextutils.NewAppError(
			contextutils.ErrorCodeValidationFailed,
			contextutils.SeverityWarn,
			"Request body failed validation",
			strings.Join(reasons, "; "),
		)
	}
	return contextutils.ErrorWithContextf("unknown schema: %s", schemaName)
}
