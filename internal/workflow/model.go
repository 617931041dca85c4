// Package workflow implements the declarative workflow model and its
// executor: YAML documents of tool-invocation steps with variables,
// per-step retry and delay policies, persisted resume state, and pluggable
// output parsers.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// Variable declares one workflow input.
type Variable struct {
	Type    string `yaml:"type,omitempty" json:"type,omitempty"`
	Label   string `yaml:"label,omitempty" json:"label,omitempty"`
	Default any    `yaml:"default,omitempty" json:"default,omitempty"`
}

// RetryPolicy controls per-step retry.
type RetryPolicy struct {
	Count     int `yaml:"count" json:"count"`
	BackoffMS int `yaml:"backoff_ms,omitempty" json:"backoff_ms,omitempty"`
}

// ParserDef is a post-step output transformer: inline JavaScript or a file
// path, exactly one of the two.
type ParserDef struct {
	UITreeSourceStepID string `yaml:"ui_tree_source_step_id,omitempty" json:"ui_tree_source_step_id,omitempty"`
	JavascriptCode     string `yaml:"javascript_code,omitempty" json:"javascript_code,omitempty"`
	JavascriptFilePath string `yaml:"javascript_file_path,omitempty" json:"javascript_file_path,omitempty"`
}

func (p *ParserDef) validate() error {
	hasCode := strings.TrimSpace(p.JavascriptCode) != ""
	hasPath := strings.TrimSpace(p.JavascriptFilePath) != ""
	if hasCode == hasPath {
		return fmt.Errorf("parser requires exactly one of javascript_code or javascript_file_path")
	}
	return nil
}

// Step is one tool invocation.
type Step struct {
	ID              string         `yaml:"id" json:"id"`
	Name            string         `yaml:"name,omitempty" json:"name,omitempty"`
	Group           string         `yaml:"group,omitempty" json:"group,omitempty"`
	ToolName        string         `yaml:"tool_name" json:"tool_name"`
	Arguments       map[string]any `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	ContinueOnError bool           `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
	DelayMS         int            `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
	Retry           *RetryPolicy   `yaml:"retry,omitempty" json:"retry,omitempty"`
	Parser          *ParserDef     `yaml:"parser,omitempty" json:"parser,omitempty"`
}

// Document is one declarative workflow.
type Document struct {
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string              `yaml:"version,omitempty" json:"version,omitempty"`
	Variables   map[string]Variable `yaml:"variables,omitempty" json:"variables,omitempty"`
	Steps       []Step              `yaml:"steps" json:"steps"`
	Parser      *ParserDef          `yaml:"parser,omitempty" json:"parser,omitempty"`
}

// documentSchema is the structural contract workflow files must satisfy
// before semantic validation runs.
const documentSchema = `{
  "type": "object",
  "required": ["name", "steps"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "version": {"type": "string"},
    "variables": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "type": {"type": "string"},
          "label": {"type": "string"}
        }
      }
    },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "tool_name"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "tool_name": {"type": "string", "minLength": 1},
          "arguments": {"type": "object"},
          "continue_on_error": {"type": "boolean"},
          "delay_ms": {"type": "integer", "minimum": 0},
          "retry": {
            "type": "object",
            "required": ["count"],
            "properties": {
              "count": {"type": "integer", "minimum": 0},
              "backoff_ms": {"type": "integer", "minimum": 0}
            }
          }
        }
      }
    }
  }
}`

var compiledDocumentSchema = jsonschema.MustCompileString("workflow.json", documentSchema)

// Parse decodes a YAML workflow document and validates its structure.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, uia.ErrInvalidArgument("decode workflow: %v", err)
	}
	if err := validateAgainstSchema(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and parses a workflow file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func validateAgainstSchema(doc *Document) error {
	// Round-trip through JSON so the schema sees wire-shaped values.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if err := compiledDocumentSchema.Validate(v); err != nil {
		return uia.ErrInvalidArgument("workflow document: %v", err)
	}
	return nil
}

// ToolChecker answers whether a tool name is known; the registry satisfies
// it.
type ToolChecker interface {
	Has(name string) bool
}

// Validate performs semantic checks: unique step ids, recognised tools,
// well-formed parser definitions.
func (d *Document) Validate(toolsKnown ToolChecker) error {
	seen := map[string]bool{}
	for i := range d.Steps {
		s := &d.Steps[i]
		if seen[s.ID] {
			return uia.ErrInvalidArgument("duplicate step id %q", s.ID)
		}
		seen[s.ID] = true
		if toolsKnown != nil && !toolsKnown.Has(s.ToolName) {
			return uia.ErrInvalidArgument("step %q: unknown tool %q", s.ID, s.ToolName)
		}
		if s.Parser != nil {
			if err := s.Parser.validate(); err != nil {
				return uia.ErrInvalidArgument("step %q: %v", s.ID, err)
			}
		}
	}
	if d.Parser != nil {
		if err := d.Parser.validate(); err != nil {
			return uia.ErrInvalidArgument("workflow parser: %v", err)
		}
	}
	return nil
}

// StepIndex resolves a step id to its position.
func (d *Document) StepIndex(id string) (int, bool) {
	for i, s := range d.Steps {
		if s.ID == id {
			return i, true
		}
	}
	return 0, false
}

var variableRef = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// SubstituteVariables replaces {{name}} references in s from vars. The
// substitution is lexical and non-recursive; unknown references are left
// intact.
func SubstituteVariables(s string, vars map[string]any) string {
	return variableRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := variableRef.FindStringSubmatch(ref)
		if len(m) != 2 {
			return ref
		}
		v, ok := vars[m[1]]
		if !ok {
			return ref
		}
		switch t := v.(type) {
		case string:
			return t
		case nil:
			return ""
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return fmt.Sprint(t)
			}
			return strings.Trim(string(b), `"`)
		}
	})
}

// substituteInValue walks an argument tree replacing variable references in
// every string.
func substituteInValue(v any, vars map[string]any) any {
	switch t := v.(type) {
	case string:
		return SubstituteVariables(t, vars)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = substituteInValue(val, vars)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = substituteInValue(val, vars)
		}
		return out
	default:
		return v
	}
}
