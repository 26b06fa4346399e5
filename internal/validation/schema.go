// Package validation checks request and recipe files against the embedded
// JSON Schemas before they are decoded.
package validation

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/paintlab/paintopt/schemas"
)

// Schema is an embedded JSON Schema, compiled on first use.
type Schema struct {
	name    string
	compile func() *jsonschema.Schema
}

var (
	// Request describes optimization request documents.
	Request = newSchema("request.schema.json", schemas.RequestSchemaJSON)
	// Recipe describes recipe documents.
	Recipe = newSchema("recipe.schema.json", schemas.RecipeSchemaJSON)
)

var printer = message.NewPrinter(language.English)

func newSchema(name, raw string) *Schema {
	return &Schema{
		name: name,
		compile: sync.OnceValue(func() *jsonschema.Schema {
			doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
			if err != nil {
				panic(fmt.Sprintf("embedded %s is not JSON: %v", name, err))
			}
			c := jsonschema.NewCompiler()
			if err := c.AddResource(name, doc); err != nil {
				panic(fmt.Sprintf("embedded %s: %v", name, err))
			}
			sch, err := c.Compile(name)
			if err != nil {
				panic(fmt.Sprintf("embedded %s does not compile: %v", name, err))
			}
			return sch
		}),
	}
}

// Validate checks a decoded document and returns one message per failing
// location, sorted. A nil result means the document is valid.
func (s *Schema) Validate(doc any) []string {
	err := s.compile().Validate(jsonValue(doc))
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("%s: %v", s.name, err)}
	}

	var msgs []string
	stack := []*jsonschema.ValidationError{ve}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(e.Causes) > 0 {
			stack = append(stack, e.Causes...)
			continue
		}
		msgs = append(msgs, "/"+strings.Join(e.InstanceLocation, "/")+": "+e.ErrorKind.LocalizedString(printer))
	}
	slices.Sort(msgs)
	return slices.Compact(msgs)
}

// ValidateBytes decodes YAML or JSON and validates it. A document that does
// not parse yields a single parse error message.
func (s *Schema) ValidateBytes(data []byte) []string {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	return s.Validate(doc)
}

// ValidateFile validates the file at path. The error is only for I/O
// failures; schema violations are returned as messages.
func (s *Schema) ValidateFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return s.ValidateBytes(data), nil
}

// ValidateRequestFile validates an optimization request file.
func ValidateRequestFile(path string) ([]string, error) { return Request.ValidateFile(path) }

// ValidateRecipeFile validates a recipe file.
func ValidateRecipeFile(path string) ([]string, error) { return Recipe.ValidateFile(path) }

// ValidateRequestBytes validates raw request bytes.
func ValidateRequestBytes(data []byte) []string { return Request.ValidateBytes(data) }

// ValidateRecipeBytes validates raw recipe bytes.
func ValidateRecipeBytes(data []byte) []string { return Recipe.ValidateBytes(data) }

// ValidateRequest validates an already decoded request, such as a request
// body.
func ValidateRequest(doc any) []string { return Request.Validate(doc) }

// ValidateRecipe validates an already decoded recipe.
func ValidateRecipe(doc any) []string { return Recipe.Validate(doc) }

// jsonValue rewrites a decoded YAML or JSON tree into the shapes the schema
// validator accepts: string map keys and float64 numbers.
func jsonValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = jsonValue(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = jsonValue(e)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, e := range val {
			out = append(out, jsonValue(e))
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}
