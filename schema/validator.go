package seedschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed story_seed.schema.json
var storySeedSchemaJSON string

// StorySeed is one story in a seed file.
type StorySeed struct {
	StoryUUID *string  `json:"story_uuid,omitempty"`
	Title     string   `json:"title"`
	PubDate   string   `json:"pub_date"`
	Publisher string   `json:"publisher"`
	Category  *string  `json:"category,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// PubDateTime parses the validated pub_date.
func (s *StorySeed) PubDateTime() (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(s.PubDate))
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateStorySeedPayload validates one seed document against the
// embedded schema plus the semantic rules the schema cannot express.
func ValidateStorySeedPayload(payload json.RawMessage) (*StorySeed, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var seed StorySeed
	if err := json.Unmarshal(normalized, &seed); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&seed); err != nil {
		return nil, err
	}

	return &seed, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("story_seed.schema.json", strings.NewReader(storySeedSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("story_seed.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(seed *StorySeed) error {
	if seed == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(seed.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(seed.Publisher) == "" {
		return fmt.Errorf("publisher must not be empty")
	}
	if _, err := time.Parse(time.RFC3339, strings.TrimSpace(seed.PubDate)); err != nil {
		return fmt.Errorf("pub_date must be RFC3339: %w", err)
	}

	if seed.Category != nil {
		name := strings.TrimSpace(*seed.Category)
		if name == "" {
			return fmt.Errorf("category must not be empty when present")
		}
		if !strings.Contains(name, "_") {
			return fmt.Errorf("category must be of the form {country}_{section}")
		}
	}

	for i, tag := range seed.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("tags[%d] must not be empty", i)
		}
	}

	return nil
}
