// Package schema validates the on-disk JSON documents jobsync reads back:
// the record store, classification checkpoints and partial results.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed store.schema.json
var storeSchemaJSON []byte

//go:embed checkpoint.schema.json
var checkpointSchemaJSON []byte

//go:embed partial_results.schema.json
var partialSchemaJSON []byte

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Document string
	Errors   []FieldError
}

// FieldError is a single violation at a field path.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s does not match schema", ve.Document)
	for i, fe := range ve.Errors {
		if i == 3 {
			fmt.Fprintf(&sb, "; and %d more", len(ve.Errors)-i)
			break
		}
		fmt.Fprintf(&sb, "; %s: %s", fe.Field, fe.Message)
	}
	return sb.String()
}

type compiled struct {
	once   sync.Once
	raw    []byte
	schema *gojsonschema.Schema
	err    error
}

func (c *compiled) get() (*gojsonschema.Schema, error) {
	c.once.Do(func() {
		c.schema, c.err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(c.raw))
	})
	return c.schema, c.err
}

var (
	storeSchema      = &compiled{raw: storeSchemaJSON}
	checkpointSchema = &compiled{raw: checkpointSchemaJSON}
	partialSchema    = &compiled{raw: partialSchemaJSON}
)

// ValidateStore checks a serialized record store.
func ValidateStore(doc []byte) error {
	return validate("store", storeSchema, doc)
}

// ValidateCheckpoint checks a serialized classification checkpoint.
func ValidateCheckpoint(doc []byte) error {
	return validate("checkpoint", checkpointSchema, doc)
}

// ValidatePartialResults checks a serialized partial results file.
func ValidatePartialResults(doc []byte) error {
	return validate("partial results", partialSchema, doc)
}

func validate(name string, c *compiled, doc []byte) error {
	s, err := c.get()
	if err != nil {
		return fmt.Errorf("compiling %s schema: %w", name, err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		// malformed JSON surfaces here, before any schema rule runs
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Document: name}
	for _, re := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{Field: re.Field(), Message: re.Description()})
	}
	return ve
}
