package validator

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind names one of the records described by entityHistory.json.
type Kind string

const (
	KindEntityVersionHistory Kind = "history"
	KindEntityVersion        Kind = "version"
	KindChangeDescription    Kind = "change"
)

const schemaURL = "embed://entityHistory.json"

var locations = map[Kind]string{
	KindEntityVersionHistory: schemaURL,
	KindEntityVersion:        schemaURL + "#/definitions/entityVersion",
	KindChangeDescription:    schemaURL + "#/definitions/changeDescription",
}

// ParseKind maps a user supplied name onto a Kind.
func ParseKind(value string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := locations[k]; !ok {
		return "", fmt.Errorf("unknown schema kind %q", value)
	}
	return k, nil
}

// Violation is a single schema failure reported against an instance field.
type Violation struct {
	Field   string `json:"field"`
	Keyword string `json:"keyword"`
	Message string `json:"message"`
}

// Validator validates raw JSON documents against the compiled schemas.
type Validator struct {
	schemas map[Kind]*jsonschema.Schema
	printer *message.Printer
}

// NewValidator compiles every known schema location.
func NewValidator() (*Validator, error) {
	compiler := GetCompiler()

	schemas := make(map[Kind]*jsonschema.Schema, len(locations))
	for k, location := range locations {
		compiled, err := compiler.Compile(location)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", k, err)
		}
		schemas[k] = compiled
	}

	return &Validator{
		schemas: schemas,
		printer: message.NewPrinter(language.English),
	}, nil
}

var loadDefault = sync.OnceValues(NewValidator)

// Default returns the process wide validator, compiling it on first use.
func Default() (*Validator, error) {
	return loadDefault()
}

// Validate checks data against the schema for k. A nil slice means the document
// is valid. The error return is reserved for malformed JSON and unknown kinds.
func (v *Validator) Validate(k Kind, data []byte) ([]Violation, error) {
	compiled, ok := v.schemas[k]
	if !ok {
		return nil, fmt.Errorf("unknown schema kind %q", k)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed json: %w", err)
	}

	err = compiled.Validate(doc)
	if err == nil {
		return nil, nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return nil, err
	}

	violations := []Violation{}
	v.collect(validationErr, &violations)
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Field != violations[j].Field {
			return violations[i].Field < violations[j].Field
		}
		return violations[i].Keyword < violations[j].Keyword
	})

	return violations, nil
}

func (v *Validator) collect(err *jsonschema.ValidationError, acc *[]Violation) {
	if len(err.Causes) > 0 {
		for _, cause := range err.Causes {
			v.collect(cause, acc)
		}
		return
	}

	location := strings.Join(err.InstanceLocation, ".")
	msg := err.ErrorKind.LocalizedString(v.printer)

	switch typed := err.ErrorKind.(type) {
	case *kind.Required:
		for _, missing := range typed.Missing {
			*acc = append(*acc, Violation{Field: joinField(location, missing), Keyword: "required", Message: msg})
		}
		return
	case *kind.AdditionalProperties:
		for _, extra := range typed.Properties {
			*acc = append(*acc, Violation{Field: joinField(location, extra), Keyword: "additionalProperties", Message: msg})
		}
		return
	}

	*acc = append(*acc, Violation{Field: location, Keyword: keywordOf(err.ErrorKind), Message: msg})
}

func keywordOf(k jsonschema.ErrorKind) string {
	path := k.KeywordPath()
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

func joinField(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
