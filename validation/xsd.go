// Package validation provides schema validation for SIFEN electronic
// documents: a modular, load-or-skip check against SET's official XSDs
// (spec §4.5), adapted from the teacher's shallow structural-check idiom
// since a full XSD parser is out of scope.
package validation

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/gaxoblanco/sifen-go/cdc"
)

//go:embed schemas/xsd/*
var schemaFS embed.FS

// XSDValidator validates SIFEN documents against SET's official schemas.
type XSDValidator struct {
	schemasPath string
	schemas     map[string]*Schema
	mutex       sync.RWMutex
}

// Schema represents a loaded XSD schema.
type Schema struct {
	Name     string
	Version  string
	Document *etree.Document
	Content  []byte
}

// ValidationResult represents the result of XSD validation.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors,omitempty"`
	Schema  string   `json:"schema,omitempty"`
	Version string   `json:"version,omitempty"`
}

// NewXSDValidator creates a new XSD validator using the embedded schemas.
func NewXSDValidator() *XSDValidator {
	return &XSDValidator{
		schemasPath: "schemas/xsd",
		schemas:     make(map[string]*Schema),
	}
}

// NewXSDValidatorWithPath creates a new XSD validator that falls back to a
// custom on-disk schemas directory when a schema isn't embedded.
func NewXSDValidatorWithPath(schemasPath string) *XSDValidator {
	return &XSDValidator{
		schemasPath: schemasPath,
		schemas:     make(map[string]*Schema),
	}
}

// LoadSchema loads an XSD schema by name and version, trying the embedded
// copy first and falling back to schemasPath on disk.
func (v *XSDValidator) LoadSchema(name, version string) (*Schema, error) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	schemaKey := fmt.Sprintf("%s_v%s", name, version)

	if schema, exists := v.schemas[schemaKey]; exists {
		return schema, nil
	}

	schemaFile := fmt.Sprintf("%s_v%s.xsd", name, version)
	schemaPath := filepath.Join("schemas/xsd", schemaFile)

	var content []byte
	var err error

	if data, embErr := schemaFS.ReadFile(schemaPath); embErr == nil {
		content = data
	} else {
		localPath := filepath.Join(v.schemasPath, schemaFile)
		if content, err = os.ReadFile(localPath); err != nil {
			return nil, fmt.Errorf("failed to load schema %s: %w", schemaFile, err)
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", schemaFile, err)
	}

	schema := &Schema{Name: name, Version: version, Document: doc, Content: content}
	v.schemas[schemaKey] = schema
	return schema, nil
}

// ValidateDE validates a signed DE (or the rDE envelope around it) against
// the schema for its document kind and SET layout version.
func (v *XSDValidator) ValidateDE(xmlContent []byte, version string) *ValidationResult {
	return v.ValidateXML(xmlContent, "DE", version)
}

// ValidateBatch validates a batch submission envelope (rLoteDE).
func (v *XSDValidator) ValidateBatch(xmlContent []byte, version string) *ValidationResult {
	return v.ValidateXML(xmlContent, "rLoteDE", version)
}

// ValidateEvent validates an event notification (cancellation, inutilización).
func (v *XSDValidator) ValidateEvent(xmlContent []byte, version string) *ValidationResult {
	return v.ValidateXML(xmlContent, "rEventoDE", version)
}

// ValidateQuery validates a CDC or batch-status query request.
func (v *XSDValidator) ValidateQuery(xmlContent []byte, version, queryType string) *ValidationResult {
	schemaName := fmt.Sprintf("rCons%s", queryType)
	return v.ValidateXML(xmlContent, schemaName, version)
}

// ValidateXML validates xmlContent against the named schema and version. If
// the schema is not found on disk, validation is skipped and reported as
// valid with a warning — SET ships schema updates ahead of this module's
// own release cadence, and a missing schema should not block submission.
func (v *XSDValidator) ValidateXML(xmlContent []byte, schemaName, version string) *ValidationResult {
	result := &ValidationResult{Schema: schemaName, Version: version, Valid: false, Errors: []string{}}

	schema, err := v.LoadSchema(schemaName, version)
	if err != nil {
		if strings.Contains(err.Error(), "no such file") {
			result.Valid = true
			result.Errors = append(result.Errors, fmt.Sprintf("schema %s_v%s.xsd not found - validation skipped", schemaName, version))
			return result
		}
		result.Errors = append(result.Errors, fmt.Sprintf("failed to load schema: %s", err.Error()))
		return result
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlContent); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to parse XML: %s", err.Error()))
		return result
	}

	if err := v.validateXMLStructure(doc, schema.Document); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Valid = true
	return result
}

// validateXMLStructure performs a shallow structural check: the document's
// root element must be declared somewhere in the schema. A full XSD
// validator would also walk content models and type constraints; that is
// out of scope here (spec §4.5 calls this a "hybrid" validator precisely
// because it trades completeness for not needing a schema compiler).
func (v *XSDValidator) validateXMLStructure(xmlDoc, schemaDoc *etree.Document) error {
	xmlRoot := xmlDoc.Root()
	if xmlRoot == nil {
		return fmt.Errorf("XML document has no root element")
	}

	schemaRoot := schemaDoc.Root()
	if schemaRoot == nil {
		return fmt.Errorf("schema document has no root element")
	}

	elements := schemaRoot.FindElements("//xs:element[@name]")
	if len(elements) == 0 {
		elements = schemaRoot.FindElements("//element[@name]")
	}

	for _, element := range elements {
		if name := element.SelectAttrValue("name", ""); name == xmlRoot.Tag {
			return nil
		}
	}

	return fmt.Errorf("root element %q not found in schema", xmlRoot.Tag)
}

// GetAvailableSchemas returns the list of schema files this validator can see.
func (v *XSDValidator) GetAvailableSchemas() ([]string, error) {
	var schemas []string

	entries, err := fs.ReadDir(schemaFS, "schemas/xsd")
	if err != nil {
		entries, err = os.ReadDir(v.schemasPath)
		if err != nil {
			return nil, err
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".xsd") {
			schemas = append(schemas, entry.Name())
		}
	}

	return schemas, nil
}

// ValidateCDC validates a document's Code of Control, delegating the
// length, field-range, and check-digit rules to the cdc package so this
// validator has exactly one place that knows the 44-digit layout.
func (v *XSDValidator) ValidateCDC(code string) *ValidationResult {
	result := &ValidationResult{Schema: "cdc", Valid: false, Errors: []string{}}

	code = strings.ReplaceAll(code, " ", "")
	code = strings.ReplaceAll(code, "-", "")

	if err := cdc.Validate(code); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Valid = true
	return result
}

// GetSchemaInfo returns information about a loaded schema.
func (v *XSDValidator) GetSchemaInfo(name, version string) (*Schema, error) {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	schemaKey := fmt.Sprintf("%s_v%s", name, version)
	if schema, exists := v.schemas[schemaKey]; exists {
		return schema, nil
	}
	return nil, fmt.Errorf("schema %s not loaded", schemaKey)
}

// ClearCache clears the schema cache.
func (v *XSDValidator) ClearCache() {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.schemas = make(map[string]*Schema)
}

// Validate is a convenience dispatcher over the common document categories.
func (v *XSDValidator) Validate(xmlContent []byte, docType, version string) *ValidationResult {
	switch strings.ToLower(docType) {
	case "de":
		return v.ValidateDE(xmlContent, version)
	case "lote", "batch":
		return v.ValidateBatch(xmlContent, version)
	case "evento", "event":
		return v.ValidateEvent(xmlContent, version)
	case "consulta", "query":
		return v.ValidateQuery(xmlContent, version, "DE")
	default:
		return &ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("unknown document type: %s", docType)}}
	}
}
