// Package models defines the record types persisted by the generation
// pipeline: per-field instructions, provider settings, and jobs.
package models

import "time"

// InstructionRecord binds generation configuration to one schema path of
// one document type. Records are seeded once per path and then edited by
// editors; disabling sets Disabled instead of deleting.
type InstructionRecord struct {
	ID            string         `json:"id"`
	DocumentType  string         `json:"document_type"`
	SchemaPath    string         `json:"schema_path"`
	FieldType     string         `json:"field_type"`
	ModelID       string         `json:"model_id"`
	Template      string         `json:"template"`
	System        string         `json:"system,omitempty"`
	ModelSettings map[string]any `json:"model_settings,omitempty"`
	Disabled      bool           `json:"disabled"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
