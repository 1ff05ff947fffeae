package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"draftsmith/internal/models"
	"draftsmith/internal/schema"
)

// DocumentType binds a name to its field schema.
type DocumentType struct {
	Name   string         `yaml:"name"`
	Fields []schema.Field `yaml:"fields"`
}

// SeedFile is the YAML file describing providers, global defaults and
// document type schemas. API keys are set separately through the CLI and
// never live in this file.
type SeedFile struct {
	Providers     []models.ProviderSettings `yaml:"providers"`
	Defaults      models.GlobalDefaults     `yaml:"defaults"`
	DocumentTypes []DocumentType            `yaml:"documentTypes"`
}

// LoadSeed parses a seed file.
func LoadSeed(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	for _, dt := range seed.DocumentTypes {
		if dt.Name == "" {
			return nil, fmt.Errorf("seed file %s: document type without a name", path)
		}
	}
	return &seed, nil
}

// DocumentType returns the named document type, if present.
func (s *SeedFile) DocumentType(name string) (*DocumentType, bool) {
	for i := range s.DocumentTypes {
		if s.DocumentTypes[i].Name == name {
			return &s.DocumentTypes[i], true
		}
	}
	return nil, false
}
