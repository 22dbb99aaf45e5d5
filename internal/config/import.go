package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage selects the destination workspace.
//
// For kind "sqlite" an empty DSN means <out_dir>/<name>.sqlite, made unique
// if that file already exists.
type Storage struct {
	Kind   string `json:"kind" yaml:"kind"`
	DSN    string `json:"dsn" yaml:"dsn"`
	OutDir string `json:"out_dir" yaml:"out_dir"`
	Name   string `json:"name" yaml:"name"`
}

// Runtime holds knobs that do not change what gets imported.
type Runtime struct {
	// BatchSize is the number of rows per insert call.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
	// KeepExtracted keeps the extracted export files after loading.
	KeepExtracted bool `json:"keep_extracted" yaml:"keep_extracted"`
	// SkipRelationships and SkipAttachments import tables only.
	SkipRelationships bool `json:"skip_relationships" yaml:"skip_relationships"`
	SkipAttachments   bool `json:"skip_attachments" yaml:"skip_attachments"`
	// WorkDir is where archives are extracted; empty means next to each archive.
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}

// Import is one importer run.
type Import struct {
	Job      string   `json:"job" yaml:"job"`
	Archives []string `json:"archives" yaml:"archives"`
	Storage  Storage  `json:"storage" yaml:"storage"`
	Runtime  Runtime  `json:"runtime" yaml:"runtime"`

	// ProfilePath points at a profile file; Profile is inline. With neither,
	// DefaultProfile is used.
	ProfilePath string   `json:"profile_path" yaml:"profile_path"`
	Profile     *Profile `json:"profile" yaml:"profile"`
}

// Defaults fills unset fields.
func (c *Import) Defaults() {
	if c.Job == "" {
		c.Job = "cameo_import"
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = "sqlite"
	}
	if c.Storage.Name == "" {
		c.Storage.Name = "CAMEO"
	}
	if c.Runtime.BatchSize <= 0 {
		c.Runtime.BatchSize = 1000
	}
	if c.Profile == nil {
		p := DefaultProfile()
		c.Profile = &p
	}
}

// Load reads an Import from path. Files ending in .yaml or .yml are YAML,
// everything else JSON. DSNs are expanded against the environment.
func Load(path string) (Import, error) {
	var c Import
	if err := decodeFile(path, &c); err != nil {
		return c, err
	}
	c.Storage.DSN = os.ExpandEnv(c.Storage.DSN)

	if c.Profile == nil && c.ProfilePath != "" {
		pp := c.ProfilePath
		if !filepath.IsAbs(pp) {
			pp = filepath.Join(filepath.Dir(path), pp)
		}
		p, err := LoadProfile(pp)
		if err != nil {
			return c, err
		}
		c.Profile = &p
	}
	c.Defaults()
	return c, nil
}

// LoadProfile reads a Profile. Fields the file leaves empty keep the
// DefaultProfile values, so a profile file only lists what it changes.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if err := decodeFile(path, &p); err != nil {
		return p, err
	}
	return p, nil
}

func decodeFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("config: decode yaml %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("config: decode json %s: %w", path, err)
		}
	}
	return nil
}
