package diagnosis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"diseasepredict/internal/form"
)

// FormOverride replaces parts of a built-in disease form.
type FormOverride struct {
	Fields         []form.FieldSpec `yaml:"fields"`
	Verified       bool             `yaml:"verified"`
	Notice         *string          `yaml:"notice"`
	NoticeLevel    NoticeLevel      `yaml:"notice_level"`
	InputHint      *string          `yaml:"input_hint"`
	PredictionHint *string          `yaml:"prediction_hint"`
	Artifact       string           `yaml:"artifact"`
	Labels         *Labels          `yaml:"labels"`
}

// CatalogOverrides is the on-disk shape of a catalog override file.
type CatalogOverrides struct {
	Diseases map[string]FormOverride `yaml:"diseases"`
}

// LoadOverrides reads a YAML override file.
func LoadOverrides(path string) (*CatalogOverrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog overrides: %w", err)
	}
	var o CatalogOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse catalog overrides: %w", err)
	}
	return &o, nil
}

// Apply returns a new catalog with the overrides merged in. The receiver is
// left untouched.
func (c *Catalog) Apply(o *CatalogOverrides) (*Catalog, error) {
	if o == nil {
		return c, nil
	}
	for id := range o.Diseases {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("catalog override for unknown disease %q", id)
		}
	}

	forms := c.Forms()
	for i, f := range forms {
		ov, ok := o.Diseases[f.ID]
		if !ok {
			continue
		}
		if len(ov.Fields) > 0 {
			for j, spec := range ov.Fields {
				if spec.Key == "" {
					return nil, fmt.Errorf("catalog override %s: field %d has no key", f.ID, j)
				}
			}
			f.Fields = append([]form.FieldSpec(nil), ov.Fields...)
			f.ExpectedFeatures = len(ov.Fields)
		}
		// A verified schema drops the placeholder notice and hint unless
		// the override supplies its own.
		if ov.Verified {
			f.Provisional = false
			if ov.Notice == nil {
				f.Notice = ""
				f.NoticeLevel = ""
			}
			if ov.PredictionHint == nil {
				f.PredictionHint = ""
			}
		}
		if ov.Notice != nil {
			f.Notice = *ov.Notice
		}
		if ov.NoticeLevel != "" {
			f.NoticeLevel = ov.NoticeLevel
		}
		if ov.InputHint != nil {
			f.InputHint = *ov.InputHint
		}
		if ov.PredictionHint != nil {
			f.PredictionHint = *ov.PredictionHint
		}
		if ov.Artifact != "" {
			f.Artifact = ov.Artifact
		}
		if ov.Labels != nil {
			f.Labels = *ov.Labels
		}
		forms[i] = f
	}
	return NewCatalog(forms...)
}

// LoadCatalog returns the built-in catalog, merged with the override file at
// path when path is not empty.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}
	o, err := LoadOverrides(path)
	if err != nil {
		return nil, err
	}
	return c.Apply(o)
}
