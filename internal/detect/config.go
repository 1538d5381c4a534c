package detect

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config tunes the detection pipeline: which base recognizers run and
// how highlight colours in annotated training documents map to entity
// labels.
type Config struct {
	// BaseLabels lists the recognizer labels allowed to produce
	// suggestions. Empty means all built-in recognizers run.
	BaseLabels []string `yaml:"base_labels"`

	// HighlightLabels maps DOCX highlight colour names to entity
	// labels for the training collector.
	HighlightLabels map[string]string `yaml:"highlight_labels"`

	// Threshold overrides the model decision threshold when set.
	Threshold float64 `yaml:"threshold"`
}

// DefaultConfig mirrors the annotation conventions the training
// documents use: bright green marks third parties, turquoise marks
// operational data.
func DefaultConfig() Config {
	return Config{
		BaseLabels: []string{"EMAIL", "PHONE", "DATE", "POSTCODE", "NINO", "PERSON"},
		HighlightLabels: map[string]string{
			"green": LabelThirdParty,
			"cyan":  LabelOperational,
		},
	}
}

// LoadConfig reads a YAML config from path, falling back to defaults
// when the file does not exist. Values present in the file replace the
// corresponding defaults wholesale.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read detector config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf("parse detector config %s: %w", path, err)
	}
	if len(file.BaseLabels) > 0 {
		cfg.BaseLabels = file.BaseLabels
	}
	if len(file.HighlightLabels) > 0 {
		cfg.HighlightLabels = file.HighlightLabels
	}
	if file.Threshold > 0 {
		cfg.Threshold = file.Threshold
	}
	return cfg, nil
}

func (c Config) allowedBase() map[string]bool {
	allowed := make(map[string]bool, len(c.BaseLabels))
	for _, l := range c.BaseLabels {
		allowed[l] = true
	}
	return allowed
}
