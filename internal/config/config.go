package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gridline/internal/model"
)

// Collector configures a collector run: which areas and series kinds to pull
// and where to persist them.
type Collector struct {
	DB           string   `yaml:"db"`
	Areas        []string `yaml:"areas"`
	Kinds        []string `yaml:"kinds"`
	LookbackDays int      `yaml:"lookback_days"`
}

func (c *Collector) defaults() {
	if c.DB == "" {
		c.DB = "gridline.db"
	}
	if len(c.Areas) == 0 {
		c.Areas = []string{"FR"}
	}
	if len(c.Kinds) == 0 {
		c.Kinds = []string{string(model.KindDayAheadPrice)}
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 2
	}
}

func Load(path string) (Collector, error) {
	var cfg Collector
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

// ParseKinds validates the configured kind names.
func (c Collector) ParseKinds() ([]model.Kind, error) {
	kinds := make([]model.Kind, 0, len(c.Kinds))
	for _, raw := range c.Kinds {
		switch model.Kind(strings.TrimSpace(raw)) {
		case model.KindDayAheadPrice:
			kinds = append(kinds, model.KindDayAheadPrice)
		case model.KindBalancingPrice:
			kinds = append(kinds, model.KindBalancingPrice)
		case model.KindCapacity:
			kinds = append(kinds, model.KindCapacity)
		case model.KindGeneration:
			kinds = append(kinds, model.KindGeneration)
		default:
			return nil, fmt.Errorf("config: unknown kind %q", raw)
		}
	}
	return kinds, nil
}
