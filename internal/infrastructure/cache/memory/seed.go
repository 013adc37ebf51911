package memory

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed faq.yaml
var defaultSeedYAML []byte

// ParseSeed decodes a YAML FAQ dataset.
func ParseSeed(data []byte) ([]SeedEntry, error) {
	var seed []SeedEntry
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode faq seed: %w", err)
	}
	for i, s := range seed {
		if s.Question == "" || s.Answer == "" {
			return nil, fmt.Errorf("faq seed entry %d: question and answer are required", i)
		}
	}
	return seed, nil
}

// DefaultSeed loads the embedded FAQ dataset.
func DefaultSeed() []SeedEntry {
	seed, err := ParseSeed(defaultSeedYAML)
	if err != nil {
		panic(fmt.Sprintf("memory: embedded faq seed invalid: %v", err))
	}
	return seed
}
