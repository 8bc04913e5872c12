package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load читает профиль из YAML файла и накладывает его на Default().
// Пустой profile означает DefaultProfile.
func Load(path, profile string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data, profile)
}

// Parse разбирает YAML с секцией risk_profiles
func Parse(data []byte, profile string) (*Policy, error) {
	var config struct {
		RiskProfiles map[string]yaml.Node `yaml:"risk_profiles"`
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse policy yaml: %w", err)
	}

	if profile == "" {
		profile = DefaultProfile
	}

	node, ok := config.RiskProfiles[profile]
	if !ok {
		return nil, fmt.Errorf("policy profile %s not found", profile)
	}

	// Поля, которых нет в файле, остаются из Default; map сливаются по ключам
	p := Default()
	if err := node.Decode(p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", profile, err)
	}
	p.ProfileName = profile

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile, err)
	}
	return p, nil
}

// LoadOrDefault возвращает Default() если path пустой
func LoadOrDefault(path, profile string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path, profile)
}
