package masking

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of a masking rule extension file:
//
//	fields:
//	  - customerTaxId
//	  - loyaltyCardNumber
//
// The file can only widen the built-in vocabulary; the default field set and
// the pattern detectors are always active.
type ruleFile struct {
	Fields []string `yaml:"fields"`
}

// LoadPolicy builds a Policy from the default rules plus the extra field names
// in the given YAML file. An empty path returns the default policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read masking rules: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parse masking rules: %w", err)
	}

	return newPolicy(rf.Fields), nil
}
