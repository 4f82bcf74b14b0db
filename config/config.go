// Package config loads the YAML configuration file recognized by both
// cvs2git and cvs2svndump, following config/config.go's own
// Unmarshal/LoadConfigFile/LoadConfigString/validate shape, adapted from
// Perforce branch mappings and journal typemaps to the fuzz window,
// encoding cascade, extra RCS keywords, module restriction and
// safety-window settings the changeset engine needs.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// DefaultFuzz is the time-window gating parameter, in seconds: two
// candidate changesets whose min/max-time windows are disjoint by more
// than this never merge.
const DefaultFuzz = 300

// DefaultBranch is the target branch name assumed by the DAG-VCS
// dialect when none is given on the command line.
const DefaultBranch = "master"

// DefaultEncodings is the candidate-encoding cascade tried, in order,
// when decoding a log message: strict through all but the last, which
// falls back to lossy decoding so that emission is never blocked by an
// undecodable log message.
var DefaultEncodings = []string{"utf-8", "iso-8859-1"}

// BranchMapping renames a resolved symbolic branch name (HEAD, VENDOR,
// or any other branch tag) to the ref name it should be emitted under.
type BranchMapping struct {
	Name   string `yaml:"name"`   // regex matched against the resolved branch name
	Prefix string `yaml:"prefix"` // prefix to prepend to matching branch refs
}

// Config is the full set of options a run can take from a config file,
// each overridable by its corresponding command-line flag.
type Config struct {
	Fuzz           int64           `yaml:"fuzz"`
	EmailDomain    string          `yaml:"email_domain"`
	Encodings      []string        `yaml:"encodings"`
	ExtraKeywords  []string        `yaml:"extra_keywords"`
	Modules        []string        `yaml:"modules"`
	DisableSafety  bool            `yaml:"disable_safety_window"`
	TargetBranch   string          `yaml:"target_branch"`
	BranchMappings []BranchMapping `yaml:"branch_mappings"`
}

// Unmarshal parses a config file's bytes, seeding every field with its
// documented default before the YAML overrides them.
func Unmarshal(content []byte) (*Config, error) {
	cfg := &Config{
		Fuzz:         DefaultFuzz,
		Encodings:    append([]string{}, DefaultEncodings...),
		TargetBranch: DefaultBranch,
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v. make sure to use 'single quotes' around strings with special characters (like match patterns)", err.Error())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile loads and parses a config file from disk.
func LoadConfigFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err.Error())
	}
	cfg, err := LoadConfigString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err.Error())
	}
	return cfg, nil
}

// LoadConfigString parses a config file already read into memory.
func LoadConfigString(content []byte) (*Config, error) {
	return Unmarshal(content)
}

func (c *Config) validate() error {
	if c.Fuzz < 0 {
		return fmt.Errorf("fuzz must not be negative, got %d", c.Fuzz)
	}
	if len(c.Encodings) == 0 {
		return fmt.Errorf("encodings must list at least one candidate encoding")
	}
	for _, m := range c.BranchMappings {
		if _, err := regexp.Compile(m.Name); err != nil {
			return fmt.Errorf("failed to parse '%s' as a regex", m.Name)
		}
	}
	for _, k := range c.ExtraKeywords {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("extra keyword name must not be blank")
		}
	}
	for _, m := range c.Modules {
		if m == ".git" || strings.HasPrefix(m, ".git/") {
			return fmt.Errorf("module path %q collides with the reserved '.git' name", m)
		}
	}
	return nil
}

// ResolveBranch applies the configured BranchMappings to a resolved
// symbolic branch name (HEAD, VENDOR, or a named branch), returning the
// first matching mapping's prefixed name, or name unchanged if nothing
// matches.
func (c *Config) ResolveBranch(name string) string {
	for _, m := range c.BranchMappings {
		re, err := regexp.Compile(m.Name)
		if err != nil {
			continue
		}
		if re.MatchString(name) {
			return m.Prefix + name
		}
	}
	return name
}
