package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const defaultConfig = `
fuzz:			300
email_domain:	example.com
`

func checkValue(t *testing.T, fieldname string, val string, expected string) {
	if val != expected {
		t.Fatalf("Error parsing %s, expected '%v' got '%v'", fieldname, expected, val)
	}
}

func TestValidConfig(t *testing.T) {
	cfg := loadOrFail(t, defaultConfig)
	assert.Equal(t, int64(300), cfg.Fuzz)
	checkValue(t, "EmailDomain", cfg.EmailDomain, "example.com")
	checkValue(t, "TargetBranch", cfg.TargetBranch, DefaultBranch)
	assert.Empty(t, cfg.BranchMappings)
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := loadOrFail(t, "")
	assert.Equal(t, int64(DefaultFuzz), cfg.Fuzz)
	assert.Equal(t, DefaultEncodings, cfg.Encodings)
	checkValue(t, "TargetBranch", cfg.TargetBranch, "master")
	assert.Empty(t, cfg.BranchMappings)
}

func TestBranchMapping(t *testing.T) {
	const cfgString = `
branch_mappings:
- name: 	main.*
  prefix:	fred/
`
	cfg := loadOrFail(t, cfgString)
	assert.Equal(t, 1, len(cfg.BranchMappings))
	assert.Equal(t, "main.*", cfg.BranchMappings[0].Name)
	assert.Equal(t, "fred/", cfg.BranchMappings[0].Prefix)
	assert.Equal(t, "fred/main", cfg.ResolveBranch("main"))
	assert.Equal(t, "HEAD", cfg.ResolveBranch("HEAD"))
}

func TestEncodingsOverride(t *testing.T) {
	const cfgString = `
encodings:
- utf-8
- shift_jis
`
	cfg := loadOrFail(t, cfgString)
	assert.Equal(t, []string{"utf-8", "shift_jis"}, cfg.Encodings)
}

func TestExtraKeywordsAndModules(t *testing.T) {
	const cfgString = `
extra_keywords:
- MyKeyword
modules:
- src/mod1
- src/mod2
`
	cfg := loadOrFail(t, cfgString)
	assert.Equal(t, []string{"MyKeyword"}, cfg.ExtraKeywords)
	assert.Equal(t, []string{"src/mod1", "src/mod2"}, cfg.Modules)
}

func TestDisableSafetyWindow(t *testing.T) {
	cfg := loadOrFail(t, "disable_safety_window: true")
	assert.True(t, cfg.DisableSafety)
}

func TestNegativeFuzzRejected(t *testing.T) {
	ensureFail(t, "fuzz: -5", "negative fuzz")
}

func TestBlankExtraKeywordRejected(t *testing.T) {
	ensureFail(t, "extra_keywords:\n- \"\"\n", "blank extra keyword")
}

func TestModuleCollidingWithDotGitRejected(t *testing.T) {
	ensureFail(t, "modules:\n- .git\n", "module path collides with .git")
}

func TestInvalidBranchMappingRegexRejected(t *testing.T) {
	const cfgString = `
branch_mappings:
- name: 	"[.*"
  prefix:	fred/
`
	ensureFail(t, cfgString, "invalid branch mapping regex")
}

func ensureFail(t *testing.T, cfgString string, desc string) {
	_, err := Unmarshal([]byte(cfgString))
	if err == nil {
		t.Fatalf("Expected config err not found: %s", desc)
	}
	t.Logf("Config err: %v", err.Error())
}

func loadOrFail(t *testing.T, cfgString string) *Config {
	cfg, err := Unmarshal([]byte(cfgString))
	if err != nil {
		t.Fatalf("Failed to read config: %v", err.Error())
	}
	return cfg
}
