// Package config handles skink.toml interpreter configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Recognized source encodings.
const (
	EncodingASCII   = "ascii"   // Bytes 0x00-0x7F
	EncodingMinimal = "minimal" // Tab, LF, CR, and printable ASCII
	EncodingUTF8    = "utf8"    // Any valid UTF-8
)

// Config collects every knob the compiler and VM consult. The zero
// value is not usable; start from Default or Load.
type Config struct {
	// Encoding names the character set legal in source text. Validation
	// only runs when the compliance checks enable it.
	Encoding string `toml:"encoding"`

	Compliance Compliance `toml:"compliance"`
	Extensions Extensions `toml:"extensions"`
	Limits     Limits     `toml:"limits"`
}

// Compliance gates the strict-mode parse checks. Each check can be
// enabled individually; Strict turns them all on at once.
type Compliance struct {
	Strict               bool `toml:"strict"`
	ForbidTrailingTokens bool `toml:"forbid-trailing-tokens"`
	CheckEncoding        bool `toml:"check-encoding"`

	// MaxVariableName and MaxVariables are only enforced under strict
	// compliance; zero means unlimited even then.
	MaxVariableName int `toml:"max-variable-name"`
	MaxVariables    int `toml:"max-variables"`
}

// Extensions toggles the optional builtins. Compiling a disabled
// extension's syntax is a parse error.
type Extensions struct {
	System   bool `toml:"system"`    // `$ expr` shell-command builtin
	ReadFile bool `toml:"read-file"` // `XREAD expr` file-reading builtin
}

// Limits bounds run-time resource use.
type Limits struct {
	// MaxContainerLength caps the length of any constructed string or
	// list; zero means unlimited.
	MaxContainerLength int `toml:"max-container-length"`
}

// Default returns the default configuration: permissive parsing, UTF-8
// source, no extensions, no limits.
func Default() *Config {
	return &Config{
		Encoding: EncodingUTF8,
		Compliance: Compliance{
			MaxVariableName: 127,
			MaxVariables:    65535,
		},
	}
}

// Load parses a skink.toml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir looking for a skink.toml file and
// loads the first one found. Returns (nil, nil) if no file exists up to
// the filesystem root.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "skink.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	switch c.Encoding {
	case EncodingASCII, EncodingMinimal, EncodingUTF8:
		return nil
	default:
		return fmt.Errorf("unknown encoding %q", c.Encoding)
	}
}

// ---------------------------------------------------------------------------
// Derived switches
// ---------------------------------------------------------------------------

// TrailingTokensForbidden reports whether tokens after a complete
// program are a parse error.
func (c *Config) TrailingTokensForbidden() bool {
	return c.Compliance.Strict || c.Compliance.ForbidTrailingTokens
}

// EncodingChecked reports whether the source must be validated against
// the configured encoding before tokenizing.
func (c *Config) EncodingChecked() bool {
	return c.Compliance.Strict || c.Compliance.CheckEncoding
}

// VariableNameLimit returns the maximum variable name length, or zero
// when the check is off (non-strict mode, or an explicit zero).
func (c *Config) VariableNameLimit() int {
	if !c.Compliance.Strict {
		return 0
	}
	return c.Compliance.MaxVariableName
}

// VariableCountLimit returns the maximum number of distinct variables,
// or zero when the check is off.
func (c *Config) VariableCountLimit() int {
	if !c.Compliance.Strict {
		return 0
	}
	return c.Compliance.MaxVariables
}
