// Package config loads templan settings from defaults, an optional
// .templan.toml file, a .env file and TEMPLAN_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// FileName is the project configuration file looked up in the working directory.
	FileName = ".templan.toml"
	// EnvPrefix prefixes every environment override, e.g. TEMPLAN_WIKI_URL.
	EnvPrefix = "TEMPLAN"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// IndexKind selects a sourceindex implementation.
type IndexKind string

const (
	IndexWalk   IndexKind = "walk"
	IndexGrep   IndexKind = "grep"
	IndexSyntax IndexKind = "syntax"
)

type (
	// Config is the effective templan configuration.
	Config struct {
		Source    SourceConfig    `toml:"source" mapstructure:"source"`
		Templates TemplatesConfig `toml:"templates" mapstructure:"templates"`
		Index     IndexConfig     `toml:"index" mapstructure:"index"`
		Wiki      WikiConfig      `toml:"wiki" mapstructure:"wiki"`
	}

	// SourceConfig locates the code that renders templates.
	SourceConfig struct {
		Root              string   `toml:"root" mapstructure:"root"`
		InvocationPattern string   `toml:"invocation_pattern" mapstructure:"invocation_pattern"`
		Include           []string `toml:"include" mapstructure:"include"`
		// RespectIgnores makes the walk and syntax indexes skip hidden, build
		// and gitignored paths. grep -r never does.
		RespectIgnores bool `toml:"respect_ignores" mapstructure:"respect_ignores"`
	}

	// TemplatesConfig locates the legacy templates and their converted copies.
	TemplatesConfig struct {
		Dir              string `toml:"dir" mapstructure:"dir"`
		Ext              string `toml:"ext" mapstructure:"ext"`
		ReferencePattern string `toml:"reference_pattern" mapstructure:"reference_pattern"`
		DestDir          string `toml:"dest_dir" mapstructure:"dest_dir"`
		DestExt          string `toml:"dest_ext" mapstructure:"dest_ext"`
		TitlesFile       string `toml:"titles_file" mapstructure:"titles_file"`
	}

	// IndexConfig picks the search backend for each scan.
	IndexConfig struct {
		Invocations IndexKind `toml:"invocations" mapstructure:"invocations"`
		References  IndexKind `toml:"references" mapstructure:"references"`
	}

	// WikiConfig holds the wiki endpoint, credentials and default page.
	WikiConfig struct {
		URL   string `toml:"url" mapstructure:"url"`
		User  string `toml:"user" mapstructure:"user"`
		Token string `toml:"token" mapstructure:"token"`
		Space string `toml:"space" mapstructure:"space"`
		Page  string `toml:"page" mapstructure:"page"`
	}

	// LoadOptions controls Load.
	LoadOptions struct {
		// ConfigFile is an explicit config path. When set it must exist.
		ConfigFile string
		// Dir is where FileName and .env are looked up; empty means ".".
		Dir string
	}
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Root:              ".",
			InvocationPattern: `message_router\.render`,
			Include:           []string{},
		},
		Templates: TemplatesConfig{
			Dir:              "faces/MessageTemplates",
			Ext:              "dtml",
			ReferencePattern: "<dtml-",
			DestDir:          "build/templates",
			DestExt:          "tmpl",
		},
		Index: IndexConfig{
			Invocations: IndexWalk,
			References:  IndexWalk,
		},
		Wiki: WikiConfig{
			Space: "SYS",
			Page:  "Template use summary",
		},
	}
}

// Load resolves the effective configuration and returns it with the path of
// the config file that was read, or "" when only defaults and the
// environment applied.
func Load(opts LoadOptions) (*Config, string, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	// A missing .env is not an error.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolved := ""
	switch {
	case opts.ConfigFile != "":
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, "", fmt.Errorf("config file %s: %w", opts.ConfigFile, err)
		}
		resolved = opts.ConfigFile
	default:
		local := filepath.Join(dir, FileName)
		if _, err := os.Stat(local); err == nil {
			resolved = local
		}
	}

	if resolved != "" {
		v.SetConfigFile(resolved)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", resolved, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("source.root", d.Source.Root)
	v.SetDefault("source.invocation_pattern", d.Source.InvocationPattern)
	v.SetDefault("source.include", d.Source.Include)
	v.SetDefault("source.respect_ignores", d.Source.RespectIgnores)
	v.SetDefault("templates.dir", d.Templates.Dir)
	v.SetDefault("templates.ext", d.Templates.Ext)
	v.SetDefault("templates.reference_pattern", d.Templates.ReferencePattern)
	v.SetDefault("templates.dest_dir", d.Templates.DestDir)
	v.SetDefault("templates.dest_ext", d.Templates.DestExt)
	v.SetDefault("templates.titles_file", d.Templates.TitlesFile)
	v.SetDefault("index.invocations", string(d.Index.Invocations))
	v.SetDefault("index.references", string(d.Index.References))
	v.SetDefault("wiki.url", d.Wiki.URL)
	v.SetDefault("wiki.user", d.Wiki.User)
	v.SetDefault("wiki.token", d.Wiki.Token)
	v.SetDefault("wiki.space", d.Wiki.Space)
	v.SetDefault("wiki.page", d.Wiki.Page)
}

// Validate checks the values Load cannot type-check.
func (c Config) Validate() error {
	switch c.Index.Invocations {
	case IndexWalk, IndexGrep, IndexSyntax:
	default:
		return fmt.Errorf("%w: index.invocations must be walk, grep or syntax, got %q", ErrInvalid, c.Index.Invocations)
	}
	switch c.Index.References {
	case IndexWalk, IndexGrep:
	default:
		return fmt.Errorf("%w: index.references must be walk or grep, got %q", ErrInvalid, c.Index.References)
	}
	if c.Templates.Ext == "" {
		return fmt.Errorf("%w: templates.ext is empty", ErrInvalid)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Wiki.Token != "" {
		c.Wiki.Token = "********"
	}
	return c
}

// Marshal encodes c as TOML.
func Marshal(c Config) ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}
