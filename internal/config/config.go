package config

import (
	"errors"
	"os"
	"path/filepath"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/kbagent/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

// EnvPrefix prefixes every environment variable read into Settings.
const EnvPrefix = "KBAGENT_"

// Help is the description of each setting. It is shared by the settings
// template and the command line flags.
var Help = map[string]string{
	"profile":           "AWS shared config profile used to sign requests.",
	"region":            "AWS region of the agent, knowledge base and collection.",
	"agent-id":          "Bedrock Agent ID.",
	"agent-alias-id":    "Bedrock Agent alias ID.",
	"knowledge-base-id": "Knowledge base ID used for retrieval and ingestion.",
	"data-source-id":    "Knowledge base data source ID used for ingestion.",
	"max-results":       "Number of retrieval results requested from the knowledge base.",
	"endpoint":          "OpenSearch Serverless collection endpoint.",
	"index":             "Name of the vector index backing the knowledge base.",
	"dimension":         "Vector dimension of the embedding model (1536 for Titan).",
	"engine":            "Vector engine of the index: faiss or nmslib.",
	"timeout":           "Timeout of each OpenSearch request.",
	"poll-interval":     "Interval between ingestion job status checks.",
	"log-level":         "Log level written to stderr: debug, info, warn or error.",
	"word-wrap":         "Wrap rendered output at this width.",
	"theme":             "Theme of interactive forms: charm, dracula, catppuccin or base16.",
	"quiet":             "Do not print progress messages.",
}

// OpenSearch holds the vector index settings.
type OpenSearch struct {
	Endpoint  string        `yaml:"endpoint" env:"ENDPOINT"`
	Index     string        `yaml:"index" env:"INDEX"`
	Dimension int           `yaml:"dimension" env:"DIMENSION"`
	Engine    string        `yaml:"engine" env:"ENGINE"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Ingest holds the ingestion job settings.
type Ingest struct {
	PollInterval time.Duration `yaml:"poll-interval" env:"POLL_INTERVAL"`
}

// Settings holds persisted configuration loaded from the YAML settings file
// and environment variables.
type Settings struct {
	Profile         string `yaml:"profile" env:"PROFILE"`
	Region          string `yaml:"region" env:"REGION"`
	AgentID         string `yaml:"agent-id" env:"AGENT_ID"`
	AgentAliasID    string `yaml:"agent-alias-id" env:"AGENT_ALIAS_ID"`
	KnowledgeBaseID string `yaml:"knowledge-base-id" env:"KNOWLEDGE_BASE_ID"`
	DataSourceID    string `yaml:"data-source-id" env:"DATA_SOURCE_ID"`
	MaxResults      int    `yaml:"max-results" env:"MAX_RESULTS"`

	OpenSearch OpenSearch `yaml:"opensearch" envPrefix:"OPENSEARCH_"`
	Ingest     Ingest     `yaml:"ingest" envPrefix:"INGEST_"`

	LogLevel string `yaml:"log-level" env:"LOG_LEVEL"`
	WordWrap int    `yaml:"word-wrap" env:"WORD_WRAP"`
	Theme    string `yaml:"theme" env:"THEME"`
	Quiet    bool   `yaml:"quiet" env:"QUIET"`
}

// Runtime holds CLI/runtime-only options that should not be loaded from the
// settings file.
type Runtime struct {
	SettingsPath string
	Overrides    Overrides
	SessionID    string
	NewSession   bool
	NoStream     bool
	Debug        bool
}

// Config is the application configuration (settings + runtime-only options).
//
// Settings fields are promoted for ergonomic access, but runtime fields are
// explicitly excluded from YAML/env parsing.
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// awsEnv is the lowest stored tier: the variables the AWS CLI and SDKs
// already understand.
type awsEnv struct {
	Profile       string `env:"AWS_PROFILE"`
	Region        string `env:"AWS_REGION"`
	DefaultRegion string `env:"AWS_DEFAULT_REGION"`
}

// Ensure loads settings from ~/.config/kbagent/kbagent.yml and the
// environment, creating the settings file when it does not exist.
func Ensure() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errs.Wrap(err, "Could not determine home directory.")
	}
	sp := filepath.Join(home, ".config", "kbagent", "kbagent.yml")
	if v := os.Getenv(EnvPrefix + "SETTINGS"); v != "" {
		sp = v
	}
	if err := os.MkdirAll(filepath.Dir(sp), 0o700); err != nil {
		return Config{Runtime: Runtime{SettingsPath: sp}}, errs.Wrap(err, "Could not create config directory.")
	}
	if err := WriteConfigFile(sp); err != nil {
		return Config{Runtime: Runtime{SettingsPath: sp}}, err
	}
	return Load(sp)
}

// Load reads the settings file at path, overlays the environment and applies
// defaults. The resolver defaults for profile and region are not applied
// here; see Resolve.
func Load(path string) (Config, error) {
	c := Config{Runtime: Runtime{SettingsPath: path}}

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, errs.Wrap(err, "Could not read settings file.")
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Wrap(err, "Could not parse settings file.")
	}

	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, errs.Wrap(err, "Could not parse environment into settings.")
	}

	var ae awsEnv
	if err := env.Parse(&ae); err != nil {
		return c, errs.Wrap(err, "Could not parse AWS environment.")
	}
	if c.Profile == "" {
		c.Profile = ae.Profile
	}
	if c.Region == "" {
		c.Region = ae.Region
	}
	if c.Region == "" {
		c.Region = ae.DefaultRegion
	}

	applyDefaults(&c)
	return c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.MaxResults == 0 {
		c.MaxResults = d.MaxResults
	}
	if c.OpenSearch.Index == "" {
		c.OpenSearch.Index = d.OpenSearch.Index
	}
	if c.OpenSearch.Dimension == 0 {
		c.OpenSearch.Dimension = d.OpenSearch.Dimension
	}
	if c.OpenSearch.Engine == "" {
		c.OpenSearch.Engine = d.OpenSearch.Engine
	}
	if c.OpenSearch.Timeout == 0 {
		c.OpenSearch.Timeout = d.OpenSearch.Timeout
	}
	if c.Ingest.PollInterval == 0 {
		c.Ingest.PollInterval = d.Ingest.PollInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.WordWrap == 0 {
		c.WordWrap = d.WordWrap
	}
	if c.Theme == "" {
		c.Theme = d.Theme
	}
}

// WriteConfigFile creates the config file at path if it does not exist.
func WriteConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return SaveConfigFile(path, Default())
	} else if err != nil {
		return errs.Wrap(err, "Could not stat path.")
	}
	return nil
}

// SaveConfigFile renders cfg into the settings template at path, replacing
// any existing file.
func SaveConfigFile(path string, cfg Config) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "Could not create configuration file.")
	}
	defer func() { _ = f.Close() }()

	m := struct {
		Config   Config
		Defaults Effective
		Help     map[string]string
	}{
		Config:   cfg,
		Defaults: Effective{Profile: DefaultProfile, Region: DefaultRegion},
		Help:     Help,
	}
	if err := tmpl.Execute(f, m); err != nil {
		return errs.Wrap(err, "Could not render template.")
	}
	return nil
}

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Settings: Settings{
			MaxResults: 5,
			OpenSearch: OpenSearch{
				Index:     "bedrock-knowledge-base-index",
				Dimension: 1536,
				Engine:    "faiss",
				Timeout:   300 * time.Second,
			},
			Ingest:   Ingest{PollInterval: 10 * time.Second},
			LogLevel: "warn",
			WordWrap: 80,
			Theme:    "charm",
		},
	}
}
