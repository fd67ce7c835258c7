package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dotcommander/kbagent/internal/errs"
)

// Built-in defaults. Identifiers never have a default.
const (
	DefaultProfile = "default"
	DefaultRegion  = "us-east-1"
)

// ErrMissingConfig is returned when a required identifier is still empty
// after resolution.
var ErrMissingConfig = errors.New("missing required configuration")

// Overrides are the values given explicitly for a single call, usually from
// command line flags or tool arguments. Empty fields do not override.
type Overrides struct {
	Profile         string
	Region          string
	AgentID         string
	AgentAliasID    string
	KnowledgeBaseID string
	DataSourceID    string
}

// Effective is the configuration of one remote call after resolution.
type Effective struct {
	Profile         string
	Region          string
	AgentID         string
	AgentAliasID    string
	KnowledgeBaseID string
	DataSourceID    string
}

// Operation names the kind of remote call an Effective configuration is
// validated for.
type Operation int

// Operations.
const (
	OpInvokeAgent Operation = iota + 1
	OpRetrieve
	OpIngest
)

func (op Operation) String() string {
	switch op {
	case OpInvokeAgent:
		return "agent invocation"
	case OpRetrieve:
		return "knowledge base retrieval"
	case OpIngest:
		return "ingestion"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// Lookup returns the first non-empty value of override and stored, falling
// back to def.
func Lookup(override, stored, def string) string {
	if override != "" {
		return override
	}
	if stored != "" {
		return stored
	}
	return def
}

// Resolve merges o over the stored settings and the built-in defaults.
func (c *Config) Resolve(o Overrides) Effective {
	return Effective{
		Profile:         Lookup(o.Profile, c.Profile, DefaultProfile),
		Region:          Lookup(o.Region, c.Region, DefaultRegion),
		AgentID:         Lookup(o.AgentID, c.AgentID, ""),
		AgentAliasID:    Lookup(o.AgentAliasID, c.AgentAliasID, ""),
		KnowledgeBaseID: Lookup(o.KnowledgeBaseID, c.KnowledgeBaseID, ""),
		DataSourceID:    Lookup(o.DataSourceID, c.DataSourceID, ""),
	}
}

// Merge returns o with every empty field taken from fallback.
func (o Overrides) Merge(fallback Overrides) Overrides {
	return Overrides{
		Profile:         Lookup(o.Profile, fallback.Profile, ""),
		Region:          Lookup(o.Region, fallback.Region, ""),
		AgentID:         Lookup(o.AgentID, fallback.AgentID, ""),
		AgentAliasID:    Lookup(o.AgentAliasID, fallback.AgentAliasID, ""),
		KnowledgeBaseID: Lookup(o.KnowledgeBaseID, fallback.KnowledgeBaseID, ""),
		DataSourceID:    Lookup(o.DataSourceID, fallback.DataSourceID, ""),
	}
}

type field struct {
	name string
	flag string
	env  string
	get  func(Effective) string
}

var (
	profileField = field{"profile", "--profile", "KBAGENT_PROFILE", func(e Effective) string { return e.Profile }}
	regionField  = field{"region", "--region", "KBAGENT_REGION", func(e Effective) string { return e.Region }}
	agentField   = field{"agent id", "--agent-id", "KBAGENT_AGENT_ID", func(e Effective) string { return e.AgentID }}
	aliasField   = field{"agent alias id", "--alias-id", "KBAGENT_AGENT_ALIAS_ID", func(e Effective) string { return e.AgentAliasID }}
	kbField      = field{"knowledge base id", "--kb-id", "KBAGENT_KNOWLEDGE_BASE_ID", func(e Effective) string { return e.KnowledgeBaseID }}
	dsField      = field{"data source id", "--data-source-id", "KBAGENT_DATA_SOURCE_ID", func(e Effective) string { return e.DataSourceID }}
)

func required(op Operation) []field {
	base := []field{profileField, regionField}
	switch op {
	case OpInvokeAgent:
		return append(base, agentField, aliasField)
	case OpRetrieve:
		return append(base, kbField)
	case OpIngest:
		return append(base, kbField, dsField)
	default:
		return base
	}
}

// Missing lists the fields required by op that are empty in e.
func (e Effective) Missing(op Operation) []string {
	var missing []string
	for _, f := range required(op) {
		if f.get(e) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Valid reports whether e has every field op requires.
func (e Effective) Valid(op Operation) bool {
	return len(e.Missing(op)) == 0
}

// Validate returns an error wrapping ErrMissingConfig naming each missing
// field and how to set it.
func (e Effective) Validate(op Operation) error {
	var hints []string
	for _, f := range required(op) {
		if f.get(e) == "" {
			hints = append(hints, fmt.Sprintf("%s (%s or %s)", f.name, f.flag, f.env))
		}
	}
	if len(hints) == 0 {
		return nil
	}
	return errs.Error{
		Err:    fmt.Errorf("%w for %s: %s", ErrMissingConfig, op, strings.Join(hints, ", ")),
		Reason: "Missing required configuration.",
	}
}

// String formats e for debug logs.
func (e Effective) String() string {
	return fmt.Sprintf(
		"profile=%s region=%s agent=%s alias=%s kb=%s datasource=%s",
		e.Profile, e.Region, e.AgentID, e.AgentAliasID, e.KnowledgeBaseID, e.DataSourceID,
	)
}
