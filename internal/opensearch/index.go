package opensearch

import (
	"fmt"
	"strings"
)

// Index defaults match what Bedrock expects of a knowledge base index.
const (
	DefaultIndexName     = "bedrock-knowledge-base-index"
	DefaultDimension     = 1536
	DefaultEngine        = EngineFAISS
	DefaultVectorField   = "bedrock-knowledge-base-default-vector"
	DefaultTextField     = "AMAZON_BEDROCK_TEXT_CHUNK"
	DefaultMetadataField = "AMAZON_BEDROCK_METADATA"
)

// Vector engines supported by the k-NN plugin.
const (
	EngineFAISS  = "faiss"
	EngineNMSLIB = "nmslib"
)

// IndexSpec describes a k-NN index. Zero fields take the defaults above.
type IndexSpec struct {
	Name          string
	Dimension     int
	Engine        string
	VectorField   string
	TextField     string
	MetadataField string
}

// WithDefaults returns s with every zero field set to its default.
func (s IndexSpec) WithDefaults() IndexSpec {
	if s.Name == "" {
		s.Name = DefaultIndexName
	}
	if s.Dimension == 0 {
		s.Dimension = DefaultDimension
	}
	if s.Engine == "" {
		s.Engine = DefaultEngine
	}
	if s.VectorField == "" {
		s.VectorField = DefaultVectorField
	}
	if s.TextField == "" {
		s.TextField = DefaultTextField
	}
	if s.MetadataField == "" {
		s.MetadataField = DefaultMetadataField
	}
	return s
}

// Validate checks s after defaults are applied.
func (s IndexSpec) Validate() error {
	s.Engine = strings.ToLower(s.Engine)
	if s.Engine != EngineFAISS && s.Engine != EngineNMSLIB {
		return fmt.Errorf("unknown vector engine %q: want %s or %s", s.Engine, EngineFAISS, EngineNMSLIB)
	}
	if s.Dimension < 1 {
		return fmt.Errorf("invalid vector dimension %d", s.Dimension)
	}
	return validName(s.Name)
}

// validName rejects names OpenSearch refuses or that would change the
// request path.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\?#*"<>|, `) {
		return fmt.Errorf("invalid index name %q", name)
	}
	return nil
}

type indexBody struct {
	Settings map[string]any `json:"settings"`
	Mappings mappings       `json:"mappings"`
}

type mappings struct {
	Properties map[string]field `json:"properties"`
}

type field struct {
	Type      string        `json:"type"`
	Dimension int           `json:"dimension,omitempty"`
	Method    *vectorMethod `json:"method,omitempty"`
}

type vectorMethod struct {
	Engine    string `json:"engine"`
	SpaceType string `json:"space_type"`
	Name      string `json:"name"`
}

func (s IndexSpec) body() indexBody {
	return indexBody{
		Settings: map[string]any{"index.knn": true},
		Mappings: mappings{Properties: map[string]field{
			s.VectorField: {
				Type:      "knn_vector",
				Dimension: s.Dimension,
				Method: &vectorMethod{
					Engine:    strings.ToLower(s.Engine),
					SpaceType: "l2",
					Name:      "hnsw",
				},
			},
			s.TextField:     {Type: "text"},
			s.MetadataField: {Type: "text"},
		}},
	}
}
