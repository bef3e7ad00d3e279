package ragModel

import "time"

type Project struct {
	Id        string    `json:"id"`
	ProjectId string    `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Asset is one uploaded source file. ProjectId is the external project id, not Project.Id.
type Asset struct {
	Id          string         `json:"id"`
	ProjectId   string         `json:"project_id"`
	AssetType   string         `json:"asset_type"`
	AssetName   string         `json:"asset_name"`
	AssetSize   int64          `json:"asset_size"`
	AssetConfig map[string]any `json:"asset_config,omitempty"`
	PushedAt    time.Time      `json:"pushed_at"`
}

type Chunk struct {
	Id            string         `json:"id"`
	ChunkText     string         `json:"chunk_text"`
	ChunkMetadata map[string]any `json:"chunk_metadata,omitempty"`
	ChunkOrder    int            `json:"chunk_order"`
	ProjectId     string         `json:"project_id"`
	AssetId       string         `json:"asset_id"`
}

// ChunkCandidate is what the splitter emits, before ids and order are assigned.
type ChunkCandidate struct {
	Text     string
	Metadata map[string]any
}

type VectorRecord struct {
	ChunkId  string
	Vector   []float32
	Metadata map[string]any
}

type SearchHit struct {
	ChunkId  string
	Score    float32
	Metadata map[string]any
}

type RetrievedChunk struct {
	ChunkId    string  `json:"chunk_id"`
	AssetId    string  `json:"asset_id"`
	ChunkOrder int     `json:"chunk_order"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

type DocumentType string

const (
	DocumentTypeDocument DocumentType = "DOCUMENT"
	DocumentTypeQuery    DocumentType = "QUERY"
)

type DistanceMetric string

const (
	DistanceCosine DistanceMetric = "cosine"
	DistanceDot    DistanceMetric = "dot"
	DistanceEuclid DistanceMetric = "euclid"
)

// HigherIsBetter reports whether a larger score ranks first for the metric.
func (m DistanceMetric) HigherIsBetter() bool {
	return m != DistanceEuclid
}

func (m DistanceMetric) Valid() bool {
	switch m {
	case DistanceCosine, DistanceDot, DistanceEuclid:
		return true
	}
	return false
}

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// CopyHistory returns an independent copy with room for extra messages.
func CopyHistory(history []ChatMessage, extra int) []ChatMessage {
	out := make([]ChatMessage, len(history), len(history)+extra)
	copy(out, history)
	return out
}

type IngestionState string

const (
	StateValidating IngestionState = "VALIDATING"
	StateSplitting  IngestionState = "SPLITTING"
	StateEmbedding  IngestionState = "EMBEDDING"
	StatePersisting IngestionState = "PERSISTING"
	StateDone       IngestionState = "DONE"
	StateFailed     IngestionState = "FAILED"
)
