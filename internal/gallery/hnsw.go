package gallery

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSW index parameters for 128-dim face descriptors
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16

	// hnswEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	hnswEfSearch = 100

	// hnswSearchMultiplier is the factor to request more candidates from HNSW
	// to ensure we have enough after distance filtering.
	hnswSearchMultiplier = 3
)

const indexMetadataVersion = 1

// IndexMetadata validates a cached index against the database state.
type IndexMetadata struct {
	ObservationCount int64     `json:"observation_count"`
	MaxObservationID int64     `json:"max_observation_id"`
	BuildTime        time.Time `json:"build_time"`
	Version          int       `json:"version"`
}

// Index is an in-memory HNSW graph over observation descriptors.
type Index struct {
	graph      *hnsw.Graph[int64]
	savedGraph *hnsw.SavedGraph[int64] // set when loaded from disk
	idToObs    map[int64]*Observation
	mu         sync.RWMutex
}

// NewIndex creates a new empty index.
func NewIndex() *Index {
	return &Index{idToObs: make(map[int64]*Observation)}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index content with the given observations.
func (h *Index) Build(observations []Observation) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(observations) == 0 {
		h.graph = nil
		h.savedGraph = nil
		h.idToObs = make(map[int64]*Observation)
		return nil
	}

	g := newGraph()
	h.idToObs = make(map[int64]*Observation, len(observations))

	for i := range observations {
		obs := &observations[i]
		if len(obs.Descriptor) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(obs.ID, obs.Descriptor))
		h.idToObs[obs.ID] = obs
	}

	h.graph = g
	h.savedGraph = nil
	return nil
}

// Add inserts a single observation into the index.
func (h *Index) Add(obs *Observation) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(obs.Descriptor) == 0 {
		return nil
	}

	if h.graph == nil {
		h.graph = newGraph()
	}

	h.graph.Add(hnsw.MakeNode(obs.ID, obs.Descriptor))
	h.idToObs[obs.ID] = obs
	return nil
}

// Delete removes an observation from search results. The graph node stays
// behind because HNSW does not support true deletion; lookups filter it out.
func (h *Index) Delete(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.idToObs, id)
}

// Search finds the k nearest neighbors to the query descriptor.
// Returns observation IDs and their cosine distances.
func (h *Index) Search(query []float32, k int) ([]int64, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	var neighbors []hnsw.Node[int64]
	if h.savedGraph != nil {
		neighbors = h.savedGraph.Search(query, k)
	} else {
		neighbors = h.graph.Search(query, k)
	}

	ids := make([]int64, len(neighbors))
	distances := make([]float64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
		if len(n.Value) > 0 {
			distances[i] = CosineDistance(query, n.Value)
		}
	}
	return ids, distances, nil
}

// Get returns the observation for a given ID, or nil when it is not indexed.
func (h *Index) Get(id int64) *Observation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToObs[id]
}

// SetLabel updates the cached identity fields of an indexed observation.
// Returns false when the observation is not in the index.
func (h *Index) SetLabel(id, identityID int64, person string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	obs, ok := h.idToObs[id]
	if !ok {
		return false
	}
	obs.IdentityID = identityID
	obs.Person = person
	return true
}

// Count returns the number of indexed observations.
func (h *Index) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToObs)
}

// IsEmpty returns true if no graph data is loaded.
func (h *Index) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// Save persists the graph to path with two sidecar files: path.meta holds
// staleness metadata (JSON) and path.obs holds the indexed observations (gob).
// An empty index removes all three files.
func (h *Index) Save(path string, metadata IndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".obs")
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if h.savedGraph != nil {
		err = h.savedGraph.Export(f)
	} else {
		err = h.graph.Export(f)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}

	metadata.Version = indexMetadataVersion
	metadata.BuildTime = time.Now().UTC()
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	observations := make([]Observation, 0, len(h.idToObs))
	for _, obs := range h.idToObs {
		observations = append(observations, *obs)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(observations); err != nil {
		return fmt.Errorf("failed to encode observations: %w", err)
	}
	if err := os.WriteFile(path+".obs", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write observations file: %w", err)
	}
	return nil
}

// Load restores the graph and its observations from path.
func (h *Index) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	data, err := os.ReadFile(path + ".obs")
	if err != nil {
		return fmt.Errorf("failed to read observations file: %w", err)
	}
	var observations []Observation
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&observations); err != nil {
		return fmt.Errorf("failed to decode observations: %w", err)
	}

	h.savedGraph = saved
	h.graph = nil
	h.idToObs = make(map[int64]*Observation, len(observations))
	for i := range observations {
		h.idToObs[observations[i].ID] = &observations[i]
	}
	return nil
}

// LoadIndexMetadata reads the staleness metadata written next to a saved index.
func LoadIndexMetadata(path string) (IndexMetadata, error) {
	var metadata IndexMetadata

	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}
