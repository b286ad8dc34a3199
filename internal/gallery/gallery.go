package gallery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Identity is a named person in the gallery.
type Identity struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// IdentitySummary pairs an identity with its observation count.
type IdentitySummary struct {
	Identity
	Observations int `json:"observations"`
}

// Observation is a single enrolled face: where it was seen and its descriptor.
// FaceID is the tracked face identity within the source sequence, so labeling
// one (sequence, face) pair labels every frame that face appears in.
type Observation struct {
	ID          int64     `json:"id"`
	IdentityID  int64     `json:"identity_id,omitempty"` // 0 when unlabeled
	Person      string    `json:"person,omitempty"`
	SequenceUID string    `json:"sequence_uid"`
	FrameID     int       `json:"frame_id"`
	FaceID      int       `json:"face_id"`
	Descriptor  []float32 `json:"-"`
	BBox        []float64 `json:"bbox,omitempty"` // x, y, w, h in frame space
	CreatedAt   time.Time `json:"created_at"`
}

// Repository provides PostgreSQL-backed observation storage with an
// optional in-memory HNSW index.
type Repository struct {
	pool      *Pool
	index     *Index
	indexOn   bool
	indexPath string // optional persistence path
	indexMu   sync.RWMutex
}

// NewRepository creates a new gallery repository.
func NewRepository(pool *Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertIdentity inserts or refreshes an identity keyed by its normalized name.
func (r *Repository) UpsertIdentity(ctx context.Context, name string) (Identity, error) {
	var identity Identity

	normalized := NormalizeName(name)
	if normalized == "" {
		return identity, errors.New("identity name is required")
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO identities (name, normalized_name)
		VALUES ($1, $2)
		ON CONFLICT (normalized_name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, normalized_name, created_at`,
		name, normalized,
	).Scan(&identity.ID, &identity.Name, &identity.NormalizedName, &identity.CreatedAt)
	if err != nil {
		return identity, fmt.Errorf("upsert identity: %w", err)
	}
	return identity, nil
}

// GetIdentity looks up an identity by name. Returns nil when unknown.
func (r *Repository) GetIdentity(ctx context.Context, name string) (*Identity, error) {
	var identity Identity
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, normalized_name, created_at
		FROM identities
		WHERE normalized_name = $1`,
		NormalizeName(name),
	).Scan(&identity.ID, &identity.Name, &identity.NormalizedName, &identity.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return &identity, nil
}

// ListIdentities returns all identities with their observation counts.
func (r *Repository) ListIdentities(ctx context.Context) ([]IdentitySummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.name, i.normalized_name, i.created_at, COUNT(o.id)
		FROM identities i
		LEFT JOIN observations o ON o.identity_id = i.id
		GROUP BY i.id
		ORDER BY i.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var summaries []IdentitySummary
	for rows.Next() {
		var s IdentitySummary
		if err := rows.Scan(&s.ID, &s.Name, &s.NormalizedName, &s.CreatedAt, &s.Observations); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return summaries, nil
}

// SaveObservations stores the observations for a sequence, replacing any
// previous enrollment of the same sequence.
func (r *Repository) SaveObservations(ctx context.Context, sequenceUID string, observations []Observation) error {
	if sequenceUID == "" {
		return errors.New("sequence UID is required")
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	indexOn := r.IsIndexEnabled()

	var oldIDs []int64
	if indexOn {
		oldIDs, err = scanObservationIDs(ctx, tx, sequenceUID)
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM observations WHERE sequence_uid = $1", sequenceUID); err != nil {
		return fmt.Errorf("delete existing observations: %w", err)
	}

	if len(observations) == 0 {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		r.updateIndexObservations(indexOn, oldIDs, nil)
		return nil
	}

	inserted, err := insertObservationsReturningIDs(ctx, tx, sequenceUID, observations)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.updateIndexObservations(indexOn, oldIDs, inserted)
	return nil
}

// scanObservationIDs returns the IDs of all observations for a sequence.
func scanObservationIDs(ctx context.Context, tx *sql.Tx, sequenceUID string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM observations WHERE sequence_uid = $1", sequenceUID)
	if err != nil {
		return nil, fmt.Errorf("query observation IDs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan observation ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation IDs: %w", err)
	}
	return ids, nil
}

// insertObservationsReturningIDs inserts observations and returns them with assigned IDs.
func insertObservationsReturningIDs(
	ctx context.Context, tx *sql.Tx, sequenceUID string, observations []Observation,
) ([]Observation, error) {
	inserted := make([]Observation, 0, len(observations))

	for i := range observations {
		obs := &observations[i]

		var identityID sql.NullInt64
		if obs.IdentityID > 0 {
			identityID = sql.NullInt64{Int64: obs.IdentityID, Valid: true}
		}

		var newID int64
		var createdAt time.Time
		err := tx.QueryRowContext(ctx, `
			INSERT INTO observations (identity_id, sequence_uid, frame_id, face_id, descriptor, bbox)
			VALUES ($1, $2, $3, $4, $5::vector, $6)
			RETURNING id, created_at`,
			identityID,
			sequenceUID,
			obs.FrameID,
			obs.FaceID,
			pgvector.NewVector(obs.Descriptor),
			pq.Array(obs.BBox),
		).Scan(&newID, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("insert observation %d/%d: %w", obs.FrameID, obs.FaceID, err)
		}

		newObs := *obs
		newObs.ID = newID
		newObs.SequenceUID = sequenceUID
		newObs.CreatedAt = createdAt
		inserted = append(inserted, newObs)
	}

	return inserted, nil
}

// updateIndexObservations removes old IDs and adds new observations to the index.
func (r *Repository) updateIndexObservations(indexOn bool, oldIDs []int64, newObs []Observation) {
	if !indexOn {
		return
	}
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	if r.index == nil {
		return
	}
	for _, id := range oldIDs {
		r.index.Delete(id)
	}
	for i := range newObs {
		r.index.Add(&newObs[i])
	}
}

const observationColumns = `
	o.id, o.identity_id, i.name, o.sequence_uid, o.frame_id, o.face_id,
	o.descriptor, o.bbox, o.created_at`

// scanObservationRow scans a single joined observation row, with optional
// extra scan destinations appended after the standard columns.
func scanObservationRow(scanner interface{ Scan(...any) error }, extraDest ...any) (Observation, error) {
	var obs Observation
	var identityID sql.NullInt64
	var person sql.NullString
	var vec pgvector.Vector
	var bbox pq.Float64Array

	dest := make([]any, 0, 9+len(extraDest))
	dest = append(dest,
		&obs.ID,
		&identityID,
		&person,
		&obs.SequenceUID,
		&obs.FrameID,
		&obs.FaceID,
		&vec,
		&bbox,
		&obs.CreatedAt,
	)
	dest = append(dest, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		return obs, fmt.Errorf("scan observation: %w", err)
	}

	obs.Descriptor = vec.Slice()
	obs.BBox = []float64(bbox)
	if identityID.Valid {
		obs.IdentityID = identityID.Int64
	}
	if person.Valid {
		obs.Person = person.String
	}
	return obs, nil
}

func scanObservations(rows *sql.Rows) ([]Observation, error) {
	var observations []Observation
	for rows.Next() {
		obs, err := scanObservationRow(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return observations, nil
}

// GetObservations retrieves all observations enrolled for a sequence.
func (r *Repository) GetObservations(ctx context.Context, sequenceUID string) ([]Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+observationColumns+`
		FROM observations o
		LEFT JOIN identities i ON i.id = o.identity_id
		WHERE o.sequence_uid = $1
		ORDER BY o.frame_id, o.face_id`,
		sequenceUID,
	)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetAllObservations retrieves every observation in the gallery.
func (r *Repository) GetAllObservations(ctx context.Context) ([]Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+observationColumns+`
		FROM observations o
		LEFT JOIN identities i ON i.id = o.identity_id
		ORDER BY o.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetByPerson retrieves all observations labeled with the given person name.
func (r *Repository) GetByPerson(ctx context.Context, name string) ([]Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+observationColumns+`
		FROM observations o
		JOIN identities i ON i.id = o.identity_id
		WHERE i.normalized_name = $1
		ORDER BY o.id`,
		NormalizeName(name),
	)
	if err != nil {
		return nil, fmt.Errorf("query observations by person: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// CountObservations returns the total number of stored observations.
func (r *Repository) CountObservations(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM observations").Scan(&count); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return count, nil
}

// LabelTrack assigns an identity to every observation of a tracked face in a
// sequence. The identity is created when it does not exist yet. Returns the
// number of labeled observations.
func (r *Repository) LabelTrack(ctx context.Context, sequenceUID string, faceID int, name string) (int64, error) {
	identity, err := r.UpsertIdentity(ctx, name)
	if err != nil {
		return 0, err
	}

	rows, err := r.pool.Query(ctx, `
		UPDATE observations
		SET identity_id = $1
		WHERE sequence_uid = $2 AND face_id = $3
		RETURNING id`,
		identity.ID, sequenceUID, faceID,
	)
	if err != nil {
		return 0, fmt.Errorf("label track: %w", err)
	}
	defer rows.Close()

	var labeled []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan labeled observation: %w", err)
		}
		labeled = append(labeled, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate labeled observations: %w", err)
	}

	r.indexMu.RLock()
	if r.indexOn && r.index != nil {
		for _, id := range labeled {
			r.index.SetLabel(id, identity.ID, identity.Name)
		}
	}
	r.indexMu.RUnlock()

	return int64(len(labeled)), nil
}

// FindSimilar finds observations with similar descriptors using cosine distance.
// Uses the in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *Repository) FindSimilar(ctx context.Context, descriptor []float32, limit int) ([]Observation, error) {
	if r.IsIndexEnabled() {
		return r.findSimilarHNSW(descriptor, limit)
	}
	return r.findSimilarPostgres(ctx, descriptor, limit)
}

func (r *Repository) findSimilarHNSW(descriptor []float32, limit int) ([]Observation, error) {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if r.index == nil {
		return nil, errors.New("HNSW index not initialized")
	}

	ids, _, err := r.index.Search(descriptor, limit)
	if err != nil {
		return nil, fmt.Errorf("HNSW search: %w", err)
	}

	results := make([]Observation, 0, len(ids))
	for _, id := range ids {
		if obs := r.index.Get(id); obs != nil {
			results = append(results, *obs)
		}
	}
	return results, nil
}

func (r *Repository) findSimilarPostgres(ctx context.Context, descriptor []float32, limit int) ([]Observation, error) {
	// Use a transaction to raise ef_search for better recall.
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", hnswEfSearch)); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+observationColumns+`
		FROM observations o
		LEFT JOIN identities i ON i.id = o.identity_id
		ORDER BY o.descriptor <=> $1::vector
		LIMIT $2`,
		pgvector.NewVector(descriptor), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query similar observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// FindSimilarWithDistance finds similar observations and returns their distances,
// keeping only matches closer than maxDistance.
func (r *Repository) FindSimilarWithDistance(
	ctx context.Context, descriptor []float32, limit int, maxDistance float64,
) ([]Observation, []float64, error) {
	if r.IsIndexEnabled() {
		return r.findSimilarWithDistanceHNSW(descriptor, limit, maxDistance)
	}
	return r.findSimilarWithDistancePostgres(ctx, descriptor, limit, maxDistance)
}

func (r *Repository) findSimilarWithDistanceHNSW(
	descriptor []float32, limit int, maxDistance float64,
) ([]Observation, []float64, error) {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if r.index == nil {
		return nil, nil, errors.New("HNSW index not initialized")
	}

	// Request more candidates to ensure enough remain after distance filtering.
	searchK := max(limit*hnswSearchMultiplier, 100)

	ids, distances, err := r.index.Search(descriptor, searchK)
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	results := make([]Observation, 0, limit)
	distancesOut := make([]float64, 0, limit)
	for i, id := range ids {
		if distances[i] >= maxDistance {
			continue
		}
		obs := r.index.Get(id)
		if obs == nil {
			continue
		}
		results = append(results, *obs)
		distancesOut = append(distancesOut, distances[i])
		if len(results) >= limit {
			break
		}
	}
	return results, distancesOut, nil
}

func (r *Repository) findSimilarWithDistancePostgres(
	ctx context.Context, descriptor []float32, limit int, maxDistance float64,
) ([]Observation, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", hnswEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+observationColumns+`,
		       o.descriptor <=> $1::vector AS distance
		FROM observations o
		LEFT JOIN identities i ON i.id = o.identity_id
		WHERE o.descriptor <=> $1::vector < $2
		ORDER BY distance
		LIMIT $3`,
		pgvector.NewVector(descriptor), maxDistance, limit,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar observations: %w", err)
	}
	defer rows.Close()

	var observations []Observation
	var distances []float64
	for rows.Next() {
		var dist float64
		obs, err := scanObservationRow(rows, &dist)
		if err != nil {
			return nil, nil, err
		}
		observations = append(observations, obs)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate observations: %w", err)
	}
	return observations, distances, nil
}

// EnableIndex loads or builds the in-memory HNSW index for fast similarity
// search. If indexPath is set it is tried first and refreshed after a rebuild.
// Call once at startup.
func (r *Repository) EnableIndex(ctx context.Context, indexPath string) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	r.indexPath = indexPath

	var dbCount, dbMaxID int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*), COALESCE(MAX(id), 0) FROM observations").Scan(&dbCount, &dbMaxID)
	if err != nil {
		return fmt.Errorf("failed to get observation stats: %w", err)
	}

	if indexPath != "" && r.tryLoadIndex(indexPath, dbCount, dbMaxID) {
		r.indexOn = true
		return nil
	}

	observations, err := r.GetAllObservations(ctx)
	if err != nil {
		return fmt.Errorf("failed to load observations: %w", err)
	}

	r.index = NewIndex()
	if err := r.index.Build(observations); err != nil {
		return fmt.Errorf("failed to build HNSW index: %w", err)
	}

	if indexPath != "" && len(observations) > 0 {
		metadata := IndexMetadata{ObservationCount: dbCount, MaxObservationID: dbMaxID}
		if err := r.index.Save(indexPath, metadata); err != nil {
			fmt.Printf("Warning: failed to save HNSW index to disk: %v\n", err)
		}
	}

	r.indexOn = true
	return nil
}

// tryLoadIndex attempts to load a cached index, verifying it is not stale.
func (r *Repository) tryLoadIndex(indexPath string, dbCount, dbMaxID int64) bool {
	metadata, err := LoadIndexMetadata(indexPath)
	if err != nil {
		fmt.Printf("Gallery index: metadata file error: %v (will rebuild)\n", err)
		return false
	}
	if metadata.ObservationCount != dbCount || metadata.MaxObservationID != dbMaxID {
		fmt.Printf("Gallery index: stale (db: count=%d max_id=%d, cached: count=%d max_id=%d) (will rebuild)\n",
			dbCount, dbMaxID, metadata.ObservationCount, metadata.MaxObservationID)
		return false
	}

	r.index = NewIndex()
	if err := r.index.Load(indexPath); err != nil {
		fmt.Printf("Gallery index: failed to load: %v (will rebuild)\n", err)
		return false
	}
	if r.index.IsEmpty() {
		fmt.Printf("Gallery index: loaded graph is empty (will rebuild)\n")
		return false
	}
	fmt.Printf("Gallery index: loaded from disk\n")
	return true
}

// DisableIndex disables the in-memory index, falling back to PostgreSQL queries.
func (r *Repository) DisableIndex() {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	r.indexOn = false
	r.index = nil
}

// IsIndexEnabled returns whether the in-memory HNSW index is active.
func (r *Repository) IsIndexEnabled() bool {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	return r.indexOn && r.index != nil
}

// IndexCount returns the number of observations in the HNSW index.
func (r *Repository) IndexCount() int {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	if r.index == nil {
		return 0
	}
	return r.index.Count()
}

// SaveIndex saves the current HNSW index to disk (if a path is configured).
func (r *Repository) SaveIndex(ctx context.Context) error {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if r.indexPath == "" || r.index == nil {
		return nil
	}

	var dbCount, dbMaxID int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*), COALESCE(MAX(id), 0) FROM observations").Scan(&dbCount, &dbMaxID)
	if err != nil {
		return fmt.Errorf("failed to get observation stats: %w", err)
	}

	metadata := IndexMetadata{ObservationCount: dbCount, MaxObservationID: dbMaxID}
	if err := r.index.Save(r.indexPath, metadata); err != nil {
		return fmt.Errorf("saving gallery index: %w", err)
	}
	return nil
}

// RebuildIndex rebuilds the HNSW index from PostgreSQL data.
func (r *Repository) RebuildIndex(ctx context.Context) error {
	r.indexMu.RLock()
	indexPath := r.indexPath
	r.indexMu.RUnlock()
	return r.EnableIndex(ctx, indexPath)
}
