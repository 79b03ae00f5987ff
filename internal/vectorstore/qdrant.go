package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// QdrantStore is the Store driver backed by Qdrant, grounded in the
// teacher's vector.NewQdrantDatabase wiring (internal/init/service_init.go):
// host/port/API-key construction, one client shared across collections.
type QdrantStore struct {
	client *qdrant.Client
	logger *zap.Logger
}

// NewQdrantStore dials a Qdrant instance at host:port, optionally
// authenticating with apiKey (empty string disables auth).
func NewQdrantStore(host string, port int, apiKey string, logger *zap.Logger) (*QdrantStore, error) {
	cfg := &qdrant.Config{Host: host, Port: port}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.UseTLS = true
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("dial qdrant at %s:%d: %w", host, port, err)
	}
	return &QdrantStore{client: client, logger: logger}, nil
}

func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	exists, err := s.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil // idempotent per spec §6.2
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (s *QdrantStore) DropCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

func (s *QdrantStore) HasCollection(ctx context.Context, name string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	return exists, nil
}

// CollectionDimension reads back the configured vector size, used by the
// pipeline's prepare_collection step to detect a schema mismatch (spec
// §4.7 step 1).
func (s *QdrantStore) CollectionDimension(ctx context.Context, name string) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("get collection info %s: %w", name, err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0, fmt.Errorf("collection %s has no vector params", name)
	}
	return int(params.GetSize()), nil
}

func (s *QdrantStore) Insert(ctx context.Context, name string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, d := range docs {
		payload := map[string]any{
			"content":        d.Content,
			"relative_path":  d.RelativePath,
			"start_line":     d.StartLine,
			"end_line":       d.EndLine,
			"file_extension": d.FileExtension,
		}
		for k, v := range d.Metadata {
			payload[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointUUID(d.ID)),
			Vectors: qdrant.NewVectors(d.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("insert %d points into %s: %w", len(points), name, err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]Result, error) {
	limit := uint64(opts.TopK)
	query := &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.Threshold != 0 {
		threshold := opts.Threshold
		query.ScoreThreshold = &threshold
	}
	if !opts.Filter.Empty() {
		query.Filter = buildFilter(opts.Filter)
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", name, err)
	}

	out := make([]Result, 0, len(points))
	for _, p := range points {
		out = append(out, resultFromScoredPoint(p))
	}
	return out, nil
}

func (s *QdrantStore) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %d points from %s: %w", len(ids), name, err)
	}
	return nil
}

// Query scans for every point whose relative_path payload field equals path,
// used by the Reconciler (spec §4.9 step 4) to find IDs to delete.
func (s *QdrantStore) Query(ctx context.Context, name string, relativePath string, limit int) ([]Result, error) {
	lim := uint32(limit)
	if lim == 0 {
		lim = 10000
	}
	resp, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: name,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("relative_path", relativePath)},
		},
		Limit:       &lim,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s by path %s: %w", name, relativePath, err)
	}

	out := make([]Result, 0, len(resp))
	for _, p := range resp {
		out = append(out, resultFromRetrievedPoint(p))
	}
	return out, nil
}

// pointUUID reformats a content-addressed chunk ID (spec §4.6's
// "chunk_"+16-hex form, neither a valid UUID nor a u64) into the dashed
// 8-4-4-4-12 UUID form Qdrant requires for point IDs, deterministically so
// re-inserting the same chunk content upserts the same point. Grounded in
// the teacher's generateNoContextID (code_chunk_service.go), which hashes
// and reslices a chunk ID into UUID form for the same reason.
func pointUUID(id string) string {
	hash := sha256.Sum256([]byte(id))
	hexDigest := hex.EncodeToString(hash[:])
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		hexDigest[0:8], hexDigest[8:12], hexDigest[12:16], hexDigest[16:20], hexDigest[20:32])
}

func buildFilter(f Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.RelativePath != "" {
		must = append(must, qdrant.NewMatch("relative_path", f.RelativePath))
	}
	if len(f.Extensions) > 0 {
		must = append(must, qdrant.NewMatchKeywords("file_extension", f.Extensions...))
	}
	return &qdrant.Filter{Must: must}
}

func resultFromScoredPoint(p *qdrant.ScoredPoint) Result {
	payload := p.GetPayload()
	return Result{
		ID:            idString(p.GetId()),
		Content:       stringField(payload, "content"),
		RelativePath:  stringField(payload, "relative_path"),
		StartLine:     int(intField(payload, "start_line")),
		EndLine:       int(intField(payload, "end_line")),
		FileExtension: stringField(payload, "file_extension"),
		Metadata:      metadataFromPayload(payload),
		Score:         p.GetScore(),
	}
}

func resultFromRetrievedPoint(p *qdrant.RetrievedPoint) Result {
	payload := p.GetPayload()
	return Result{
		ID:            idString(p.GetId()),
		Content:       stringField(payload, "content"),
		RelativePath:  stringField(payload, "relative_path"),
		StartLine:     int(intField(payload, "start_line")),
		EndLine:       int(intField(payload, "end_line")),
		FileExtension: stringField(payload, "file_extension"),
		Metadata:      metadataFromPayload(payload),
	}
}

func idString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func stringField(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func intField(payload map[string]*qdrant.Value, key string) int64 {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	return v.GetIntegerValue()
}

func metadataFromPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch {
		case v.GetStringValue() != "":
			out[k] = v.GetStringValue()
		default:
			out[k] = v.GetIntegerValue()
		}
	}
	return out
}
