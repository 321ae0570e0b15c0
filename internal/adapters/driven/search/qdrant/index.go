// Package qdrant implements driven.VectorIndex on a Qdrant collection
// using the official gRPC client.
package qdrant

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// PointIDKey holds the caller's point ID, since Qdrant only accepts UUIDs
// and unsigned integers as IDs.
const PointIDKey = "_point_id"

// client is the subset of *qc.Client the index uses.
type client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qc.CreateCollection) error
	Upsert(ctx context.Context, request *qc.UpsertPoints) (*qc.UpdateResult, error)
	Delete(ctx context.Context, request *qc.DeletePoints) (*qc.UpdateResult, error)
	Query(ctx context.Context, request *qc.QueryPoints) ([]*qc.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qc.HealthCheckReply, error)
	Close() error
}

// Index stores points in one Qdrant collection with cosine distance.
type Index struct {
	client     client
	collection string
	dimension  int
	log        *logger.Logger

	mu    sync.Mutex
	ready bool
}

// New connects to Qdrant. The collection is created on first use.
func New(settings domain.QdrantSettings, dimension int, log *logger.Logger) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("qdrant: dimension must be positive: %w", domain.ErrInvalidInput)
	}
	c, err := dial(settings)
	if err != nil {
		return nil, err
	}
	return newIndex(c, settings.Collection, dimension, log), nil
}

// Ping connects to Qdrant and runs a health check.
func Ping(ctx context.Context, settings domain.QdrantSettings) error {
	c, err := dial(settings)
	if err != nil {
		return err
	}
	defer c.Close()
	return healthCheck(ctx, c, settings)
}

func dial(settings domain.QdrantSettings) (*qc.Client, error) {
	c, err := qc.NewClient(&qc.Config{
		Host:   settings.Host,
		Port:   settings.Port,
		APIKey: settings.APIKey,
		UseTLS: settings.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect %s:%d: %w: %w", settings.Host, settings.Port, domain.ErrSearchUnavailable, err)
	}
	return c, nil
}

func healthCheck(ctx context.Context, c client, settings domain.QdrantSettings) error {
	if _, err := c.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check %s:%d: %w: %w", settings.Host, settings.Port, domain.ErrSearchUnavailable, err)
	}
	return nil
}

func newIndex(c client, collection string, dimension int, log *logger.Logger) *Index {
	return &Index{client: c, collection: collection, dimension: dimension, log: log.With("qdrant")}
}

// ensureCollection creates the collection if it does not exist yet.
func (x *Index) ensureCollection(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.ready {
		return nil
	}
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection %s: %w", x.collection, err)
	}
	if !exists {
		x.log.Info("Creating collection %s (%d dimensions)", x.collection, x.dimension)
		err = x.client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: x.collection,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(x.dimension),
				Distance: qc.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: create collection %s: %w", x.collection, err)
		}
	}
	x.ready = true
	return nil
}

// Upsert writes points and waits for the operation to be applied.
func (x *Index) Upsert(ctx context.Context, points []driven.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qc.PointStruct, len(points))
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("qdrant: point without id: %w", domain.ErrInvalidInput)
		}
		if len(p.Vector) != x.dimension {
			return fmt.Errorf("qdrant: point %s has %d dimensions, want %d: %w",
				p.ID, len(p.Vector), x.dimension, domain.ErrInvalidInput)
		}
		payload := make(map[string]*qc.Value, len(p.Payload)+1)
		for k, v := range p.Payload {
			val, err := toValue(v)
			if err != nil {
				return fmt.Errorf("qdrant: point %s field %s: %w", p.ID, k, err)
			}
			payload[k] = val
		}
		payload[PointIDKey] = stringValue(p.ID)

		structs[i] = &qc.PointStruct{
			Id:      qc.NewID(PointUUID(p.ID)),
			Vectors: qc.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	if err := x.ensureCollection(ctx); err != nil {
		return err
	}
	_, err := x.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: x.collection,
		Wait:           ptr(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(structs), err)
	}
	x.log.Debug("Upserted %d points into %s", len(structs), x.collection)
	return nil
}

// Remove deletes points by their caller IDs and waits for the operation.
func (x *Index) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := x.ensureCollection(ctx); err != nil {
		return err
	}

	pointIDs := make([]*qc.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qc.NewID(PointUUID(id))
	}
	_, err := x.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: x.collection,
		Wait:           ptr(true),
		Points:         qc.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete %d points: %w", len(ids), err)
	}
	x.log.Debug("Deleted %d points from %s", len(ids), x.collection)
	return nil
}

// Search runs a nearest-neighbour query with exact keyword payload filters.
func (x *Index) Search(ctx context.Context, q driven.VectorQuery) ([]driven.VectorHit, error) {
	if err := x.ensureCollection(ctx); err != nil {
		return nil, err
	}

	req := &qc.QueryPoints{
		CollectionName: x.collection,
		Query:          qc.NewQuery(q.Vector...),
		WithPayload:    qc.NewWithPayload(true),
	}
	if q.Limit > 0 {
		req.Limit = ptr(uint64(q.Limit))
	}
	if q.ScoreThreshold > 0 {
		req.ScoreThreshold = ptr(float32(q.ScoreThreshold))
	}
	if len(q.Match) > 0 {
		filter := &qc.Filter{}
		for _, key := range sortedKeys(q.Match) {
			filter.Must = append(filter.Must, qc.NewMatch(key, q.Match[key]))
		}
		req.Filter = filter
	}

	points, err := x.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: query %s: %w", x.collection, err)
	}

	hits := make([]driven.VectorHit, 0, len(points))
	for _, p := range points {
		payload := make(map[string]any, len(p.GetPayload()))
		for k, v := range p.GetPayload() {
			payload[k] = fromValue(v)
		}
		id, _ := payload[PointIDKey].(string)
		delete(payload, PointIDKey)
		if id == "" {
			id = p.GetId().GetUuid()
		}
		hits = append(hits, driven.VectorHit{ID: id, Score: float64(p.GetScore()), Payload: payload})
	}
	return hits, nil
}

// Close closes the gRPC connection.
func (x *Index) Close() error {
	return x.client.Close()
}

// PointUUID returns id when it is a UUID, otherwise a stable name-based UUID.
func PointUUID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func stringValue(s string) *qc.Value {
	return &qc.Value{Kind: &qc.Value_StringValue{StringValue: s}}
}

func toValue(v any) (*qc.Value, error) {
	switch val := v.(type) {
	case nil:
		return &qc.Value{Kind: &qc.Value_NullValue{}}, nil
	case string:
		return stringValue(val), nil
	case bool:
		return &qc.Value{Kind: &qc.Value_BoolValue{BoolValue: val}}, nil
	case int:
		return &qc.Value{Kind: &qc.Value_IntegerValue{IntegerValue: int64(val)}}, nil
	case int64:
		return &qc.Value{Kind: &qc.Value_IntegerValue{IntegerValue: val}}, nil
	case float64:
		return &qc.Value{Kind: &qc.Value_DoubleValue{DoubleValue: val}}, nil
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return toValue(items)
	case []any:
		list := &qc.ListValue{Values: make([]*qc.Value, 0, len(val))}
		for _, item := range val {
			iv, err := toValue(item)
			if err != nil {
				return nil, err
			}
			list.Values = append(list.Values, iv)
		}
		return &qc.Value{Kind: &qc.Value_ListValue{ListValue: list}}, nil
	case map[string]any:
		st := &qc.Struct{Fields: make(map[string]*qc.Value, len(val))}
		for k, item := range val {
			iv, err := toValue(item)
			if err != nil {
				return nil, err
			}
			st.Fields[k] = iv
		}
		return &qc.Value{Kind: &qc.Value_StructValue{StructValue: st}}, nil
	}
	return nil, fmt.Errorf("unsupported payload type %T: %w", v, domain.ErrInvalidInput)
}

func fromValue(v *qc.Value) any {
	switch kind := v.GetKind().(type) {
	case *qc.Value_StringValue:
		return kind.StringValue
	case *qc.Value_BoolValue:
		return kind.BoolValue
	case *qc.Value_IntegerValue:
		return kind.IntegerValue
	case *qc.Value_DoubleValue:
		return kind.DoubleValue
	case *qc.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			items = append(items, fromValue(item))
		}
		return items
	case *qc.Value_StructValue:
		m := make(map[string]any, len(kind.StructValue.GetFields()))
		for k, item := range kind.StructValue.GetFields() {
			m[k] = fromValue(item)
		}
		return m
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ptr[T any](v T) *T { return &v }
