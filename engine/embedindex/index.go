package embedindex

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// CargoIndex is the sole owner of all Qdrant operations for cargo
// embeddings.
type CargoIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a CargoIndex connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*CargoIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("embedindex: dial qdrant %s: %w", addr, err)
	}
	return &CargoIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a CargoIndex around already-constructed gRPC
// clients, for tests that substitute mocks for the Qdrant service.
func NewWithClients(points pb.PointsClient, collections pb.CollectionsClient, collection string) *CargoIndex {
	return &CargoIndex{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (v *CargoIndex) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the cargo-embedding collection if it doesn't
// exist yet.
func (v *CargoIndex) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("embedindex: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	d := uint64(dims)
	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("embedindex: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores or replaces a cargo's embedding. Called after
// domain.NormalizeCargo computes GeneralEmbedding.
func (v *CargoIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.CargoID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("embedindex: upsert %d points: %w", len(records), err)
	}
	return nil
}

// DeleteCargo removes a cargo's embedding, e.g. once it's been matched and
// retired from active consideration.
func (v *CargoIndex) DeleteCargo(ctx context.Context, cargoID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{{
					PointIdOptions: &pb.PointId_Uuid{Uuid: cargoID},
				}}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("embedindex: delete cargo %s: %w", cargoID, err)
	}
	return nil
}

// SearchNearest returns the topK cargoes whose stored embedding is nearest
// to embedding, restricted to the given candidate IDs (the hard-filter
// result set) so the vector search only ranks cargoes already eligible on
// capacity/month/commission/geospatial grounds.
func (v *CargoIndex) SearchNearest(ctx context.Context, embedding []float32, candidateIDs []string, topK int) ([]SearchResult, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	ids := make([]*pb.PointId, len(candidateIDs))
	for i, id := range candidateIDs {
		ids[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		Filter: &pb.Filter{
			Must: []*pb.Condition{{
				ConditionOneOf: &pb.Condition_HasId{
					HasId: &pb.HasIdCondition{HasId: ids},
				},
			}},
		},
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedindex: search: %w", err)
	}

	out := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		out[i] = SearchResult{CargoID: r.GetId().GetUuid(), Score: r.GetScore()}
	}
	return out, nil
}
