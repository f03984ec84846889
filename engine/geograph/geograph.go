package geograph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// GraphStore provides the location-hierarchy operations on top of Neo4j.
type GraphStore struct {
	driver neo4j.DriverWithContext
}

// New creates a new GraphStore.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{driver: driver}
}

// SaveNode creates or updates a location node (MERGE by id).
func (g *GraphStore) SaveNode(ctx context.Context, n LocationNode) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (n:Location {id: $id}) SET n += $props`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":    n.ID,
		"props": nodeToMap(n),
	})
	return err
}

// SaveContainment records that from lies within to, creating both nodes if
// they don't already exist. Used by the geocoder to persist the hierarchy
// implied by a resolved {port, sea, ocean} triple.
func (g *GraphStore) SaveContainment(ctx context.Context, from, to LocationNode, e ContainsEdge) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (a:Location {id: $fromID}) SET a += $fromProps
	           MERGE (b:Location {id: $toID}) SET b += $toProps
	           MERGE (a)-[r:CONTAINED_IN {id: $edgeID}]->(b)`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"fromID": from.ID, "fromProps": nodeToMap(from),
		"toID": to.ID, "toProps": nodeToMap(to),
		"edgeID": e.ID,
	})
	return err
}

// Siblings returns every node that shares a parent with nodeID — e.g. all
// ports known to lie within the same sea.
func (g *GraphStore) Siblings(ctx context.Context, nodeID string) ([]LocationNode, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Location {id: $id})-[:CONTAINED_IN]->(parent:Location)<-[:CONTAINED_IN]-(sibling:Location)
	           WHERE sibling.id <> $id
	           RETURN DISTINCT sibling`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	return collectNodes(ctx, result)
}

// Ancestors returns the containment chain above nodeID (e.g. port -> sea ->
// ocean), nearest first.
func (g *GraphStore) Ancestors(ctx context.Context, nodeID string) ([]LocationNode, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH p = (n:Location {id: $id})-[:CONTAINED_IN*1..2]->(ancestor:Location)
	           RETURN nodes(p) AS nodes`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		return nil, nil
	}
	nodesVal, ok := result.Record().Get("nodes")
	if !ok {
		return nil, fmt.Errorf("geograph: no nodes in ancestors result")
	}
	nodeList, ok := nodesVal.([]any)
	if !ok {
		return nil, fmt.Errorf("geograph: unexpected nodes type")
	}
	var out []LocationNode
	for _, raw := range nodeList {
		n, ok := raw.(dbtype.Node)
		if !ok {
			continue
		}
		if n.Props["id"] == nodeID {
			continue // skip the starting node itself
		}
		out = append(out, nodeFromProps(n.Props))
	}
	return out, nil
}

func collectNodes(ctx context.Context, result neo4j.ResultWithContext) ([]LocationNode, error) {
	var out []LocationNode
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "sibling")
		if err != nil {
			return nil, err
		}
		out = append(out, nodeFromProps(node.Props))
	}
	return out, nil
}

func nodeToMap(n LocationNode) map[string]any {
	m := map[string]any{
		"id":   n.ID,
		"name": n.Name,
		"kind": string(n.Kind),
	}
	for k, v := range n.Properties {
		m["prop_"+k] = v
	}
	return m
}

func nodeFromProps(props map[string]any) LocationNode {
	n := LocationNode{
		ID:         strProp(props, "id"),
		Name:       strProp(props, "name"),
		Kind:       NodeKind(strProp(props, "kind")),
		Properties: make(map[string]string),
	}
	for k, v := range props {
		if len(k) > 5 && k[:5] == "prop_" {
			if s, ok := v.(string); ok {
				n.Properties[k[5:]] = s
			}
		}
	}
	return n
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
