// Package neo4j implements graph.Repository on Neo4j.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/efebarandurmaz/agni/internal/corpus"
	"github.com/efebarandurmaz/agni/internal/graph"
)

const storeFoodCypher = `MERGE (f:Food {name: $name})
SET f.sanskrit = $sanskrit, f.taste = $taste, f.qualities = $qualities,
    f.dosha_effects = $dosha_effects, f.benefits = $benefits,
    f.quantity = $quantity, f.preparation = $preparation
WITH f
CALL {
  WITH f
  UNWIND $conditions AS condition
  MERGE (c:Condition {name: condition})
  MERGE (f)-[:SUPPORTS]->(c)
}
CALL {
  WITH f
  UNWIND $doshas AS dosha
  MERGE (d:Dosha {name: dosha})
  MERGE (f)-[:BALANCES]->(d)
}`

const foodsForConditionCypher = `MATCH (f:Food)-[:SUPPORTS]->(c:Condition)
WHERE toLower(c.name) CONTAINS $term
  AND (size($doshas) = 0 OR EXISTS { MATCH (f)-[:BALANCES]->(d:Dosha) WHERE d.name IN $doshas })
WITH DISTINCT f
RETURN f.name AS name, f.sanskrit AS sanskrit, f.taste AS taste, f.qualities AS qualities,
       f.dosha_effects AS dosha_effects, f.benefits AS benefits, f.quantity AS quantity,
       f.preparation AS preparation,
       [(f)-[:SUPPORTS]->(x:Condition) | x.name] AS conditions
ORDER BY name`

// Neo4jRepository implements graph.Repository using Neo4j.
type Neo4jRepository struct {
	driver neo4j.DriverWithContext
}

// NewNeo4j creates a Neo4j-backed repository.
func NewNeo4j(ctx context.Context, uri, username, password string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver}, nil
}

func (r *Neo4jRepository) StoreFoods(ctx context.Context, foods []corpus.Food) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, f := range foods {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, storeFoodCypher, foodParams(f))
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("store food %s: %w", f.Name, err)
		}
	}
	return nil
}

func foodParams(f corpus.Food) map[string]any {
	conditions := make([]any, len(f.Conditions))
	for i, c := range f.Conditions {
		conditions[i] = c
	}
	balanced := graph.BalancedDoshas(f.DoshaEffects)
	doshas := make([]any, len(balanced))
	for i, d := range balanced {
		doshas[i] = d
	}
	return map[string]any{
		"name":          f.Name,
		"sanskrit":      f.Sanskrit,
		"taste":         f.Taste,
		"qualities":     f.Qualities,
		"dosha_effects": f.DoshaEffects,
		"benefits":      f.Benefits,
		"quantity":      f.Quantity,
		"preparation":   f.Preparation,
		"conditions":    conditions,
		"doshas":        doshas,
	}
}

func (r *Neo4jRepository) FoodsForCondition(ctx context.Context, condition, dosha string) ([]corpus.Food, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	parts := graph.DoshaParts(dosha)
	doshas := make([]any, len(parts))
	for i, d := range parts {
		doshas[i] = d
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, foodsForConditionCypher, map[string]any{
			"term":   graph.ConditionTerm(condition),
			"doshas": doshas,
		})
		if err != nil {
			return nil, err
		}

		var foods []corpus.Food
		for records.Next(ctx) {
			foods = append(foods, recordToFood(records.Record()))
		}
		return foods, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("foods for %q: %w", condition, err)
	}
	foods, _ := result.([]corpus.Food)
	return foods, nil
}

func recordToFood(rec *neo4j.Record) corpus.Food {
	str := func(key string) string {
		v, _ := rec.Get(key)
		s, _ := v.(string)
		return s
	}
	f := corpus.Food{
		Name:         str("name"),
		Sanskrit:     str("sanskrit"),
		Taste:        str("taste"),
		Qualities:    str("qualities"),
		DoshaEffects: str("dosha_effects"),
		Benefits:     str("benefits"),
		Quantity:     str("quantity"),
		Preparation:  str("preparation"),
	}
	if raw, ok := rec.Get("conditions"); ok {
		list, _ := raw.([]any)
		for _, c := range list {
			if s, ok := c.(string); ok {
				f.Conditions = append(f.Conditions, s)
			}
		}
	}
	return f
}

// Ping verifies the driver can reach the server.
func (r *Neo4jRepository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ graph.Repository = (*Neo4jRepository)(nil)
