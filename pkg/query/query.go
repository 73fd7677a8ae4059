// Package query maps short natural-language questions onto graph lookups.
// It is deliberately pattern-based: candidate entities come from
// capitalization, intent from keyword presence, and every intent compiles
// to one parameterized Cypher statement with its traversal path returned
// for transparency.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// NoAnswer is returned verbatim when a question matches nothing in the
// graph. The helper never invents facts.
const NoAnswer = "I don't have enough information to answer that."

const maxResults = 5

// Querier is the slice of the graph store the engine needs.
type Querier interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Engine turns questions into Cypher and formats the results.
type Engine struct {
	store  Querier
	logger *slog.Logger
}

// New creates a query engine over the given store.
func New(store Querier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// Response is the full answer to one question: the formatted one-liner,
// the entity ids traversed, the raw records and the emitted query.
type Response struct {
	Answer  string           `json:"answer"`
	Path    []string         `json:"path"`
	Results []map[string]any `json:"results"`
	Query   string           `json:"query"`
}

// Ask answers a question against the live graph, or against the graph as
// of the given RFC3339 timestamp when one is supplied.
func (e *Engine) Ask(ctx context.Context, question, timestamp string) (*Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, NewQueryError("question must not be empty", nil)
	}

	at := ""
	if timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, NewQueryError("malformed timestamp", err)
		}
		// Match the store's stored-timestamp layout so string comparison
		// in Cypher stays correct down to the millisecond.
		at = parsed.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}

	cypher, params := buildQuery(question, at)
	rows, err := e.store.Query(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	if len(rows) > maxResults {
		rows = rows[:maxResults]
	}

	resp := &Response{
		Answer:  NoAnswer,
		Path:    []string{},
		Results: rows,
		Query:   cypher,
	}
	if len(rows) > 0 {
		resp.Answer = formatAnswer(question, rows)
		resp.Path = asStringList(rows[0]["path_nodes"])
	}

	e.logger.Info("question answered",
		"question", question,
		"results", len(rows),
		"path_length", len(resp.Path))

	return resp, nil
}

// buildQuery classifies the question and compiles the matching Cypher.
// Entity-scoped intents are tried first; keyword-only fallbacks follow.
func buildQuery(question, at string) (string, map[string]any) {
	lower := strings.ToLower(question)
	entities := extractEntities(question)

	params := map[string]any{}
	if at != "" {
		params["at"] = at
	}
	live := livePredicate(at)

	if len(entities) > 0 {
		params["pattern"] = entityPattern(entities)

		if strings.Contains(lower, "who") && containsAny(lower, "founded", "created", "started") {
			return fmt.Sprintf(`
				MATCH path = (target:Entity)-[r]->(person:Entity)
				WHERE %s
				  AND (type(r) =~ '.*FOUND.*' OR type(r) =~ '.*CREAT.*' OR type(r) =~ '.*START.*')
				  AND target.name =~ $pattern
				RETURN person.name AS person,
				       type(r) AS relation,
				       target.name AS company,
				       r.confidence AS confidence,
				       [node IN nodes(path) | node.id] AS path_nodes
				LIMIT 1`, live), params
		}
		if containsAny(lower, "what", "tell", "about") {
			return fmt.Sprintf(`
				MATCH path = (source:Entity)-[r]->(target:Entity)
				WHERE %s
				  AND (source.name =~ $pattern OR target.name =~ $pattern)
				RETURN source.name AS source,
				       type(r) AS relation,
				       target.name AS target,
				       r.confidence AS confidence,
				       [node IN nodes(path) | node.id] AS path_nodes
				LIMIT 5`, live), params
		}
		delete(params, "pattern")
	}

	switch {
	case containsAny(lower, "how much", "cost", "price"):
		return fmt.Sprintf(`
			MATCH path = (product:Entity)-[r]->(price:Entity)
			WHERE %s
			  AND (type(r) =~ '.*COST.*' OR type(r) =~ '.*PRICE.*')
			RETURN product.name AS product,
			       price.name AS price,
			       r.confidence AS confidence,
			       r.source_url AS source,
			       [node IN nodes(path) | node.id] AS path_nodes
			LIMIT 1`, live), params

	case strings.Contains(lower, "who") && containsAny(lower, "ceo", "founder"):
		return fmt.Sprintf(`
			MATCH path = (person:Entity)-[r]->(company:Entity)
			WHERE %s
			  AND (type(r) =~ '.*CEO.*' OR type(r) =~ '.*FOUND.*')
			RETURN person.name AS person,
			       type(r) AS relation,
			       company.name AS company,
			       r.confidence AS confidence,
			       [node IN nodes(path) | node.id] AS path_nodes
			LIMIT 1`, live), params

	case strings.Contains(lower, "what") && strings.Contains(lower, "changed"):
		closed := "r.valid_to IS NOT NULL"
		if at != "" {
			closed += " AND r.valid_to <= $at"
		}
		return fmt.Sprintf(`
			MATCH path = (source:Entity)-[r]->(target:Entity)
			WHERE %s
			RETURN source.name AS source,
			       type(r) AS relation,
			       target.name AS target,
			       r.valid_from AS from_date,
			       r.valid_to AS to_date,
			       [node IN nodes(path) | node.id] AS path_nodes
			ORDER BY r.valid_to DESC
			LIMIT 5`, closed), params

	default:
		return fmt.Sprintf(`
			MATCH path = (source:Entity)-[r]->(target:Entity)
			WHERE %s
			RETURN source.name AS source,
			       type(r) AS relation,
			       target.name AS target,
			       r.confidence AS confidence,
			       [node IN nodes(path) | node.id] AS path_nodes
			ORDER BY rand()
			LIMIT 5`, live), params
	}
}

// livePredicate bounds edges to those live now, or live at the given
// instant when a timestamp was supplied.
func livePredicate(at string) string {
	if at == "" {
		return "r.valid_to IS NULL"
	}
	return "r.valid_from <= $at AND (r.valid_to IS NULL OR r.valid_to > $at)"
}

// formatAnswer renders the first record as a one-line answer, keyed off
// the same intent keywords that chose the query.
func formatAnswer(question string, rows []map[string]any) string {
	first := rows[0]
	lower := strings.ToLower(question)

	switch {
	case containsAny(lower, "how much", "cost", "price"):
		return fmt.Sprintf("%s costs %s.",
			stringField(first, "product"), stringField(first, "price"))

	case strings.Contains(lower, "who") && containsAny(lower, "ceo", "founder", "founded"):
		relation := cleanRelation(stringField(first, "relation"))
		relation = strings.ReplaceAll(relation, " by", "")
		return fmt.Sprintf("%s %s %s.",
			stringField(first, "person"), relation, stringField(first, "company"))

	case strings.Contains(lower, "what") && strings.Contains(lower, "changed"):
		limit := len(rows)
		if limit > 3 {
			limit = 3
		}
		lines := make([]string, 0, limit)
		for _, row := range rows[:limit] {
			toDate := stringField(row, "to_date")
			if toDate == "Unknown" {
				toDate = "recently"
			}
			lines = append(lines, fmt.Sprintf("- %s %s %s (changed %s)",
				stringField(row, "source"), cleanRelation(stringField(row, "relation")),
				stringField(row, "target"), toDate))
		}
		return "Recent changes:\n" + strings.Join(lines, "\n")

	default:
		return fmt.Sprintf("%s %s %s.",
			stringField(first, "source"), cleanRelation(stringField(first, "relation")),
			stringField(first, "target"))
	}
}

func cleanRelation(relation string) string {
	return strings.ToLower(strings.ReplaceAll(relation, "_", " "))
}

func stringField(row map[string]any, key string) string {
	if s, ok := row[key].(string); ok && s != "" {
		return s
	}
	return "Unknown"
}

func asStringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
