// Package neo4j implements the authority-weighted retrieval backend on the
// citation graph: fulltext relevance scaled by how often a document is
// cited, with the publishing source's authority class carried along.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

const authorityQuery = `
CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
MATCH (node)-[:PART_OF]->(d:Document)-[:PUBLISHED_BY]->(s:Source)
WITH node, d, s, score, COUNT { (d)<-[:CITES]-() } AS citations
RETURN node.id          AS chunk_id,
       node.text        AS text,
       d.id             AS doc_id,
       d.title          AS title,
       d.doc_type       AS doc_type,
       d.published_at   AS published_at,
       s.authority_class AS authority_class,
       score * (1.0 + log(1 + citations)) AS score
ORDER BY score DESC, chunk_id ASC
LIMIT $limit`

type AuthorityBackend struct {
	driver    neo4j.DriverWithContext
	database  string
	indexName string
}

func NewAuthorityBackend(driver neo4j.DriverWithContext, database, indexName string) *AuthorityBackend {
	if indexName == "" {
		indexName = "chunk_fulltext"
	}
	return &AuthorityBackend{driver: driver, database: database, indexName: indexName}
}

func (b *AuthorityBackend) Kind() domain.BackendKind { return domain.BackendAuthority }

// Search matches against the entity query variant: the keyword core of the
// question is what citation-graph relevance is good at.
func (b *AuthorityBackend) Search(ctx context.Context, query domain.Query, limit int) ([]domain.Candidate, error) {
	text := query.EntityQuery
	if text == "" {
		text = query.LexicalQuery
	}
	if text == "" {
		return nil, nil
	}

	result, err := neo4j.ExecuteQuery(ctx, b.driver, authorityQuery,
		map[string]any{
			"index": b.indexName,
			"query": text,
			"limit": limit,
		},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(b.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("authority search: %w", err)
	}

	out := make([]domain.Candidate, 0, len(result.Records))
	for _, record := range result.Records {
		out = append(out, candidateFromRecord(record))
	}
	return out, nil
}

func candidateFromRecord(record *db.Record) domain.Candidate {
	candidate := domain.Candidate{
		ID:            stringValue(record, "chunk_id"),
		SourceBackend: domain.BackendAuthority,
		RawScore:      floatValue(record, "score"),
		Text:          stringValue(record, "text"),
		Metadata: domain.CandidateMetadata{
			DocumentID:     stringValue(record, "doc_id"),
			Title:          stringValue(record, "title"),
			AuthorityClass: domain.AuthorityClass(intValue(record, "authority_class")),
			DocumentType:   domain.DocumentType(stringValue(record, "doc_type")),
		},
	}
	if ts := stringValue(record, "published_at"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			candidate.Metadata.PublishedAt = parsed.UTC()
		}
	}
	return candidate
}

func stringValue(record *db.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func floatValue(record *db.Record, key string) float64 {
	switch v, _ := record.Get(key); t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	default:
		return 0
	}
}

func intValue(record *db.Record, key string) int {
	switch v, _ := record.Get(key); t := v.(type) {
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
