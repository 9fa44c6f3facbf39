package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

// LexicalBackend searches the corpus with Postgres full-text ranking. The
// corpus tables are owned and populated by the ingestion pipeline; this
// adapter only reads.
type LexicalBackend struct {
	db         *sql.DB
	textConfig string
}

func NewLexicalBackend(db *sql.DB, textConfig string) *LexicalBackend {
	if textConfig == "" {
		textConfig = "italian"
	}
	return &LexicalBackend{db: db, textConfig: textConfig}
}

func (b *LexicalBackend) Kind() domain.BackendKind { return domain.BackendLexical }

func (b *LexicalBackend) Search(ctx context.Context, query domain.Query, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := b.db.QueryContext(ctx, `
SELECT c.id, c.document_id, c.text,
       d.title, d.authority_class, d.doc_type, d.published_at,
       ts_rank_cd(c.tsv, websearch_to_tsquery($1, $2)) AS score
FROM corpus_chunks c
JOIN corpus_documents d ON d.id = c.document_id
WHERE c.tsv @@ websearch_to_tsquery($1, $2)
ORDER BY score DESC, c.id ASC
LIMIT $3
`, b.textConfig, query.LexicalQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search query: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var (
			candidate   domain.Candidate
			publishedAt sql.NullTime
		)
		if err := rows.Scan(
			&candidate.ID,
			&candidate.Metadata.DocumentID,
			&candidate.Text,
			&candidate.Metadata.Title,
			&candidate.Metadata.AuthorityClass,
			&candidate.Metadata.DocumentType,
			&publishedAt,
			&candidate.RawScore,
		); err != nil {
			return nil, fmt.Errorf("lexical search scan: %w", err)
		}
		if publishedAt.Valid {
			candidate.Metadata.PublishedAt = publishedAt.Time.UTC()
		}
		candidate.SourceBackend = domain.BackendLexical
		out = append(out, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lexical search rows: %w", err)
	}
	return out, nil
}
