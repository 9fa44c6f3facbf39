package domain

import "time"

// BackendKind identifies one of the five retrieval signal sources.
type BackendKind string

const (
	BackendLexical   BackendKind = "lexical"
	BackendVector    BackendKind = "vector"
	BackendHyde      BackendKind = "hyde"
	BackendAuthority BackendKind = "authority"
	BackendWeb       BackendKind = "web"
)

// AllBackends lists every known backend kind in dispatch order.
var AllBackends = []BackendKind{
	BackendLexical,
	BackendVector,
	BackendHyde,
	BackendAuthority,
	BackendWeb,
}

func (k BackendKind) Valid() bool {
	switch k {
	case BackendLexical, BackendVector, BackendHyde, BackendAuthority, BackendWeb:
		return true
	}
	return false
}

// AuthorityClass ranks the publishing source. Higher is more authoritative.
type AuthorityClass int

const (
	AuthorityUnknown   AuthorityClass = 0
	AuthorityCommunity AuthorityClass = 1
	AuthorityPress     AuthorityClass = 2
	AuthorityScholarly AuthorityClass = 3
	AuthorityOfficial  AuthorityClass = 4
)

// DocumentType classifies the kind of corpus document a chunk belongs to.
type DocumentType string

const (
	DocTypePrimaryLaw DocumentType = "primary_law"
	DocTypeCaseLaw    DocumentType = "case_law"
	DocTypeCircular   DocumentType = "circular"
	DocTypeCommentary DocumentType = "commentary"
	DocTypeWebPage    DocumentType = "web_page"
)

type CandidateMetadata struct {
	DocumentID     string         `json:"document_id"`
	Title          string         `json:"title"`
	AuthorityClass AuthorityClass `json:"authority_class"`
	DocumentType   DocumentType   `json:"document_type"`
	PublishedAt    time.Time      `json:"published_at,omitempty"`
	URL            string         `json:"url,omitempty"`
	IsWebResult    bool           `json:"is_web_result"`
}

// Candidate is one retrieved passage as emitted by a single backend.
// ID is chunk-level and globally unique within the corpus; web results use
// their URL as the chunk id.
type Candidate struct {
	ID              string            `json:"id"`
	SourceBackend   BackendKind       `json:"source_backend"`
	RawScore        float64           `json:"raw_score"`
	NormalizedScore float64           `json:"normalized_score"`
	Text            string            `json:"text"`
	Metadata        CandidateMetadata `json:"metadata"`
}

// FusedResult is a deduplicated candidate with its fused score and 1-based rank.
type FusedResult struct {
	Candidate  Candidate `json:"candidate"`
	FusedScore float64   `json:"fused_score"`
	Rank       int       `json:"rank"`
}
