package service

import "github.com/atinyakov/totpkeeper/internal/models"

// ResolveStatus tells which branch of a Resolution is set.
type ResolveStatus int

const (
	// NotFound means no identity matched the query.
	NotFound ResolveStatus = iota
	// Found means Record holds the single match.
	Found
	// Ambiguous means Candidates holds two or more matches.
	Ambiguous
)

func (s ResolveStatus) String() string {
	switch s {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not found"
	}
}

// Resolution is the result of Store.Resolve.
type Resolution struct {
	Status     ResolveStatus
	Record     models.SecretRecord
	Candidates []models.SecretRecord
}
