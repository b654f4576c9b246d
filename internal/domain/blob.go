package domain

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Archive layout. Settlement reports and evidence bundles are written once
// and never rewritten.
const (
	SettlementPrefix = "settlements/"
	EvidencePrefix   = "evidence/"
)

// SettlementPath is the report object of a resolved market.
func SettlementPath(marketID uint64) string {
	return fmt.Sprintf("%smarket-%d.json", SettlementPrefix, marketID)
}

// SettlementBetsPath holds the market's bets, one JSON object per line.
func SettlementBetsPath(marketID uint64) string {
	return SettlementPath(marketID) + "l"
}

// EvidencePath is the bundle object of a revealed submission.
func EvidencePath(submissionID uint64) string {
	return fmt.Sprintf("%ssubmission-%d.json", EvidencePrefix, submissionID)
}

// BlobInfo describes an archived object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// BlobWriter uploads archive objects.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves archive objects. Get returns ErrNotFound for a
// missing path.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}
