package immich

import (
	"fmt"
	"time"
)

// Status is the outcome of a ping.
type Status struct {
	Reachable bool
	Detail    string
}

// Identity is the user owning the API key.
type Identity struct {
	Name    string
	IsAdmin bool
	// Known is false when Name is the UnknownUser placeholder.
	Known bool
}

// String renders the identity for status messages.
func (i Identity) String() string {
	if !i.Known {
		return i.Name
	}
	if i.IsAdmin {
		return fmt.Sprintf("👤 %s [Admin]", i.Name)
	}
	return "👤 " + i.Name
}

// Report combines ping and identity for status messages.
type Report struct {
	Status   Status
	Identity Identity
}

// StatusLine renders the ping result with a check or cross mark.
func (r Report) StatusLine() string {
	if r.Status.Reachable {
		return "✅ " + r.Status.Detail
	}
	return "❌ " + r.Status.Detail
}

// UploadRequest describes one file to upload.
type UploadRequest struct {
	Path      string
	FileName  string
	CreatedAt time.Time
	Checksum  string
}

// OutcomeKind enumerates how the server answered an upload.
type OutcomeKind int

const (
	OutcomeCreated OutcomeKind = iota + 1
	OutcomeDuplicate
	OutcomeRejected
	OutcomeFailed
)

// String returns the metric label of the kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the interpreted server answer. Message carries the server's
// response text for failures and the rejection reason for rejections.
type Outcome struct {
	Kind    OutcomeKind
	AssetID string
	Message string
	Status  int
}
