package model

import (
	"sort"
	"strings"
	"time"
)

// CandidateStatus tags the terminal classification of a detected candidate.
type CandidateStatus string

const (
	StatusEligible             CandidateStatus = "eligible"
	StatusParseFailed          CandidateStatus = "rejected_parse_failed"
	StatusLogicMismatch        CandidateStatus = "rejected_logic_mismatch"
	StatusDuplicateInscription CandidateStatus = "rejected_duplicate_inscription"
	StatusDuplicateWallet      CandidateStatus = "rejected_duplicate_wallet"
	StatusSupplyFull           CandidateStatus = "rejected_supply_full"
	StatusManifestValidation   CandidateStatus = "rejected_manifest_validation"
)

// ConfirmationMethod describes how a candidate's settlement was decided.
type ConfirmationMethod string

const (
	ConfirmNone        ConfirmationMethod = "none"
	ConfirmBlockHeight ConfirmationMethod = "block_height"
	ConfirmAgeFallback ConfirmationMethod = "age_fallback"
	ConfirmUnavailable ConfirmationMethod = "unavailable"
)

// Confirmation is the outcome of the confirmation-depth check.
type Confirmation struct {
	Confirmed bool               `json:"confirmed"`
	Method    ConfirmationMethod `json:"method"`
	Detail    map[string]int64   `json:"detail,omitempty"`
}

// Candidate is one discovered inscription that may reference the collection's
// renderer logic. It is created from a single indexer row, enriched by content
// verification, and never mutated after classification.
type Candidate struct {
	InscriptionID      string       `json:"inscriptionId"`
	InscriptionNumber  *int64       `json:"inscriptionNumber,omitempty"`
	Recursive          bool         `json:"recursive"`
	RecursionRefs      []string     `json:"recursionRefs,omitempty"`
	Address            string       `json:"address,omitempty"`
	GenesisTimestampMs *int64       `json:"genesisTimestampMs,omitempty"`
	MintedAt           string       `json:"mintedAt,omitempty"`
	GenesisBlockHeight *int64       `json:"genesisBlockHeight,omitempty"`
	MimeType           string       `json:"mimeType"`
	ExplorerURL        string       `json:"explorerUrl,omitempty"`
	Confirmation       Confirmation `json:"confirmation,omitempty"`

	// Set by content verification.
	Seed                     string `json:"seed,omitempty"`
	ParsedLogicInscriptionID string `json:"parsedLogicInscriptionId,omitempty"`
	ContentSource            string `json:"contentSource,omitempty"`
}

// Key returns the canonical lowercase identifier used for dedup and
// uniqueness comparisons.
func (c Candidate) Key() string {
	return NormalizeKey(c.InscriptionID)
}

// EligibleCandidate is a candidate that survived classification and carries
// its proposed manifest entry.
type EligibleCandidate struct {
	Candidate
	ProposedEntry ManifestEntry `json:"proposedEntry"`
}

// RejectedCandidate is a candidate classified out of the run, with a
// machine-readable status and a human reason.
type RejectedCandidate struct {
	Candidate
	Status CandidateStatus `json:"status"`
	Reason string          `json:"reason,omitempty"`
}

// NormalizeKey lowercases and trims an identifier for comparisons.
func NormalizeKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IsHTMLMime reports whether a mime type is text/html, with or without
// parameters.
func IsHTMLMime(mime string) bool {
	v := NormalizeKey(mime)
	return v == "text/html" || strings.HasPrefix(v, "text/html;")
}

// SortCandidatesForClassification orders candidates by
// (genesisTimestampMs asc, inscriptionNumber asc, inscriptionId lexicographic).
// Missing timestamps and numbers sort last. This total order decides who wins
// scarce manifest slots, so it must stay stable across runs.
func SortCandidatesForClassification(items []Candidate) []Candidate {
	sorted := make([]Candidate, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := orderingValue(sorted[i].GenesisTimestampMs), orderingValue(sorted[j].GenesisTimestampMs)
		if ti != tj {
			return ti < tj
		}
		ni, nj := orderingValue(sorted[i].InscriptionNumber), orderingValue(sorted[j].InscriptionNumber)
		if ni != nj {
			return ni < nj
		}
		return sorted[i].InscriptionID < sorted[j].InscriptionID
	})
	return sorted
}

func orderingValue(v *int64) int64 {
	if v == nil {
		return int64(^uint64(0) >> 1) // max int64
	}
	return *v
}

// ISOFromMs formats a unix-milliseconds timestamp as UTC RFC 3339 with
// millisecond precision, matching the manifest's mintedAt format. The empty
// string is returned for a nil timestamp.
func ISOFromMs(ms *int64) string {
	if ms == nil {
		return ""
	}
	return time.UnixMilli(*ms).UTC().Format("2006-01-02T15:04:05.000Z")
}
