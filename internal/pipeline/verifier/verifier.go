// Package verifier extracts and checks the renderer import and seed literal
// embedded in a candidate's HTML content. Extraction is pure pattern
// matching; the script is never executed.
package verifier

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
)

// FailureReason enumerates everything that can go wrong during verification.
type FailureReason string

const (
	ReasonNone                FailureReason = ""
	ReasonContentUnreachable  FailureReason = "content_fetch_failed"
	ReasonLogicImportNotFound FailureReason = "logic_import_not_found"
	ReasonLogicMismatch       FailureReason = "logic_mismatch"
	ReasonSeedNotFound        FailureReason = "seed_not_found"
	ReasonSeedParseError      FailureReason = "seed_parse_error"
	ReasonSeedNotString       FailureReason = "seed_not_string"
)

// Status maps a failure reason to the candidate's terminal rejection status.
func (r FailureReason) Status() model.CandidateStatus {
	switch r {
	case ReasonLogicImportNotFound, ReasonLogicMismatch:
		return model.StatusLogicMismatch
	default:
		return model.StatusParseFailed
	}
}

var (
	// The mint HTML imports the renderer like
	//   import { renderFromSeed } from "/content/<logic-inscription-id>";
	logicImportPattern = regexp.MustCompile(`(?i)import\s*\{\s*renderFromSeed\s*\}\s*from\s*["']/content/(?P<logicId>[a-f0-9]{64}i\d+)["']`)

	// The seed is inscribed as a JSON string literal:
	//   const seed = "...";
	seedLiteralPattern = regexp.MustCompile(`const\s+seed\s*=\s*(?P<literal>"(?:\\.|[^"\\])*")\s*;`)
)

// ContentFetcher fetches raw inscription content.
type ContentFetcher interface {
	FetchContent(ctx context.Context, inscriptionID string) (html string, source string, err error)
}

// Result is the outcome of verifying one candidate.
type Result struct {
	OK            bool
	Reason        FailureReason
	Detail        string // human-facing detail, e.g. the mismatched ref or fetch error
	Seed          string
	ParsedLogicID string
	ContentSource string
}

// ParseLogicID extracts the renderer logic inscription id referenced by the
// content, or ok=false when no import is present.
func ParseLogicID(html string) (string, bool) {
	match := logicImportPattern.FindStringSubmatch(html)
	if match == nil {
		return "", false
	}
	return match[logicImportPattern.SubexpIndex("logicId")], true
}

// ParseSeed extracts the quoted seed literal. The raw capture is decoded as a
// JSON string so escape sequences resolve exactly as the renderer sees them.
func ParseSeed(html string) (string, FailureReason) {
	match := seedLiteralPattern.FindStringSubmatch(html)
	if match == nil {
		return "", ReasonSeedNotFound
	}
	literal := match[seedLiteralPattern.SubexpIndex("literal")]

	var seed string
	if err := json.Unmarshal([]byte(literal), &seed); err != nil {
		return "", ReasonSeedParseError
	}
	return seed, ReasonNone
}

// Verify fetches a candidate's content and checks both extractions against
// the configured logic inscription id (compared case-insensitively).
func Verify(ctx context.Context, fetcher ContentFetcher, inscriptionID, logicInscriptionID string) Result {
	html, source, err := fetcher.FetchContent(ctx, inscriptionID)
	if err != nil {
		return Result{Reason: ReasonContentUnreachable, Detail: "content_fetch_failed: " + err.Error()}
	}

	parsedLogicID, found := ParseLogicID(html)
	if !found {
		return Result{Reason: ReasonLogicImportNotFound, Detail: string(ReasonLogicImportNotFound), ContentSource: source}
	}
	if model.NormalizeKey(parsedLogicID) != model.NormalizeKey(logicInscriptionID) {
		return Result{
			Reason:        ReasonLogicMismatch,
			Detail:        "content_import_ref=" + parsedLogicID,
			ContentSource: source,
		}
	}

	seed, reason := ParseSeed(html)
	if reason != ReasonNone {
		return Result{Reason: reason, Detail: string(reason), ContentSource: source}
	}

	return Result{
		OK:            true,
		Seed:          seed,
		ParsedLogicID: parsedLogicID,
		ContentSource: source,
	}
}
