// Package scanner drives the indexer listing across pages and filters rows
// down to scan-stage candidates.
//
// Precondition: the indexer returns inscriptions newest-first by number.
// Under that ordering, once an entire page predates the lookback window every
// later page does too, so stopping early is correctness-preserving. The
// scanner verifies the ordering as it goes; if a page violates it, the early
// cutoff is disabled for the rest of the run and every page up to the cap is
// scanned instead.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
	"github.com/HattoriHanzo12/Random-Faces/internal/indexer"
	"github.com/HattoriHanzo12/Random-Faces/internal/metrics"
	"github.com/HattoriHanzo12/Random-Faces/internal/pipeline/confirm"
)

// Lister fetches one page of recursive HTML inscriptions.
type Lister interface {
	ListRecursiveHTML(ctx context.Context, offset, limit int) (*indexer.ListPage, error)
}

// Params are the inputs for one scan.
type Params struct {
	Options            model.WatchOptions
	LogicInscriptionID string
	// ExistingInscriptions holds lowercased manifest inscription ids; rows
	// matching them are counted as ignored and never content-fetched.
	ExistingInscriptions map[string]struct{}
	TipHeight            *int64
	Now                  time.Time
}

// Outcome is what one scan produced.
type Outcome struct {
	Candidates           []model.Candidate
	PagesFetched         int
	RowsScanned          int
	LogicMatched         int
	IgnoredExistingCount int
	// Errors are non-fatal run errors (page abort, ordering violation).
	Errors []string
}

// Scanner walks indexer pages sequentially.
type Scanner struct {
	lister Lister
	logger *slog.Logger
}

func New(lister Lister, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		lister: lister,
		logger: logger.With("component", "scanner"),
	}
}

// Scan walks up to Options.MaxPages pages and returns the in-window,
// confirmed, deduplicated candidates that reference the configured logic
// inscription. A page fetch failure aborts further paging but keeps what was
// gathered, recorded as a run error.
func (s *Scanner) Scan(ctx context.Context, p Params) Outcome {
	var out Outcome

	cutoffMs := p.Now.Add(-time.Duration(p.Options.LookbackHours) * time.Hour).UnixMilli()
	logicKey := model.NormalizeKey(p.LogicInscriptionID)

	seen := make(map[string]struct{})
	cutoffEnabled := true
	var lastNumber *int64

	for pageIndex := 0; pageIndex < p.Options.MaxPages; pageIndex++ {
		offset := pageIndex * p.Options.PageSize
		page, err := s.lister.ListRecursiveHTML(ctx, offset, p.Options.PageSize)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("hiro list query failed at offset %d: %s", offset, err.Error()))
			s.logger.Warn("page fetch failed, aborting pagination", "offset", offset, "error", err)
			break
		}

		out.PagesFetched++
		metrics.ScanPagesFetched.Inc()
		if len(page.Results) == 0 {
			break
		}

		var pageOldestMs *int64

		for _, rawRow := range page.Results {
			out.RowsScanned++
			metrics.ScanRowsScanned.Inc()

			row := rawRow.Normalize()
			if row.InscriptionID == "" {
				continue
			}

			if cutoffEnabled && row.InscriptionNumber != nil {
				if lastNumber != nil && *row.InscriptionNumber > *lastNumber {
					cutoffEnabled = false
					out.Errors = append(out.Errors, fmt.Sprintf(
						"indexer ordering violated at offset %d (number %d after %d); early cutoff disabled",
						offset, *row.InscriptionNumber, *lastNumber))
					s.logger.Warn("newest-first ordering violated, scanning all pages",
						"offset", offset, "number", *row.InscriptionNumber, "previous", *lastNumber)
				}
				lastNumber = row.InscriptionNumber
			}

			if row.GenesisTimestampMs != nil {
				if pageOldestMs == nil || *row.GenesisTimestampMs < *pageOldestMs {
					pageOldestMs = row.GenesisTimestampMs
				}
			}

			if !row.Recursive || !model.IsHTMLMime(row.MimeType) {
				continue
			}
			if !referencesLogic(row.RecursionRefs, logicKey) {
				continue
			}
			out.LogicMatched++

			key := row.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if _, exists := p.ExistingInscriptions[key]; exists {
				out.IgnoredExistingCount++
				metrics.CandidatesIgnoredExisting.Inc()
				continue
			}

			// Outside the lookback window: skip the row, but the page-level
			// cutoff below still sees its timestamp.
			if row.GenesisTimestampMs != nil && *row.GenesisTimestampMs < cutoffMs {
				continue
			}

			confirmation := confirm.IsConfirmed(row, p.TipHeight, p.Options.Confirmations, p.Now)
			if !confirmation.Confirmed {
				s.logger.Debug("candidate not yet confirmed",
					"inscription", row.InscriptionID, "method", confirmation.Method)
				continue
			}
			row.Confirmation = confirmation

			out.Candidates = append(out.Candidates, row)
		}

		if cutoffEnabled && pageOldestMs != nil && *pageOldestMs < cutoffMs {
			s.logger.Debug("page predates lookback window, stopping", "page", pageIndex)
			break
		}
	}

	return out
}

func referencesLogic(refs []string, logicKey string) bool {
	for _, ref := range refs {
		if model.NormalizeKey(ref) == logicKey {
			return true
		}
	}
	return false
}
