// Package pipeline wires the mint-watch stages together: scan, verify,
// classify, report. One Run call is one complete pass; stages fail soft into
// the run's error list, and only a bad configuration or an already-invalid
// manifest aborts before scanning starts.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
	"github.com/HattoriHanzo12/Random-Faces/internal/indexer"
	"github.com/HattoriHanzo12/Random-Faces/internal/metrics"
	"github.com/HattoriHanzo12/Random-Faces/internal/pipeline/digest"
	"github.com/HattoriHanzo12/Random-Faces/internal/pipeline/policy"
	"github.com/HattoriHanzo12/Random-Faces/internal/pipeline/scanner"
	"github.com/HattoriHanzo12/Random-Faces/internal/pipeline/verifier"
	"github.com/HattoriHanzo12/Random-Faces/internal/store"
	"github.com/google/uuid"
)

// IndexerAPI is the slice of the indexer client the pipeline needs.
type IndexerAPI interface {
	scanner.Lister
	FetchContent(ctx context.Context, inscriptionID string) (indexer.ContentResult, error)
	TipHeight(ctx context.Context) (int64, bool)
}

// Output is everything one run produces for collaborators.
type Output struct {
	Result           *model.RunResult
	ProposedManifest model.Manifest
	IssueDigest      string
	IssueDigestHTML  string
	StableHash       string
	PRBody           string
	Summary          string
}

// Runner executes mint-watch runs.
type Runner struct {
	client IndexerAPI
	logger *slog.Logger

	nowFn   func() time.Time
	runIDFn func() string
}

func NewRunner(client IndexerAPI, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client:  client,
		logger:  logger.With("component", "runner"),
		nowFn:   time.Now,
		runIDFn: func() string { return uuid.NewString() },
	}
}

// contentAdapter narrows the client to the verifier's fetch contract.
type contentAdapter struct {
	client IndexerAPI
}

func (a contentAdapter) FetchContent(ctx context.Context, inscriptionID string) (string, string, error) {
	result, err := a.client.FetchContent(ctx, inscriptionID)
	if err != nil {
		return "", "", err
	}
	return result.HTML, result.Source, nil
}

// Run executes one scan pass over the given manifest snapshot.
// It returns an error only for fatal pre-flight failures; everything else
// degrades into the result's error list.
func (r *Runner) Run(ctx context.Context, manifest model.Manifest, collection model.CollectionConfig, opts model.WatchOptions) (*Output, error) {
	start := r.nowFn()
	now := start.UTC()

	logicID := strings.TrimSpace(collection.LogicInscriptionID)
	if logicID == "" {
		metrics.ScanRunsTotal.WithLabelValues("fatal").Inc()
		return nil, fmt.Errorf("logicInscriptionId is empty in collection config")
	}
	if errs := manifest.Validate(collection); len(errs) > 0 {
		metrics.ScanRunsTotal.WithLabelValues("fatal").Inc()
		return nil, fmt.Errorf("manifest validation failed before scan: %s", strings.Join(errs, "; "))
	}

	run := &model.RunResult{
		RunID:              r.runIDFn(),
		ScannedAt:          now.Format(time.RFC3339),
		LogicInscriptionID: logicID,
		Options:            opts,
		MaxSupply:          collection.EffectiveMaxSupply(),
		Errors:             []string{},
		Eligible:           []model.EligibleCandidate{},
		Rejected:           []model.RejectedCandidate{},
	}

	existing := make(map[string]struct{}, len(manifest))
	for _, item := range manifest {
		if item.InscriptionID != "" {
			existing[model.NormalizeKey(item.InscriptionID)] = struct{}{}
		}
	}

	var tipHeight *int64
	if height, ok := r.client.TipHeight(ctx); ok {
		tipHeight = &height
	}
	run.TipHeight = tipHeight

	// Scanning
	scan := scanner.New(r.client, r.logger).Scan(ctx, scanner.Params{
		Options:              opts,
		LogicInscriptionID:   logicID,
		ExistingInscriptions: existing,
		TipHeight:            tipHeight,
		Now:                  now,
	})
	run.Errors = append(run.Errors, scan.Errors...)
	run.Stats.PagesFetched = scan.PagesFetched
	run.Stats.RowsScanned = scan.RowsScanned
	run.Stats.LogicMatched = scan.LogicMatched
	run.Stats.IgnoredExistingCount = scan.IgnoredExistingCount

	sorted := model.SortCandidatesForClassification(scan.Candidates)
	run.Stats.DetectedCount = len(sorted)

	// Verifying. Sequential by design: slot assignment downstream is
	// order-dependent, and the content hosts are public infrastructure.
	fetcher := contentAdapter{client: r.client}
	verified := make([]model.Candidate, 0, len(sorted))
	for _, candidate := range sorted {
		result := verifier.Verify(ctx, fetcher, candidate.InscriptionID, logicID)
		if !result.OK {
			rejected := model.RejectedCandidate{
				Candidate: candidate,
				Status:    result.Reason.Status(),
				Reason:    result.Detail,
			}
			rejected.ContentSource = result.ContentSource
			run.Rejected = append(run.Rejected, rejected)
			continue
		}
		candidate.Seed = result.Seed
		candidate.ParsedLogicInscriptionID = result.ParsedLogicID
		candidate.ContentSource = result.ContentSource
		verified = append(verified, candidate)
	}

	// Classifying
	sim := policy.Simulate(manifest, collection, verified, now)
	run.Eligible = append(run.Eligible, sim.Eligible...)
	run.Rejected = append(run.Rejected, sim.Rejected...)
	run.Stats.EligibleCount = len(run.Eligible)
	run.Stats.RejectedCount = len(run.Rejected)

	for _, c := range run.Eligible {
		metrics.CandidatesClassified.WithLabelValues(string(model.StatusEligible)).Inc()
		r.logger.Info("eligible proposal",
			"inscription", c.InscriptionID, "slug", c.ProposedEntry.Slug, "wallet", c.Address)
	}
	for _, c := range run.Rejected {
		metrics.CandidatesClassified.WithLabelValues(string(c.Status)).Inc()
	}

	// Reporting
	proposed := make(model.Manifest, 0, len(manifest)+len(sim.Final.Proposed))
	proposed = append(proposed, manifest...)
	proposed = append(proposed, sim.Final.Proposed...)
	run.ProposalChanged = manifestChanged(manifest, proposed)
	run.PRTitle = digest.PRTitle(len(run.Eligible))

	issueBody, stableHash := digest.BuildIssueDigest(run, "")
	issueHTML, err := digest.RenderHTML(issueBody)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("digest html render failed: %s", err.Error()))
	}

	output := &Output{
		Result:           run,
		ProposedManifest: proposed,
		IssueDigest:      issueBody,
		IssueDigestHTML:  issueHTML,
		StableHash:       stableHash,
		PRBody:           digest.BuildPRBody(run),
		Summary:          digest.BuildSummary(run),
	}

	outcome := "ok"
	if len(run.Errors) > 0 {
		outcome = "partial"
	}
	metrics.ScanRunsTotal.WithLabelValues(outcome).Inc()
	metrics.ScanRunDuration.Observe(time.Since(start).Seconds())

	r.logger.Info("scan run complete",
		"run_id", run.RunID,
		"pages", run.Stats.PagesFetched,
		"rows", run.Stats.RowsScanned,
		"detected", run.Stats.DetectedCount,
		"eligible", run.Stats.EligibleCount,
		"rejected", run.Stats.RejectedCount,
		"ignored_existing", run.Stats.IgnoredExistingCount,
		"errors", len(run.Errors),
	)

	return output, nil
}

// manifestChanged compares canonical serializations, the same check the
// upstream watcher uses to decide whether a proposal PR is worth refreshing.
func manifestChanged(current, proposed model.Manifest) bool {
	currentBytes, err := store.EncodeManifest(current)
	if err != nil {
		return true
	}
	proposedBytes, err := store.EncodeManifest(proposed)
	if err != nil {
		return true
	}
	return !bytes.Equal(currentBytes, proposedBytes)
}
