// Package digest renders a run's outcome into the deterministic text
// artifacts delivery collaborators consume: the issue digest with its stable
// hash marker, the PR-style review body, and the run summary.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// IssueMarker identifies the watcher's digest issue comment.
const IssueMarker = "<!-- mint-watch-digest -->"

const stableHashMarkerPrefix = "<!-- mint-watch-stable-hash:"

var stableHashPattern = regexp.MustCompile(`(?i)<!--\s*mint-watch-stable-hash:([a-f0-9]{64})\s*-->`)

// stableSource is the normalized projection hashed for idempotence checks.
// Field order is fixed; volatile display artifacts stay out of it.
type stableSource struct {
	LogicInscriptionID string           `json:"logicInscriptionId"`
	Eligible           []stableEligible `json:"eligible"`
	Rejected           []stableRejected `json:"rejected"`
	DetectedCount      int              `json:"detectedCount"`
	IgnoredExisting    int              `json:"ignoredExistingCount"`
	Errors             []string         `json:"errors"`
}

type stableEligible struct {
	ID       string              `json:"id"`
	Seed     string              `json:"seed"`
	Wallet   string              `json:"wallet"`
	MintedAt string              `json:"mintedAt"`
	Proposal model.ManifestEntry `json:"proposal"`
}

type stableRejected struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	Wallet   string `json:"wallet"`
	MintedAt string `json:"mintedAt"`
}

// StableHash hashes the run's material outcome. Error strings are sorted
// first so a reordered error list does not look like a material change.
func StableHash(run *model.RunResult) string {
	src := stableSource{
		LogicInscriptionID: run.LogicInscriptionID,
		Eligible:           make([]stableEligible, 0, len(run.Eligible)),
		Rejected:           make([]stableRejected, 0, len(run.Rejected)),
		DetectedCount:      run.Stats.DetectedCount,
		IgnoredExisting:    run.Stats.IgnoredExistingCount,
		Errors:             append([]string(nil), run.Errors...),
	}
	sort.Strings(src.Errors)

	for _, c := range run.Eligible {
		src.Eligible = append(src.Eligible, stableEligible{
			ID:       c.InscriptionID,
			Seed:     c.Seed,
			Wallet:   c.Address,
			MintedAt: c.MintedAt,
			Proposal: c.ProposedEntry,
		})
	}
	for _, c := range run.Rejected {
		src.Rejected = append(src.Rejected, stableRejected{
			ID:       c.InscriptionID,
			Status:   string(c.Status),
			Reason:   c.Reason,
			Wallet:   c.Address,
			MintedAt: c.MintedAt,
		})
	}

	encoded, err := json.Marshal(src)
	if err != nil {
		// The projection is plain data; marshaling cannot fail at runtime.
		panic(fmt.Sprintf("marshal stable source: %v", err))
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// ExtractStableHash pulls the stable hash out of a previously posted digest
// body, or "" when no marker is present.
func ExtractStableHash(body string) string {
	match := stableHashPattern.FindStringSubmatch(body)
	if match == nil {
		return ""
	}
	return strings.ToLower(match[1])
}

// BuildIssueDigest renders the digest issue body. prURL is optional and
// appended as a draft-PR link when the posting collaborator has one.
func BuildIssueDigest(run *model.RunResult, prURL string) (body, hash string) {
	hash = StableHash(run)

	var lines []string
	push := func(s string) { lines = append(lines, s) }

	push(IssueMarker)
	push(stableHashMarkerPrefix + hash + " -->")
	push("## Mint Watch Digest")
	push("")
	push("Last scan: " + run.ScannedAt)
	push("Logic inscription: `" + run.LogicInscriptionID + "`")
	push("")
	push(fmt.Sprintf("- Confirmed candidate detections (not already in manifest): %d", run.Stats.DetectedCount))
	push(fmt.Sprintf("- Eligible proposals: %d", len(run.Eligible)))
	push(fmt.Sprintf("- Rejected detections: %d", len(run.Rejected)))
	push(fmt.Sprintf("- Ignored (already in manifest): %d", run.Stats.IgnoredExistingCount))
	if prURL != "" {
		push("- Draft PR: " + prURL)
	}
	push("")

	if len(run.Eligible) > 0 {
		push("### Eligible Proposals")
		push("")
		for _, c := range run.Eligible {
			push(fmt.Sprintf("- [%s](%s) -> `%s` (%s), seed `%s`, wallet `%s`, minted %s",
				c.InscriptionID, c.ExplorerURL, c.ProposedEntry.Slug, c.ProposedEntry.Title,
				c.Seed, c.Address, c.MintedAt))
		}
		push("")
	}

	if len(run.Rejected) > 0 {
		push("### Rejected / Non-Eligible")
		push("")
		for _, c := range run.Rejected {
			line := fmt.Sprintf("- [%s](%s) -> `%s`", c.InscriptionID, c.ExplorerURL, c.Status)
			if c.Reason != "" {
				line += " (" + c.Reason + ")"
			}
			if c.Address != "" {
				line += ", wallet `" + c.Address + "`"
			}
			if c.MintedAt != "" {
				line += ", minted " + c.MintedAt
			}
			push(line)
		}
		push("")
	}

	if len(run.Errors) > 0 {
		push("### Watcher Errors")
		push("")
		for _, e := range run.Errors {
			push("- " + e)
		}
		push("")
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n", hash
}

// BuildPRBody renders the human-facing proposal review body.
func BuildPRBody(run *model.RunResult) string {
	var lines []string
	push := func(s string) { lines = append(lines, s) }

	push("## Mint Watch Inbox (Draft)")
	push("")
	push("Automated proposal generated from detected recursive HTML inscriptions referencing the current Random Faces renderer logic inscription.")
	push("")
	push("- Scan time: " + run.ScannedAt)
	push("- Logic inscription: `" + run.LogicInscriptionID + "`")
	push(fmt.Sprintf("- Eligible proposals in this draft: %d", len(run.Eligible)))
	push(fmt.Sprintf("- Rejected detections observed: %d", len(run.Rejected)))
	push("")

	if len(run.Eligible) > 0 {
		push("### Proposed Manifest Additions")
		push("")
		for _, c := range run.Eligible {
			push(fmt.Sprintf("- `%s` / %s", c.ProposedEntry.Slug, c.ProposedEntry.Title))
			push("  - inscription: " + c.InscriptionID)
			push("  - seed: " + c.Seed)
			push("  - wallet: " + c.Address)
			push("  - mintedAt: " + c.MintedAt)
			push("  - ordinals: " + c.ExplorerURL)
		}
		push("")
	}

	if len(run.Rejected) > 0 {
		push("### Rejected / Non-Eligible Detections (for review visibility)")
		push("")
		for _, c := range run.Rejected {
			line := fmt.Sprintf("- `%s`: %s", c.Status, c.InscriptionID)
			if c.Reason != "" {
				line += " (" + c.Reason + ")"
			}
			push(line)
		}
		push("")
	}

	push("### Reviewer Checklist")
	push("")
	push("- Confirm each proposed inscription renders correctly on ordinals.com and matches expected Random Faces style.")
	push("- Confirm one-mint-per-wallet and first-come ordering still make sense for any edge cases.")
	push("- Merge only when ready to publish these entries to the official gallery (merge updates `main` and deploys Pages).")
	push("")
	push("This PR is draft-only and should not be auto-merged.")

	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}

// BuildSummary renders the operator-facing run summary.
func BuildSummary(run *model.RunResult) string {
	var lines []string
	push := func(s string) { lines = append(lines, s) }

	push("# Mint Watch Run")
	push("")
	push("- Scan time: " + run.ScannedAt)
	push("- Logic inscription: `" + run.LogicInscriptionID + "`")
	push(fmt.Sprintf("- Lookback hours: %d", run.Options.LookbackHours))
	push(fmt.Sprintf("- Max pages: %d", run.Options.MaxPages))
	push(fmt.Sprintf("- Confirmations required: %d", run.Options.Confirmations))
	push(fmt.Sprintf("- Hiro pages fetched: %d", run.Stats.PagesFetched))
	push(fmt.Sprintf("- Hiro rows scanned: %d", run.Stats.RowsScanned))
	push(fmt.Sprintf("- Candidates matched logic inscription: %d", run.Stats.LogicMatched))
	push(fmt.Sprintf("- Confirmed candidate detections (not already in manifest): %d", run.Stats.DetectedCount))
	push(fmt.Sprintf("- Eligible proposals: %d", len(run.Eligible)))
	push(fmt.Sprintf("- Rejected detections: %d", len(run.Rejected)))
	push(fmt.Sprintf("- Ignored already in manifest: %d", run.Stats.IgnoredExistingCount))
	if run.ProposalChanged {
		push("- Proposal manifest changed: yes")
	} else {
		push("- Proposal manifest changed: no")
	}
	if run.TipHeight != nil {
		push(fmt.Sprintf("- Tip height used: %d", *run.TipHeight))
	} else {
		push("- Tip height used: unavailable (age fallback may apply)")
	}

	if len(run.Errors) > 0 {
		push("")
		push("## Errors")
		push("")
		for _, e := range run.Errors {
			push("- " + e)
		}
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}

// PRTitle names the draft inbox PR after the proposal count.
func PRTitle(eligibleCount int) string {
	plural := "s"
	if eligibleCount == 1 {
		plural = ""
	}
	return fmt.Sprintf("chore: mint watch inbox (%d proposal%s)", eligibleCount, plural)
}

var markdownRenderer = goldmark.New(
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderHTML converts a digest markdown body to HTML for collaborators that
// want a pre-rendered artifact.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render digest html: %w", err)
	}
	return buf.String(), nil
}
