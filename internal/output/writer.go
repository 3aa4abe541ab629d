// Package output persists one run's artifacts to the scratch directory and,
// when running inside a workflow, publishes step outputs for downstream jobs.
package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HattoriHanzo12/Random-Faces/internal/pipeline"
	"github.com/HattoriHanzo12/Random-Faces/internal/store"
)

// Paths are the artifact locations one run produced.
type Paths struct {
	Result           string `json:"result"`
	ProposedManifest string `json:"proposedManifest"`
	IssueDigest      string `json:"issueDigest"`
	IssueDigestHTML  string `json:"issueDigestHtml"`
	PRBody           string `json:"prBody"`
	Summary          string `json:"summary"`
}

// Writer writes run artifacts under a single output directory.
type Writer struct {
	outDir string
	logger *slog.Logger
}

func NewWriter(outDir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{outDir: outDir, logger: logger.With("component", "output")}
}

// WriteAll persists every artifact of the run. Files are rewritten in place;
// the directory is the unit of cleanup.
func (w *Writer) WriteAll(out *pipeline.Output) (Paths, error) {
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create output dir %s: %w", w.outDir, err)
	}

	paths := Paths{
		Result:           filepath.Join(w.outDir, "result.json"),
		ProposedManifest: filepath.Join(w.outDir, "proposed_minted_faces.json"),
		IssueDigest:      filepath.Join(w.outDir, "issue_digest.md"),
		IssueDigestHTML:  filepath.Join(w.outDir, "issue_digest.html"),
		PRBody:           filepath.Join(w.outDir, "pr_body.md"),
		Summary:          filepath.Join(w.outDir, "summary.md"),
	}

	resultJSON, err := json.MarshalIndent(out.Result, "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("marshal run result: %w", err)
	}
	if err := os.WriteFile(paths.Result, append(resultJSON, '\n'), 0o644); err != nil {
		return Paths{}, fmt.Errorf("write %s: %w", paths.Result, err)
	}

	manifestJSON, err := store.EncodeManifest(out.ProposedManifest)
	if err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.ProposedManifest, manifestJSON, 0o644); err != nil {
		return Paths{}, fmt.Errorf("write %s: %w", paths.ProposedManifest, err)
	}

	texts := []struct {
		path string
		body string
	}{
		{paths.IssueDigest, out.IssueDigest},
		{paths.IssueDigestHTML, out.IssueDigestHTML},
		{paths.PRBody, out.PRBody},
		{paths.Summary, out.Summary},
	}
	for _, t := range texts {
		if err := os.WriteFile(t.path, []byte(t.body), 0o644); err != nil {
			return Paths{}, fmt.Errorf("write %s: %w", t.path, err)
		}
	}

	w.logger.Info("run artifacts written", "dir", w.outDir, "run_id", out.Result.RunID)
	return paths, nil
}

// AppendStepOutputs appends workflow key=value outputs to the file named by
// GITHUB_OUTPUT. A multiline value uses the heredoc form the runner expects.
// No-op when the variable is unset.
func AppendStepOutputs(out *pipeline.Output, paths Paths) error {
	target := os.Getenv("GITHUB_OUTPUT")
	if target == "" {
		return nil
	}

	run := out.Result
	pairs := [][2]string{
		{"proposal_changed", strconv.FormatBool(run.ProposalChanged)},
		{"pr_title", run.PRTitle},
		{"eligible_count", strconv.Itoa(run.Stats.EligibleCount)},
		{"rejected_count", strconv.Itoa(run.Stats.RejectedCount)},
		{"detected_count", strconv.Itoa(run.Stats.DetectedCount)},
		{"ignored_existing_count", strconv.Itoa(run.Stats.IgnoredExistingCount)},
		{"stable_hash", out.StableHash},
		{"result_path", paths.Result},
		{"proposed_manifest_path", paths.ProposedManifest},
		{"issue_digest_path", paths.IssueDigest},
		{"pr_body_path", paths.PRBody},
		{"summary_path", paths.Summary},
	}

	var b strings.Builder
	for _, pair := range pairs {
		key, value := pair[0], pair[1]
		if strings.ContainsAny(value, "\n\r") {
			fmt.Fprintf(&b, "%s<<MINT_WATCH_EOF\n%s\nMINT_WATCH_EOF\n", key, value)
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", key, value)
	}

	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open step output file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("append step outputs: %w", err)
	}
	return nil
}
