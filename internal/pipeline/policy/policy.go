// Package policy replays the official-manifest acceptance rules over a batch
// of verified candidates. The simulation is a pure fold: an immutable
// accumulator threaded through the sorted candidate list, so the core logic
// carries no hidden shared state and needs no network to test.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
)

// State is the simulator accumulator. Candidates accepted earlier in the
// fold are visible to later ones through it.
type State struct {
	UsedInscriptions map[string]struct{}
	UsedWallets      map[string]struct{}
	UsedSlugs        map[string]struct{}
	Count            int
	Proposed         []model.ManifestEntry
}

// NewState seeds the accumulator from the current manifest.
func NewState(manifest model.Manifest) State {
	s := State{
		UsedInscriptions: make(map[string]struct{}, len(manifest)),
		UsedWallets:      make(map[string]struct{}, len(manifest)),
		UsedSlugs:        make(map[string]struct{}, len(manifest)),
		Count:            len(manifest),
	}
	for _, item := range manifest {
		if item.InscriptionID != "" {
			s.UsedInscriptions[model.NormalizeKey(item.InscriptionID)] = struct{}{}
		}
		if item.MinterAddress != "" {
			s.UsedWallets[model.NormalizeKey(item.MinterAddress)] = struct{}{}
		}
		if item.Slug != "" {
			s.UsedSlugs[model.NormalizeKey(item.Slug)] = struct{}{}
		}
	}
	return s
}

func (s State) clone() State {
	next := State{
		UsedInscriptions: make(map[string]struct{}, len(s.UsedInscriptions)+1),
		UsedWallets:      make(map[string]struct{}, len(s.UsedWallets)+1),
		UsedSlugs:        make(map[string]struct{}, len(s.UsedSlugs)+1),
		Count:            s.Count,
		Proposed:         append([]model.ManifestEntry(nil), s.Proposed...),
	}
	for k := range s.UsedInscriptions {
		next.UsedInscriptions[k] = struct{}{}
	}
	for k := range s.UsedWallets {
		next.UsedWallets[k] = struct{}{}
	}
	for k := range s.UsedSlugs {
		next.UsedSlugs[k] = struct{}{}
	}
	return next
}

// Result partitions one simulation run.
type Result struct {
	Eligible []model.EligibleCandidate
	Rejected []model.RejectedCandidate
	Final    State
}

// NextSlugAndTitle returns the sequential slug/title pair for a 1-based
// collection index, zero-padded to three digits.
func NextSlugAndTitle(index1Based int) (slug, title string) {
	n := fmt.Sprintf("%03d", index1Based)
	return "classic-face-" + n, "Classic Face " + n
}

// Simulate folds verified candidates, in classification order, over the
// manifest acceptance rules. Candidates must already be sorted with
// model.SortCandidatesForClassification; the caller owns that ordering
// because slot assignment depends on it. After each acceptance the full
// hypothetical manifest is re-validated, so a merged proposal satisfies
// every invariant by construction.
func Simulate(manifest model.Manifest, cfg model.CollectionConfig, candidates []model.Candidate, now time.Time) Result {
	state := NewState(manifest)
	maxSupply := cfg.EffectiveMaxSupply()

	var result Result
	for _, candidate := range candidates {
		entry, rejection := evaluate(state, manifest, cfg, maxSupply, candidate, now)
		if rejection != nil {
			result.Rejected = append(result.Rejected, *rejection)
			continue
		}

		next := state.clone()
		next.Count++
		next.UsedInscriptions[candidate.Key()] = struct{}{}
		next.UsedWallets[model.NormalizeKey(candidate.Address)] = struct{}{}
		next.UsedSlugs[model.NormalizeKey(entry.Slug)] = struct{}{}
		next.Proposed = append(next.Proposed, *entry)
		state = next

		enriched := candidate
		enriched.MintedAt = entry.MintedAt
		result.Eligible = append(result.Eligible, model.EligibleCandidate{
			Candidate:     enriched,
			ProposedEntry: *entry,
		})
	}

	result.Final = state
	return result
}

// evaluate applies the acceptance rules to one candidate against the current
// accumulator. The rejection order is part of the policy contract.
func evaluate(state State, manifest model.Manifest, cfg model.CollectionConfig, maxSupply int, candidate model.Candidate, now time.Time) (*model.ManifestEntry, *model.RejectedCandidate) {
	reject := func(status model.CandidateStatus, reason string) (*model.ManifestEntry, *model.RejectedCandidate) {
		return nil, &model.RejectedCandidate{Candidate: candidate, Status: status, Reason: reason}
	}

	if _, used := state.UsedInscriptions[candidate.Key()]; used {
		return reject(model.StatusDuplicateInscription, "already in official manifest or proposal set")
	}

	if strings.TrimSpace(candidate.Address) == "" {
		return reject(model.StatusManifestValidation, "missing address from indexer metadata")
	}

	if _, used := state.UsedWallets[model.NormalizeKey(candidate.Address)]; used {
		return reject(model.StatusDuplicateWallet, "wallet already used in official manifest or proposal set")
	}

	if state.Count >= maxSupply {
		return reject(model.StatusSupplyFull, fmt.Sprintf("maxOfficialSupply=%d", maxSupply))
	}

	slug, title := NextSlugAndTitle(state.Count + 1)
	if _, used := state.UsedSlugs[model.NormalizeKey(slug)]; used {
		return reject(model.StatusManifestValidation, "generated slug collision: "+slug)
	}

	mintedAt := candidate.MintedAt
	if mintedAt == "" {
		mintedAt = model.ISOFromMs(candidate.GenesisTimestampMs)
	}
	if mintedAt == "" {
		mintedAt = now.UTC().Format(time.RFC3339)
	}

	entry := model.ManifestEntry{
		Slug:          slug,
		Title:         title,
		Seed:          candidate.Seed,
		InscriptionID: candidate.InscriptionID,
		ExplorerURL:   candidate.ExplorerURL,
		MinterAddress: candidate.Address,
		MintedAt:      mintedAt,
	}

	hypothetical := make(model.Manifest, 0, len(manifest)+len(state.Proposed)+1)
	hypothetical = append(hypothetical, manifest...)
	hypothetical = append(hypothetical, state.Proposed...)
	hypothetical = append(hypothetical, entry)
	if errs := hypothetical.Validate(cfg); len(errs) > 0 {
		return reject(model.StatusManifestValidation, errs[len(errs)-1])
	}

	return &entry, nil
}
