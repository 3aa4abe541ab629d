package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ManifestEntry is one accepted mint in the official collection. Entries are
// append-only; once accepted they are never mutated or removed.
type ManifestEntry struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Seed          string `json:"seed"`
	InscriptionID string `json:"inscriptionId"`
	ExplorerURL   string `json:"explorerUrl"`
	MinterAddress string `json:"minterAddress"`
	MintedAt      string `json:"mintedAt"`
	Image         string `json:"image,omitempty"`
}

// Manifest is the ordered, invariant-constrained record of official mints.
type Manifest []ManifestEntry

// CollectionConfig is the read-only collection policy input.
type CollectionConfig struct {
	LogicInscriptionID string `json:"logicInscriptionId"`
	MaxOfficialSupply  int    `json:"maxOfficialSupply"`
}

// EffectiveMaxSupply clamps the configured supply cap to a positive value,
// defaulting to 100.
func (c CollectionConfig) EffectiveMaxSupply() int {
	if c.MaxOfficialSupply >= 1 {
		return c.MaxOfficialSupply
	}
	return 100
}

var inscriptionIDPattern = regexp.MustCompile(`^[a-f0-9]{64}i\d+$`)

// IsLikelyInscriptionID reports whether value has the shape of an ordinals
// inscription identifier (64 hex chars + "i" + output index).
func IsLikelyInscriptionID(value string) bool {
	return inscriptionIDPattern.MatchString(strings.ToLower(strings.TrimSpace(value)))
}

var requiredEntryFields = []string{
	"slug", "title", "seed", "inscriptionId", "explorerUrl", "minterAddress", "mintedAt",
}

// Validate checks every manifest invariant: required fields, field shapes,
// unique slug / inscriptionId / minterAddress, ascending mintedAt, and the
// supply cap. It returns all violations rather than stopping at the first.
func (m Manifest) Validate(cfg CollectionConfig) []string {
	var errs []string

	maxSupply := cfg.EffectiveMaxSupply()

	logicID := strings.TrimSpace(cfg.LogicInscriptionID)
	if logicID != "" && !IsLikelyInscriptionID(logicID) {
		errs = append(errs, `config field "logicInscriptionId" is not a valid inscription ID`)
	}

	if len(m) > maxSupply {
		errs = append(errs, fmt.Sprintf("minted entries exceed maxOfficialSupply (%d/%d)", len(m), maxSupply))
	}

	seenSlugs := make(map[string]struct{}, len(m))
	seenInscriptions := make(map[string]struct{}, len(m))
	seenWallets := make(map[string]struct{}, len(m))
	var previousMintedAt *time.Time

	for i, item := range m {
		prefix := fmt.Sprintf("entry %d", i+1)

		values := map[string]string{
			"slug":          item.Slug,
			"title":         item.Title,
			"seed":          item.Seed,
			"inscriptionId": item.InscriptionID,
			"explorerUrl":   item.ExplorerURL,
			"minterAddress": item.MinterAddress,
			"mintedAt":      item.MintedAt,
		}
		for _, field := range requiredEntryFields {
			if strings.TrimSpace(values[field]) == "" {
				errs = append(errs, fmt.Sprintf("%s missing required field %q", prefix, field))
			}
		}

		if strings.TrimSpace(item.ExplorerURL) != "" && !isSafeHTTPSURL(item.ExplorerURL) {
			errs = append(errs, fmt.Sprintf("%s field %q must be a valid https URL", prefix, "explorerUrl"))
		}

		if strings.TrimSpace(item.Image) != "" && !isSafeVisualPath(item.Image) {
			errs = append(errs, fmt.Sprintf("%s field %q must be a safe repo-relative path under visuals/", prefix, "image"))
		}

		if strings.TrimSpace(item.MintedAt) != "" {
			ts, err := parseMintedAt(item.MintedAt)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s field %q must be a valid date string", prefix, "mintedAt"))
			} else {
				if previousMintedAt != nil && ts.Before(*previousMintedAt) {
					errs = append(errs, fmt.Sprintf("%s breaks first-come ordering (mintedAt must be ascending across manifest entries)", prefix))
				}
				previousMintedAt = &ts
			}
		}

		if strings.TrimSpace(item.Slug) != "" {
			if len(item.Slug) > 120 || strings.ContainsAny(item.Slug, `/\`) || containsWhitespace(item.Slug) {
				errs = append(errs, fmt.Sprintf("%s field %q contains unsafe characters", prefix, "slug"))
			}
			key := NormalizeKey(item.Slug)
			if _, dup := seenSlugs[key]; dup {
				errs = append(errs, fmt.Sprintf("%s has duplicate slug %q", prefix, item.Slug))
			}
			seenSlugs[key] = struct{}{}
		}

		if strings.TrimSpace(item.Seed) != "" {
			if len(item.Seed) > 64 {
				errs = append(errs, fmt.Sprintf("%s field %q exceeds 64 characters", prefix, "seed"))
			}
			if containsControlChars(item.Seed) {
				errs = append(errs, fmt.Sprintf("%s field %q contains control characters", prefix, "seed"))
			}
		}

		if strings.TrimSpace(item.InscriptionID) != "" {
			if !IsLikelyInscriptionID(item.InscriptionID) {
				errs = append(errs, fmt.Sprintf("%s field %q is not a valid inscription ID", prefix, "inscriptionId"))
			}
			key := NormalizeKey(item.InscriptionID)
			if _, dup := seenInscriptions[key]; dup {
				errs = append(errs, fmt.Sprintf("%s has duplicate inscriptionId %q", prefix, item.InscriptionID))
			}
			seenInscriptions[key] = struct{}{}
		}

		if strings.TrimSpace(item.MinterAddress) != "" {
			if containsWhitespace(item.MinterAddress) || len(item.MinterAddress) > 128 {
				errs = append(errs, fmt.Sprintf("%s field %q contains unsafe formatting", prefix, "minterAddress"))
			}
			key := NormalizeKey(item.MinterAddress)
			if _, dup := seenWallets[key]; dup {
				errs = append(errs, fmt.Sprintf("%s violates one-mint-per-wallet policy (duplicate minterAddress %q)", prefix, item.MinterAddress))
			}
			seenWallets[key] = struct{}{}
		}
	}

	return errs
}

// UniqueWalletCount returns the number of distinct minter wallets.
func (m Manifest) UniqueWalletCount() int {
	wallets := make(map[string]struct{}, len(m))
	for _, item := range m {
		if strings.TrimSpace(item.MinterAddress) != "" {
			wallets[NormalizeKey(item.MinterAddress)] = struct{}{}
		}
	}
	return len(wallets)
}

func parseMintedAt(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

func isSafeHTTPSURL(value string) bool {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return parsed.Scheme == "https" && parsed.User == nil && parsed.Host != ""
}

func isSafeVisualPath(value string) bool {
	normalized := strings.ReplaceAll(strings.TrimSpace(value), `\`, "/")
	if normalized == "" || !strings.HasPrefix(normalized, "visuals/") {
		return false
	}
	if strings.Contains(normalized, "..") {
		return false
	}
	return true
}

func containsWhitespace(value string) bool {
	return strings.IndexFunc(value, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
	}) >= 0
}

func containsControlChars(value string) bool {
	return strings.IndexFunc(value, func(r rune) bool {
		return r < 0x20 || r == 0x7f
	}) >= 0
}
