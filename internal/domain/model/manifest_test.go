package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry(n string) ManifestEntry {
	return ManifestEntry{
		Slug:          "classic-face-" + n,
		Title:         "Classic Face " + n,
		Seed:          "seed-" + n,
		InscriptionID: strings.Repeat("a", 63) + n[len(n)-1:] + "i0",
		ExplorerURL:   "https://ordinals.com/inscription/x",
		MinterAddress: "bc1q" + n,
		MintedAt:      "2026-01-0" + n[len(n)-1:] + "T00:00:00Z",
	}
}

func TestManifest_Validate_Empty(t *testing.T) {
	var m Manifest
	assert.Empty(t, m.Validate(CollectionConfig{MaxOfficialSupply: 100}))
}

func TestManifest_Validate_Valid(t *testing.T) {
	m := Manifest{validEntry("1"), validEntry("2")}
	errs := m.Validate(CollectionConfig{MaxOfficialSupply: 3})
	assert.Empty(t, errs)
}

func TestManifest_Validate_MissingFields(t *testing.T) {
	m := Manifest{{Slug: "only-slug"}}
	errs := m.Validate(CollectionConfig{})
	require.NotEmpty(t, errs)
	joined := strings.Join(errs, "\n")
	for _, field := range []string{"title", "seed", "inscriptionId", "explorerUrl", "minterAddress", "mintedAt"} {
		assert.Contains(t, joined, `"`+field+`"`)
	}
}

func TestManifest_Validate_SupplyCap(t *testing.T) {
	m := Manifest{validEntry("1"), validEntry("2")}
	errs := m.Validate(CollectionConfig{MaxOfficialSupply: 1})
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "exceed maxOfficialSupply (2/1)")
}

func TestManifest_Validate_DuplicateWalletCaseInsensitive(t *testing.T) {
	a := validEntry("1")
	b := validEntry("2")
	b.MinterAddress = strings.ToUpper(a.MinterAddress)
	errs := Manifest{a, b}.Validate(CollectionConfig{MaxOfficialSupply: 10})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "one-mint-per-wallet")
}

func TestManifest_Validate_DuplicateSlugAndInscription(t *testing.T) {
	a := validEntry("1")
	b := validEntry("2")
	b.Slug = a.Slug
	b.InscriptionID = a.InscriptionID
	errs := Manifest{a, b}.Validate(CollectionConfig{MaxOfficialSupply: 10})
	joined := strings.Join(errs, "\n")
	assert.Contains(t, joined, "duplicate slug")
	assert.Contains(t, joined, "duplicate inscriptionId")
}

func TestManifest_Validate_OrderingViolation(t *testing.T) {
	a := validEntry("1")
	b := validEntry("2")
	a.MintedAt = "2026-02-01T00:00:00Z"
	b.MintedAt = "2026-01-01T00:00:00Z"
	errs := Manifest{a, b}.Validate(CollectionConfig{MaxOfficialSupply: 10})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "first-come ordering")
}

func TestManifest_Validate_ExplorerURLMustBeHTTPS(t *testing.T) {
	e := validEntry("1")
	e.ExplorerURL = "http://ordinals.com/inscription/x"
	errs := Manifest{e}.Validate(CollectionConfig{MaxOfficialSupply: 10})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "https URL")
}

func TestManifest_Validate_ImagePath(t *testing.T) {
	cases := []struct {
		image string
		ok    bool
	}{
		{"visuals/classic_face_001.png", true},
		{"", true},
		{"../secrets.png", false},
		{"visuals/../escape.png", false},
		{"https://evil.example/x.png", false},
	}
	for _, tc := range cases {
		e := validEntry("1")
		e.Image = tc.image
		errs := Manifest{e}.Validate(CollectionConfig{MaxOfficialSupply: 10})
		if tc.ok {
			assert.Empty(t, errs, "image %q", tc.image)
		} else {
			assert.NotEmpty(t, errs, "image %q", tc.image)
		}
	}
}

func TestManifest_Validate_UnsafeSlugAndSeed(t *testing.T) {
	e := validEntry("1")
	e.Slug = "has space"
	e.Seed = "ctrl\x01seed"
	errs := Manifest{e}.Validate(CollectionConfig{MaxOfficialSupply: 10})
	joined := strings.Join(errs, "\n")
	assert.Contains(t, joined, "unsafe characters")
	assert.Contains(t, joined, "control characters")
}

func TestManifest_Validate_BadLogicID(t *testing.T) {
	errs := Manifest{}.Validate(CollectionConfig{LogicInscriptionID: "not-an-id", MaxOfficialSupply: 10})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "logicInscriptionId")
}

func TestCollectionConfig_EffectiveMaxSupply(t *testing.T) {
	assert.Equal(t, 100, CollectionConfig{}.EffectiveMaxSupply())
	assert.Equal(t, 100, CollectionConfig{MaxOfficialSupply: -5}.EffectiveMaxSupply())
	assert.Equal(t, 3, CollectionConfig{MaxOfficialSupply: 3}.EffectiveMaxSupply())
}

func TestIsLikelyInscriptionID(t *testing.T) {
	assert.True(t, IsLikelyInscriptionID(strings.Repeat("ab", 32)+"i0"))
	assert.True(t, IsLikelyInscriptionID(strings.ToUpper(strings.Repeat("ab", 32))+"i12"))
	assert.False(t, IsLikelyInscriptionID("abci0"))
	assert.False(t, IsLikelyInscriptionID(strings.Repeat("ab", 32)))
}

func TestManifest_UniqueWalletCount(t *testing.T) {
	a := validEntry("1")
	b := validEntry("2")
	c := validEntry("3")
	c.MinterAddress = strings.ToUpper(a.MinterAddress)
	assert.Equal(t, 2, Manifest{a, b, c}.UniqueWalletCount())
}
