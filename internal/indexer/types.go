package indexer

import (
	"strings"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
)

// InscriptionRow is one row of the Hiro /ordinals/v1/inscriptions listing.
// Fields the scanner does not use are omitted.
type InscriptionRow struct {
	ID                 string   `json:"id"`
	Number             *int64   `json:"number"`
	Address            string   `json:"address"`
	GenesisBlockHeight *int64   `json:"genesis_block_height"`
	GenesisTimestamp   *int64   `json:"genesis_timestamp"`
	Recursive          bool     `json:"recursive"`
	RecursionRefs      []string `json:"recursion_refs"`
	MimeType           string   `json:"mime_type"`
	ContentType        string   `json:"content_type"`
}

// ListPage is one page of listing results.
type ListPage struct {
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	Total   int              `json:"total"`
	Results []InscriptionRow `json:"results"`
}

// Normalize converts an indexer row into a scan-stage candidate, trimming
// string fields and dropping empty recursion refs the way the indexer
// sometimes emits them.
func (r InscriptionRow) Normalize() model.Candidate {
	id := strings.TrimSpace(r.ID)

	refs := make([]string, 0, len(r.RecursionRefs))
	for _, ref := range r.RecursionRefs {
		if trimmed := strings.TrimSpace(ref); trimmed != "" {
			refs = append(refs, trimmed)
		}
	}

	mime := strings.TrimSpace(r.MimeType)
	if mime == "" {
		mime = strings.TrimSpace(r.ContentType)
	}

	explorerURL := ""
	if id != "" {
		explorerURL = "https://ordinals.com/inscription/" + id
	}

	return model.Candidate{
		InscriptionID:      id,
		InscriptionNumber:  r.Number,
		Recursive:          r.Recursive,
		RecursionRefs:      refs,
		Address:            strings.TrimSpace(r.Address),
		GenesisTimestampMs: r.GenesisTimestamp,
		MintedAt:           model.ISOFromMs(r.GenesisTimestamp),
		GenesisBlockHeight: r.GenesisBlockHeight,
		MimeType:           mime,
		ExplorerURL:        explorerURL,
	}
}
