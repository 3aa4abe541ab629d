package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
	"github.com/HattoriHanzo12/Random-Faces/internal/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logicID = strings.Repeat("ab", 32) + "i0"

func i64(v int64) *int64 { return &v }

type fakeLister struct {
	pages []*indexer.ListPage
	errAt map[int]error // page index -> error
	calls int
}

func (f *fakeLister) ListRecursiveHTML(_ context.Context, offset, limit int) (*indexer.ListPage, error) {
	pageIndex := offset / limit
	f.calls++
	if err, ok := f.errAt[pageIndex]; ok {
		return nil, err
	}
	if pageIndex >= len(f.pages) {
		return &indexer.ListPage{}, nil
	}
	return f.pages[pageIndex], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func row(id string, number int64, ageMinutes int, now time.Time) indexer.InscriptionRow {
	ts := now.Add(-time.Duration(ageMinutes) * time.Minute).UnixMilli()
	return indexer.InscriptionRow{
		ID:               id,
		Number:           i64(number),
		Address:          "wallet-" + id,
		GenesisTimestamp: &ts,
		Recursive:        true,
		RecursionRefs:    []string{logicID},
		MimeType:         "text/html",
	}
}

func baseParams(now time.Time) Params {
	return Params{
		Options: model.WatchOptions{
			LookbackHours: 72,
			MaxPages:      10,
			Confirmations: 0,
			PageSize:      2,
		},
		LogicInscriptionID:   logicID,
		ExistingInscriptions: map[string]struct{}{},
		Now:                  now,
	}
}

func TestScan_CollectsMatchingRows(t *testing.T) {
	now := time.Now()
	other := indexer.InscriptionRow{
		ID: "plain", Number: i64(8), Recursive: true,
		RecursionRefs: []string{"something-else"}, MimeType: "text/html",
	}
	nonRecursive := row("nonrec", 7, 30, now)
	nonRecursive.Recursive = false
	wrongMime := row("svg", 6, 30, now)
	wrongMime.MimeType = "image/svg+xml"

	lister := &fakeLister{pages: []*indexer.ListPage{
		{Results: []indexer.InscriptionRow{row("aa", 10, 30, now), other}},
		{Results: []indexer.InscriptionRow{nonRecursive, wrongMime}},
	}}

	out := New(lister, testLogger()).Scan(context.Background(), baseParams(now))

	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "aa", out.Candidates[0].InscriptionID)
	assert.Equal(t, 3, out.PagesFetched, "two full pages plus the empty terminator")
	assert.Equal(t, 4, out.RowsScanned)
	assert.Equal(t, 1, out.LogicMatched)
	assert.Empty(t, out.Errors)
}

func TestScan_CaseInsensitiveLogicMatch(t *testing.T) {
	now := time.Now()
	r := row("aa", 10, 30, now)
	r.RecursionRefs = []string{strings.ToUpper(logicID)}
	lister := &fakeLister{pages: []*indexer.ListPage{{Results: []indexer.InscriptionRow{r}}}}

	out := New(lister, testLogger()).Scan(context.Background(), baseParams(now))
	assert.Len(t, out.Candidates, 1)
}

func TestScan_DeduplicatesAcrossPages(t *testing.T) {
	now := time.Now()
	lister := &fakeLister{pages: []*indexer.ListPage{
		{Results: []indexer.InscriptionRow{row("aa", 10, 30, now), row("bb", 9, 31, now)}},
		{Results: []indexer.InscriptionRow{row("AA", 10, 30, now), row("cc", 8, 32, now)}},
	}}

	out := New(lister, testLogger()).Scan(context.Background(), baseParams(now))
	require.Len(t, out.Candidates, 3)
	assert.Equal(t, 4, out.LogicMatched, "dup rows still count as logic matches")
	assert.Equal(t, 0, out.IgnoredExistingCount)
}

func TestScan_IgnoresExistingManifestEntries(t *testing.T) {
	now := time.Now()
	lister := &fakeLister{pages: []*indexer.ListPage{
		{Results: []indexer.InscriptionRow{row("aa", 10, 30, now), row("bb", 9, 31, now)}},
	}}

	p := baseParams(now)
	p.ExistingInscriptions["aa"] = struct{}{}
	out := New(lister, testLogger()).Scan(context.Background(), p)

	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "bb", out.Candidates[0].InscriptionID)
	assert.Equal(t, 1, out.IgnoredExistingCount)
}

func TestScan_StopsWhenPagePredatesLookback(t *testing.T) {
	now := time.Now()
	lister := &fakeLister{pages: []*indexer.ListPage{
		// Mixed page: the fresh row is still collected, the stale one trips
		// the cutoff for the next page.
		{Results: []indexer.InscriptionRow{row("aa", 10, 30, now), row("bb", 9, 100*60, now)}},
		{Results: []indexer.InscriptionRow{row("cc", 8, 101*60, now)}},
	}}

	out := New(lister, testLogger()).Scan(context.Background(), baseParams(now))

	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "aa", out.Candidates[0].InscriptionID)
	assert.Equal(t, 1, out.PagesFetched, "second page never fetched")
}

func TestScan_RespectsMaxPages(t *testing.T) {
	now := time.Now()
	pages := make([]*indexer.ListPage, 5)
	for i := range pages {
		pages[i] = &indexer.ListPage{Results: []indexer.InscriptionRow{
			row("id-"+strings.Repeat("x", i+1), int64(100-i), 30, now),
		}}
	}
	lister := &fakeLister{pages: pages}

	p := baseParams(now)
	p.Options.MaxPages = 2
	p.Options.PageSize = 1
	out := New(lister, testLogger()).Scan(context.Background(), p)

	assert.Equal(t, 2, out.PagesFetched)
	assert.Equal(t, 2, lister.calls)
}

func TestScan_PageErrorAbortsButKeepsResults(t *testing.T) {
	now := time.Now()
	lister := &fakeLister{
		pages: []*indexer.ListPage{
			{Results: []indexer.InscriptionRow{row("aa", 10, 30, now), row("bb", 9, 31, now)}},
		},
		errAt: map[int]error{1: errors.New("HTTP 503")},
	}

	out := New(lister, testLogger()).Scan(context.Background(), baseParams(now))

	assert.Len(t, out.Candidates, 2)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "hiro list query failed at offset 2")
	assert.Equal(t, 1, out.PagesFetched)
}

func TestScan_UnconfirmedCandidatesAreSkipped(t *testing.T) {
	now := time.Now()
	lister := &fakeLister{pages: []*indexer.ListPage{
		{Results: []indexer.InscriptionRow{row("fresh", 10, 5, now), row("settled", 9, 30, now)}},
	}}

	p := baseParams(now)
	p.Options.Confirmations = 1 // age fallback needs >= 10 minutes
	out := New(lister, testLogger()).Scan(context.Background(), p)

	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "settled", out.Candidates[0].InscriptionID)
	assert.Equal(t, model.ConfirmAgeFallback, out.Candidates[0].Confirmation.Method)
}

func TestScan_OrderingViolationDisablesEarlyCutoff(t *testing.T) {
	now := time.Now()
	lister := &fakeLister{pages: []*indexer.ListPage{
		// Numbers go up mid-page: the ordering assumption is broken, so the
		// stale timestamp in this page must not stop pagination.
		{Results: []indexer.InscriptionRow{row("aa", 5, 100*60, now), row("bb", 10, 30, now)}},
		{Results: []indexer.InscriptionRow{row("cc", 4, 30, now)}},
	}}

	out := New(lister, testLogger()).Scan(context.Background(), baseParams(now))

	assert.Len(t, out.Candidates, 2, "bb and cc, aa is out of window")
	assert.Equal(t, 3, out.PagesFetched, "cutoff disabled, paged to the empty page")
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "ordering violated")
}
