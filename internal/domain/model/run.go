package model

// WatchOptions are the normalized knobs for one scan run.
type WatchOptions struct {
	LookbackHours int    `json:"lookbackHours"`
	MaxPages      int    `json:"maxPages"`
	Confirmations int    `json:"confirmations"`
	PageSize      int    `json:"pageSize"`
	OutDir        string `json:"outDir"`
}

// ScanStats counts scan-stage work for one run.
type ScanStats struct {
	PagesFetched         int `json:"pagesFetched"`
	RowsScanned          int `json:"rowsScanned"`
	LogicMatched         int `json:"logicMatched"`
	DetectedCount        int `json:"detectedCount"`
	EligibleCount        int `json:"eligibleCount"`
	RejectedCount        int `json:"rejectedCount"`
	IgnoredExistingCount int `json:"ignoredExistingCount"`
}

// RunResult is the immutable structured handoff of one scan run. Delivery
// collaborators (issue/PR posting, email) consume it as-is.
type RunResult struct {
	RunID              string              `json:"runId"`
	ScannedAt          string              `json:"scannedAt"`
	LogicInscriptionID string              `json:"logicInscriptionId"`
	Options            WatchOptions        `json:"options"`
	MaxSupply          int                 `json:"maxSupply"`
	TipHeight          *int64              `json:"tipHeight"`
	ProposalChanged    bool                `json:"proposalChanged"`
	PRTitle            string              `json:"prTitle"`
	Stats              ScanStats           `json:"stats"`
	Eligible           []EligibleCandidate `json:"eligible"`
	Rejected           []RejectedCandidate `json:"rejected"`
	Errors             []string            `json:"errors"`
}
