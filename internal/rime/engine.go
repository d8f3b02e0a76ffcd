package rime

// Traits configures engine initialization, mirroring the native API's
// traits record.
type Traits struct {
	// SharedDataDir holds the deployed schemas and dictionary tables.
	SharedDataDir string

	// UserDataDir holds the user dictionary and option state. This is
	// the synchronizer's mount point.
	UserDataDir string

	AppName              string
	DistributionName     string
	DistributionCodeName string
	DistributionVersion  string
}

// Candidate is one entry of the current candidate page.
type Candidate struct {
	Text    string
	Comment string
}

// Menu is the candidate menu portion of the raw state. Candidates are
// page-scoped and already ordered by the engine's ranking.
type Menu struct {
	Candidates       []Candidate
	PageNo           int
	IsLastPage       bool
	HighlightedIndex int

	// SelectKeys is a flat string of per-slot select keys ("12345...").
	// Empty when the engine does not report them.
	SelectKeys string

	// SelectLabels are explicit per-candidate labels. When non-nil they
	// take precedence over SelectKeys.
	SelectLabels []string
}

// RawState is a point-in-time read of the engine's session state:
// commit buffer, composition buffer and candidate menu.
type RawState struct {
	// HasCommit reports whether the preceding operation committed text.
	// The commit buffer is consumed by the query that observed it.
	HasCommit  bool
	CommitText string

	// Length is the composition buffer length in bytes; zero means no
	// active composition.
	Length    int
	Preedit   string
	SelStart  int // byte offset of the selected span's start
	SelEnd    int // byte offset of the selected span's end
	CursorPos int

	Menu Menu
}

// Engine is the capability interface of the native conversion engine.
// Init must be called exactly once before any other method; Shutdown
// ends the single session and releases the engine.
type Engine interface {
	// Init configures data directories, performs first-run deployment
	// synchronously and creates the single session. Failure is fatal:
	// the engine must not be reused afterwards.
	Init(t Traits) error

	// ProcessKeys feeds a key-symbol sequence into the composition.
	// A plain ASCII letter sequence such as "nihao" is interpreted
	// syllable by syllable. Side effect only; observe via QueryState.
	ProcessKeys(keys string) error

	// SelectCandidate commits or advances using the candidate at index
	// on the current page. An out-of-range index is ignored.
	SelectCandidate(index int) error

	// ChangePage moves to the previous (backward) or next page. At the
	// first or last page boundary it is a no-op.
	ChangePage(backward bool) error

	// ClearComposition discards the in-progress composition without
	// committing.
	ClearComposition() error

	// SetOption toggles a named boolean engine option. Unknown names
	// are ignored.
	SetOption(name string, value bool) error

	// QueryState reads the commit buffer, composition buffer and
	// candidate menu. It consumes the commit buffer (see package doc).
	QueryState() (RawState, error)

	// Version reports the engine version, or "unknown" before Init and
	// after Shutdown.
	Version() string

	// Shutdown destroys the session and finalizes the engine.
	Shutdown()
}
