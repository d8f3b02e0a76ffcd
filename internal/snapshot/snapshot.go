// Package snapshot renders the engine's raw session state as the
// serializable composition-state view the host consumes.
package snapshot

import (
	"encoding/json"

	"rimebridge/internal/rime"
)

// Candidate is one visible entry of the current candidate page.
type Candidate struct {
	Text    string `json:"text"`
	Comment string `json:"comment"`
}

// State is a point-in-time view of the composition: the text committed
// by the most recent operation, the preedit split around the selected
// span, and the current candidate page. It is a value type, rebuilt
// from scratch after every state-affecting operation and never mutated
// in place; the engine's internal state remains the source of truth.
type State struct {
	// Committed is the text finalized by the most recent operation.
	// nil means that operation committed nothing, not "no text ever
	// committed".
	Committed *string `json:"committed"`

	PreeditHead string `json:"preeditHead"`
	PreeditBody string `json:"preeditBody"`
	PreeditTail string `json:"preeditTail"`

	// CursorPos is meaningful only while composition is active.
	CursorPos int `json:"cursorPos"`

	// Candidates holds the current page only, in engine rank order.
	Candidates []Candidate `json:"candidates"`

	PageNo     int  `json:"pageNo"`
	IsLastPage bool `json:"isLastPage"`

	// HighlightedIndex indexes into Candidates, not the full list.
	HighlightedIndex int `json:"highlightedIndex"`

	// SelectLabels has one label per candidate slot; empty when the
	// engine reports no labels at all.
	SelectLabels []string `json:"selectLabels"`
}

// Active reports whether the state describes a live composition.
func (s State) Active() bool {
	return s.PreeditHead != "" || s.PreeditBody != "" || s.PreeditTail != ""
}

// Preedit reconstructs the raw preedit string.
func (s State) Preedit() string {
	return s.PreeditHead + s.PreeditBody + s.PreeditTail
}

// MarshalWire serializes the state as the consolidated record the host
// boundary exchanges.
func (s State) MarshalWire() ([]byte, error) {
	return json.Marshal(s)
}

// Idle returns the "no active composition" state. Slices are non-nil so
// the serialized record carries [] rather than null.
func Idle() State {
	return State{
		IsLastPage:   true,
		Candidates:   []Candidate{},
		SelectLabels: []string{},
	}
}

// Build converts a raw engine read into a State. It is pure and
// deterministic: the commit buffer was already consumed by the query
// that produced raw, so Build touches no engine state.
func Build(raw rime.RawState) State {
	st := Idle()
	if raw.HasCommit {
		committed := raw.CommitText
		st.Committed = &committed
	}

	if raw.Length == 0 || raw.Preedit == "" {
		return st
	}

	head, body, tail := splitPreedit(raw.Preedit, raw.SelStart, raw.SelEnd)
	st.PreeditHead = head
	st.PreeditBody = body
	st.PreeditTail = tail
	st.CursorPos = raw.CursorPos

	st.Candidates = make([]Candidate, len(raw.Menu.Candidates))
	for i, c := range raw.Menu.Candidates {
		st.Candidates[i] = Candidate{Text: c.Text, Comment: c.Comment}
	}
	st.PageNo = raw.Menu.PageNo
	st.IsLastPage = raw.Menu.IsLastPage
	st.HighlightedIndex = raw.Menu.HighlightedIndex
	st.SelectLabels = buildLabels(raw.Menu, len(st.Candidates))
	return st
}

// splitPreedit cuts the preedit at the selection byte offsets. Offsets
// outside the string are clamped; the three parts always reconstruct
// the input exactly.
func splitPreedit(preedit string, selStart, selEnd int) (head, body, tail string) {
	n := len(preedit)
	if selStart < 0 {
		selStart = 0
	}
	if selStart > n {
		selStart = n
	}
	if selEnd < selStart {
		selEnd = selStart
	}
	if selEnd > n {
		selEnd = n
	}
	return preedit[:selStart], preedit[selStart:selEnd], preedit[selEnd:]
}

// buildLabels resolves the select-label fallback chain: explicit
// per-candidate labels, then one label per byte of the flat select-key
// string, then none. A non-empty list is clamped and padded to exactly
// count entries so hosts can zip it with the candidate page.
func buildLabels(menu rime.Menu, count int) []string {
	if count == 0 {
		return []string{}
	}

	var labels []string
	switch {
	case menu.SelectLabels != nil:
		labels = make([]string, 0, count)
		for i := 0; i < count && i < len(menu.SelectLabels); i++ {
			labels = append(labels, menu.SelectLabels[i])
		}
	case menu.SelectKeys != "":
		labels = make([]string, 0, count)
		for i := 0; i < count && i < len(menu.SelectKeys); i++ {
			labels = append(labels, string(menu.SelectKeys[i]))
		}
	default:
		return []string{}
	}

	for len(labels) < count {
		labels = append(labels, "")
	}
	return labels
}
