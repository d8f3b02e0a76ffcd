// Package rimetest provides a deterministic scripted engine implementing
// the rime.Engine contract. It carries a tiny built-in pinyin table so
// bridge and codec behavior can be exercised without the native engine.
// It is a test double, not a conversion engine.
package rimetest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rimebridge/internal/rime"
)

// PageSize is the fixed candidate page size of the scripted engine.
const PageSize = 5

const version = "1.16.1-test"

// userDictName is the file the engine appends training entries to.
const userDictName = "luna_pinyin.userdb.txt"

// syllables the scripted engine can segment, longest-match first.
var syllables = []string{"hao", "shi", "men", "ni", "li", "ma"}

// homophones per syllable, Traditional script, engine rank order.
var homophones = map[string][]string{
	"ni":  {"你", "呢", "尼", "妮", "泥"},
	"hao": {"好", "號", "毫", "豪", "郝"},
	"shi": {"是", "時", "事", "十", "市", "師", "詩", "石", "食", "史", "使", "世", "士", "式"},
	"li":  {"裡", "李", "力", "立", "理", "禮"},
	"ma":  {"嗎", "馬", "媽", "麻", "碼"},
	"men": {"們", "門", "悶"},
}

// phrases maps full key sequences to their top phrase candidate.
var phrases = map[string]string{
	"nihao": "你好",
	"nimen": "你們",
}

// toSimplified converts the Traditional table forms when the
// simplification option is on.
var toSimplified = map[rune]rune{
	'號': '号', '時': '时', '師': '师', '詩': '诗', '裡': '里',
	'禮': '礼', '嗎': '吗', '馬': '马', '媽': '妈', '碼': '码',
	'們': '们', '門': '门', '悶': '闷',
}

type candidate struct {
	text    string
	comment string
	consume int // bytes of pending input this candidate converts
}

// Engine is the scripted rime.Engine implementation.
type Engine struct {
	initialized bool
	shutdown    bool
	traits      rime.Traits

	// FailInit forces Init to fail, for bridge error-path tests.
	FailInit bool

	input     string // pending (unconverted) key sequence
	typed     string // full key sequence of the current composition
	converted string // hanzi accepted for already-converted segments
	pending   string // commit buffer, consumed by QueryState
	hasCommit bool
	pageNo    int
	options   map[string]bool
}

var _ rime.Engine = (*Engine)(nil)

// New returns an uninitialized scripted engine.
func New() *Engine {
	return &Engine{options: map[string]bool{}}
}

// Init checks that the shared data directory was deployed, then performs
// the first-run deployment of the user data directory.
func (e *Engine) Init(t rime.Traits) error {
	if e.FailInit {
		return errors.New("session creation failed")
	}
	if e.initialized {
		return errors.New("already initialized")
	}
	if t.SharedDataDir == "" || t.UserDataDir == "" {
		return errors.New("data directories not configured")
	}
	if _, err := os.Stat(filepath.Join(t.SharedDataDir, "default.yaml")); err != nil {
		return fmt.Errorf("shared data not deployed: %w", err)
	}
	if err := os.MkdirAll(t.UserDataDir, 0700); err != nil {
		return err
	}
	// First-run deployment: record the installation so a later Init can
	// tell a restored user directory from a fresh one.
	marker := filepath.Join(t.UserDataDir, "installation.yaml")
	if _, err := os.Stat(marker); os.IsNotExist(err) {
		body := "distribution_code_name: " + t.DistributionCodeName + "\n" +
			"distribution_version: " + t.DistributionVersion + "\n"
		if err := os.WriteFile(marker, []byte(body), 0600); err != nil {
			return err
		}
	}
	e.traits = t
	e.initialized = true
	e.shutdown = false
	return nil
}

func (e *Engine) live() error {
	if !e.initialized || e.shutdown {
		return errors.New("no active session")
	}
	return nil
}

// ProcessKeys appends lowercase letters to the pending composition.
// Other symbols are ignored, matching the engine contract's "unknown
// input is dropped" behavior for the scripted double.
func (e *Engine) ProcessKeys(keys string) error {
	if err := e.live(); err != nil {
		return err
	}
	for _, r := range keys {
		if r >= 'a' && r <= 'z' {
			e.input += string(r)
			e.typed += string(r)
		}
	}
	e.pageNo = 0
	return nil
}

// SelectCandidate converts using the candidate at index on the current
// page. Out of range indexes are ignored.
func (e *Engine) SelectCandidate(index int) error {
	if err := e.live(); err != nil {
		return err
	}
	page := e.currentPage()
	if index < 0 || index >= len(page) {
		return nil
	}
	c := page[index]
	e.converted += c.text
	e.input = e.input[c.consume:]
	e.pageNo = 0
	if e.input == "" {
		e.pending = e.converted
		e.hasCommit = true
		e.train(e.typed, e.converted)
		e.converted = ""
		e.typed = ""
	}
	return nil
}

// ChangePage moves the candidate window; boundary moves are no-ops.
func (e *Engine) ChangePage(backward bool) error {
	if err := e.live(); err != nil {
		return err
	}
	all := e.candidates()
	if len(all) == 0 {
		return nil
	}
	last := (len(all) - 1) / PageSize
	if backward {
		if e.pageNo > 0 {
			e.pageNo--
		}
	} else if e.pageNo < last {
		e.pageNo++
	}
	return nil
}

// ClearComposition discards the composition without committing.
func (e *Engine) ClearComposition() error {
	if err := e.live(); err != nil {
		return err
	}
	e.input = ""
	e.typed = ""
	e.converted = ""
	e.pageNo = 0
	return nil
}

// SetOption toggles a boolean option. All names are accepted; only
// "simplification" affects output.
func (e *Engine) SetOption(name string, value bool) error {
	if err := e.live(); err != nil {
		return err
	}
	e.options[name] = value
	return nil
}

// QueryState reads the session state, consuming the commit buffer.
func (e *Engine) QueryState() (rime.RawState, error) {
	if err := e.live(); err != nil {
		return rime.RawState{}, err
	}
	st := rime.RawState{
		HasCommit:  e.hasCommit,
		CommitText: e.pending,
	}
	e.hasCommit = false
	e.pending = ""

	if e.input == "" {
		st.Menu.IsLastPage = true
		return st, nil
	}

	seg, rest := e.segment()
	preedit := e.converted + seg
	if rest != "" {
		preedit += " " + rest
	}
	st.Preedit = preedit
	st.Length = len(preedit)
	st.SelStart = len(e.converted)
	st.SelEnd = len(e.converted) + len(seg)
	st.CursorPos = len(preedit)

	all := e.candidates()
	start := e.pageNo * PageSize
	end := start + PageSize
	if end > len(all) {
		end = len(all)
	}
	for _, c := range all[start:end] {
		st.Menu.Candidates = append(st.Menu.Candidates, rime.Candidate{
			Text:    c.text,
			Comment: c.comment,
		})
	}
	st.Menu.PageNo = e.pageNo
	st.Menu.IsLastPage = end == len(all)
	st.Menu.HighlightedIndex = 0
	st.Menu.SelectKeys = "1234567890"[:len(st.Menu.Candidates)]
	return st, nil
}

// Version reports the scripted engine version; "unknown" outside the
// initialized window, matching the native API.
func (e *Engine) Version() string {
	if !e.initialized || e.shutdown {
		return "unknown"
	}
	return version
}

// Shutdown destroys the session. Safe to call repeatedly.
func (e *Engine) Shutdown() {
	e.shutdown = true
	e.input = ""
	e.typed = ""
	e.converted = ""
	e.pending = ""
	e.hasCommit = false
}

// segment splits the pending input into the current segment and the
// remainder, longest syllable first.
func (e *Engine) segment() (seg, rest string) {
	for _, s := range syllables {
		if strings.HasPrefix(e.input, s) {
			return s, e.input[len(s):]
		}
	}
	return e.input, ""
}

// currentPage returns the candidates visible on the current page.
func (e *Engine) currentPage() []candidate {
	all := e.candidates()
	start := e.pageNo * PageSize
	if start >= len(all) {
		return nil
	}
	end := start + PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// candidates builds the full ranked candidate list for the pending
// input: a whole-input phrase match first, then homophones of the
// current segment.
func (e *Engine) candidates() []candidate {
	var out []candidate
	if p, ok := phrases[e.input]; ok {
		out = append(out, candidate{text: e.script(p), consume: len(e.input)})
	}
	seg, _ := e.segment()
	for _, h := range homophones[seg] {
		out = append(out, candidate{text: e.script(h), comment: seg, consume: len(seg)})
	}
	return out
}

// script applies the simplification option to the Traditional table form.
func (e *Engine) script(s string) string {
	if !e.options["simplification"] {
		return s
	}
	return strings.Map(func(r rune) rune {
		if simp, ok := toSimplified[r]; ok {
			return simp
		}
		return r
	}, s)
}

// train appends a user-dictionary entry, the mutation the synchronizer
// must pick up after a candidate selection.
func (e *Engine) train(keys, text string) {
	path := filepath.Join(e.traits.UserDataDir, userDictName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s\t%s\n", keys, text)
}
