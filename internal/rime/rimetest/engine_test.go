package rimetest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rimebridge/internal/rime"
)

func deployedTraits(t *testing.T) rime.Traits {
	t.Helper()
	root := t.TempDir()
	shared := filepath.Join(root, "rime")
	if err := os.MkdirAll(shared, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(shared, "default.yaml"), []byte("schema_list: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return rime.Traits{
		SharedDataDir:        shared,
		UserDataDir:          filepath.Join(root, "rime_user"),
		DistributionCodeName: "rimebridge",
		DistributionVersion:  "1.16.1",
	}
}

func initialized(t *testing.T) *Engine {
	t.Helper()
	e := New()
	if err := e.Init(deployedTraits(t)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return e
}

func TestInitRequiresDeployedData(t *testing.T) {
	e := New()
	traits := deployedTraits(t)
	traits.SharedDataDir = t.TempDir() // no default.yaml here
	if err := e.Init(traits); err == nil {
		t.Fatal("Init succeeded without deployed shared data")
	}
}

func TestInitWritesFirstRunMarker(t *testing.T) {
	e := New()
	traits := deployedTraits(t)
	if err := e.Init(traits); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(traits.UserDataDir, "installation.yaml"))
	if err != nil {
		t.Fatalf("first-run marker missing: %v", err)
	}
	if !strings.Contains(string(data), "rimebridge") {
		t.Errorf("marker content = %q", data)
	}
}

func TestPhraseConversion(t *testing.T) {
	e := initialized(t)

	if err := e.ProcessKeys("nihao"); err != nil {
		t.Fatal(err)
	}
	st, err := e.QueryState()
	if err != nil {
		t.Fatal(err)
	}
	if st.Preedit != "ni hao" {
		t.Errorf("Preedit = %q, want %q", st.Preedit, "ni hao")
	}
	if len(st.Menu.Candidates) == 0 || st.Menu.Candidates[0].Text != "你好" {
		t.Fatalf("candidates = %+v, want 你好 first", st.Menu.Candidates)
	}

	if err := e.SelectCandidate(0); err != nil {
		t.Fatal(err)
	}
	st, err = e.QueryState()
	if err != nil {
		t.Fatal(err)
	}
	if !st.HasCommit || st.CommitText != "你好" {
		t.Errorf("commit = (%v, %q), want (true, 你好)", st.HasCommit, st.CommitText)
	}
	if st.Length != 0 {
		t.Errorf("composition not cleared after full conversion: %+v", st)
	}

	// The commit buffer is consumed by the read.
	st, err = e.QueryState()
	if err != nil {
		t.Fatal(err)
	}
	if st.HasCommit {
		t.Error("second query observed a stale commit")
	}
}

func TestSegmentBySegmentConversion(t *testing.T) {
	e := initialized(t)

	if err := e.ProcessKeys("nihao"); err != nil {
		t.Fatal(err)
	}
	// Candidate 1 is the first "ni" homophone; selecting it converts
	// only the first segment.
	if err := e.SelectCandidate(1); err != nil {
		t.Fatal(err)
	}
	st, err := e.QueryState()
	if err != nil {
		t.Fatal(err)
	}
	if st.HasCommit {
		t.Error("partial conversion must not commit")
	}
	if st.Preedit != "你hao" {
		t.Errorf("Preedit = %q, want %q", st.Preedit, "你hao")
	}
	if st.SelStart != len("你") || st.SelEnd != len("你hao") {
		t.Errorf("selection = [%d,%d)", st.SelStart, st.SelEnd)
	}

	if err := e.SelectCandidate(0); err != nil {
		t.Fatal(err)
	}
	st, err = e.QueryState()
	if err != nil {
		t.Fatal(err)
	}
	if !st.HasCommit || st.CommitText != "你好" {
		t.Errorf("commit = (%v, %q), want (true, 你好)", st.HasCommit, st.CommitText)
	}
}

func TestPaging(t *testing.T) {
	e := initialized(t)

	if err := e.ProcessKeys("shi"); err != nil {
		t.Fatal(err)
	}
	st, _ := e.QueryState()
	if st.Menu.PageNo != 0 || st.Menu.IsLastPage {
		t.Fatalf("page = %d last=%v, want first of several", st.Menu.PageNo, st.Menu.IsLastPage)
	}
	if len(st.Menu.Candidates) != PageSize {
		t.Errorf("page size = %d, want %d", len(st.Menu.Candidates), PageSize)
	}

	// Backward at the first page is a no-op.
	if err := e.ChangePage(true); err != nil {
		t.Fatal(err)
	}
	if st, _ = e.QueryState(); st.Menu.PageNo != 0 {
		t.Errorf("backward at first page moved to %d", st.Menu.PageNo)
	}

	if err := e.ChangePage(false); err != nil {
		t.Fatal(err)
	}
	if st, _ = e.QueryState(); st.Menu.PageNo != 1 {
		t.Errorf("PageNo = %d, want 1", st.Menu.PageNo)
	}

	// Forward to the end; further forward moves are no-ops.
	for i := 0; i < 10; i++ {
		e.ChangePage(false)
	}
	st, _ = e.QueryState()
	if !st.Menu.IsLastPage {
		t.Error("expected last page")
	}
	lastPage := st.Menu.PageNo
	e.ChangePage(false)
	if st, _ = e.QueryState(); st.Menu.PageNo != lastPage {
		t.Errorf("forward at last page moved to %d", st.Menu.PageNo)
	}
}

func TestOutOfRangeSelectionIgnored(t *testing.T) {
	e := initialized(t)
	e.ProcessKeys("shi")
	before, _ := e.QueryState()

	if err := e.SelectCandidate(99); err != nil {
		t.Fatal(err)
	}
	after, _ := e.QueryState()
	if after.Preedit != before.Preedit || after.HasCommit {
		t.Errorf("out-of-range selection changed state: %+v", after)
	}
}

func TestSimplificationOption(t *testing.T) {
	e := initialized(t)

	e.ProcessKeys("li")
	st, _ := e.QueryState()
	if st.Menu.Candidates[0].Text != "裡" {
		t.Errorf("default candidate = %q, want Traditional 裡", st.Menu.Candidates[0].Text)
	}

	e.ClearComposition()
	e.SetOption("simplification", true)
	e.ProcessKeys("li")
	st, _ = e.QueryState()
	if st.Menu.Candidates[0].Text != "里" {
		t.Errorf("simplified candidate = %q, want 里", st.Menu.Candidates[0].Text)
	}
}

func TestUnknownOptionIgnored(t *testing.T) {
	e := initialized(t)
	if err := e.SetOption("no_such_option", true); err != nil {
		t.Errorf("unknown option returned error: %v", err)
	}
}

func TestTrainingAppendsUserDict(t *testing.T) {
	e := New()
	traits := deployedTraits(t)
	if err := e.Init(traits); err != nil {
		t.Fatal(err)
	}

	e.ProcessKeys("nihao")
	e.SelectCandidate(0)

	data, err := os.ReadFile(filepath.Join(traits.UserDataDir, userDictName))
	if err != nil {
		t.Fatalf("user dict not written: %v", err)
	}
	if !strings.Contains(string(data), "nihao\t你好") {
		t.Errorf("user dict entry = %q", data)
	}
}

func TestVersionLifecycle(t *testing.T) {
	e := New()
	if got := e.Version(); got != "unknown" {
		t.Errorf("pre-init Version = %q, want unknown", got)
	}
	if err := e.Init(deployedTraits(t)); err != nil {
		t.Fatal(err)
	}
	if got := e.Version(); got == "unknown" || got == "" {
		t.Errorf("post-init Version = %q", got)
	}
	e.Shutdown()
	if got := e.Version(); got != "unknown" {
		t.Errorf("post-shutdown Version = %q, want unknown", got)
	}
	if err := e.ProcessKeys("ni"); err == nil {
		t.Error("ProcessKeys after Shutdown succeeded")
	}
}
