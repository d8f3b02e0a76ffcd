package datastore

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "store.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put("a/b.txt", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("a/b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("Get = %q, want hello", got)
	}
}

func TestPutReplaces(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put("f", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("f", []byte("two")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("f")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Errorf("Get = %q, want two", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestDigest(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Digest("absent"); err != nil || ok {
		t.Errorf("Digest(absent) = ok=%v err=%v, want false,nil", ok, err)
	}

	if err := s.Put("f", []byte("content")); err != nil {
		t.Fatal(err)
	}
	d1, ok, err := s.Digest("f")
	if err != nil || !ok {
		t.Fatalf("Digest = ok=%v err=%v", ok, err)
	}

	if err := s.Put("f", []byte("changed")); err != nil {
		t.Fatal(err)
	}
	d2, _, _ := s.Digest("f")
	if d1 == d2 {
		t.Error("digest unchanged after content change")
	}
}

func TestDeleteAndList(t *testing.T) {
	s := openTestStore(t)

	for _, p := range []string{"b", "a", "c"} {
		if err := s.Put(p, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Delete("b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("b"); err != nil {
		t.Errorf("deleting an absent path errored: %v", err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Path != "a" || entries[1].Path != "c" {
		t.Errorf("List = %+v, want [a c]", entries)
	}
}

func TestReopenPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("persist", []byte("yes")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.Get("persist")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "yes" {
		t.Errorf("Get after reopen = %q, want yes", got)
	}
}
