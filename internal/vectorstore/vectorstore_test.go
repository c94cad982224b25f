package vectorstore

import (
	"errors"
	"strings"
	"testing"
)

const recordsJSON = `[
	{"entry":{"group":"Kraftklub","item":"Mit K","year":2012,"rank":1,"score":3.40},"vector":[0.1,0.2,0.3]},
	{"entry":{"group":"Beyoncé","item":"Lemonade","year":2016,"rank":1,"score":4.10},"vector":[0.4,0.5,0.6]}
]`

func Test_Store_LoadAndRead(t *testing.T) {
	t.Parallel()
	s := New()

	if s.Initialized() {
		t.Fatal("fresh store must not be initialized")
	}
	if _, err := s.All(); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("want ErrUninitialized, got %v", err)
	}

	if err := s.Load(strings.NewReader(recordsJSON)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !s.Initialized() || s.Size() != 2 || s.Dimension() != 3 {
		t.Fatalf("after load: initialized=%v size=%d dim=%d", s.Initialized(), s.Size(), s.Dimension())
	}

	records, err := s.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if records[0].Index != 0 || records[1].Index != 1 {
		t.Errorf("indexes not assigned in order: %d, %d", records[0].Index, records[1].Index)
	}
	if records[0].Entry.ScoreText != "3.40" {
		t.Errorf("entry score text not preserved: %q", records[0].Entry.ScoreText)
	}
}

func Test_Store_LoadRejectsMixedDimensions(t *testing.T) {
	t.Parallel()
	s := New()
	if err := s.Load(strings.NewReader(recordsJSON)); err != nil {
		t.Fatalf("seed load: %v", err)
	}

	bad := `[
		{"entry":{"group":"a","item":"b","year":2000,"rank":1,"score":1},"vector":[0.1,0.2]},
		{"entry":{"group":"c","item":"d","year":2001,"rank":2,"score":2},"vector":[0.1]}
	]`
	if err := s.Load(strings.NewReader(bad)); err == nil {
		t.Fatal("want dimension mismatch error, got nil")
	}
	// A failed load keeps the previous record set.
	if s.Size() != 2 || s.Dimension() != 3 {
		t.Errorf("previous contents lost: size=%d dim=%d", s.Size(), s.Dimension())
	}
}

func Test_Store_LoadRejectsEmpty(t *testing.T) {
	t.Parallel()
	s := New()

	if err := s.Load(strings.NewReader(`[]`)); err == nil {
		t.Fatal("want error for empty record set, got nil")
	}
	if err := s.Load(strings.NewReader(`[{"entry":{"group":"a","item":"b","score":1},"vector":[]}]`)); err == nil {
		t.Fatal("want error for empty vector, got nil")
	}
}
