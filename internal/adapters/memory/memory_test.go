package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/membermap/membermap/internal/core/domain"
)

func TestFlagStore_RoundTrip(t *testing.T) {
	s := NewFlagStore()
	ctx := context.Background()

	if _, ok, _ := s.GetFlag(ctx, "c1", "theme"); ok {
		t.Fatal("expected unset flag")
	}
	_ = s.SetFlag(ctx, "c1", "theme", "light")

	v, ok, err := s.GetFlag(ctx, "c1", "theme")
	if err != nil || !ok || v != "light" {
		t.Fatalf("expected light, got %q ok=%v err=%v", v, ok, err)
	}
	if _, ok, _ := s.GetFlag(ctx, "c2", "theme"); ok {
		t.Error("flags must be scoped per client")
	}
}

func TestMemberRepo_KeepsInsertionOrder(t *testing.T) {
	r := NewMemberRepo([]domain.Member{{ID: "b", Name: "B"}, {ID: "a", Name: "A"}})
	_ = r.UpsertBatch(context.Background(), []domain.Member{{ID: "b", Name: "B2"}, {ID: "c", Name: "C"}})

	got, _ := r.List(context.Background())
	if len(got) != 3 {
		t.Fatalf("expected 3 members, got %d", len(got))
	}
	if got[0].ID != "b" || got[0].Name != "B2" || got[2].ID != "c" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestMemberRepo_GetByIDNotFound(t *testing.T) {
	r := NewMemberRepo(nil)
	if _, err := r.GetByID(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadMemberFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "members.json")
	data := `[{"id":"1","name":"Asha","city":"Delhi","location":{"lat":28.6,"lon":77.2}}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := LoadMemberFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := r.GetByID(context.Background(), "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.City != "Delhi" || m.Location.Lat != 28.6 {
		t.Errorf("unexpected member: %+v", m)
	}
}

func TestObjectStore_GetMissing(t *testing.T) {
	s := NewObjectStore()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
