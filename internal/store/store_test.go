package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sq, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "nested", "store.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	out := map[string]Store{"memory": NewMemory(), "sqlite": sq}

	if addr := os.Getenv("SCRAPECAST_TEST_REDIS"); addr != "" {
		rd, err := OpenRedis(ctx, addr)
		if err != nil {
			t.Fatalf("OpenRedis: %v", err)
		}
		rd.client.Del(ctx, keyPrefix+"k", keyPrefix+"other")
		out["redis"] = rd
	}
	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Members(ctx, "k")
			if err != nil || len(got) != 0 {
				t.Fatalf("Members on empty key = %v, %v", got, err)
			}

			for _, m := range []string{"UCa", "UCb", "UCa"} {
				if _, err := s.Add(ctx, "k", m); err != nil {
					t.Fatalf("Add(%q): %v", m, err)
				}
			}
			if added, _ := s.Add(ctx, "k", "UCb"); added {
				t.Error("re-adding a member reported new")
			}

			got, _ = s.Members(ctx, "k")
			if len(got) != 2 || got[0] != "UCa" || got[1] != "UCb" {
				t.Errorf("Members = %v, want [UCa UCb]", got)
			}

			if ok, _ := s.Contains(ctx, "k", "UCa"); !ok {
				t.Error("Contains(UCa) = false")
			}
			if ok, _ := s.Contains(ctx, "other", "UCa"); ok {
				t.Error("keys are not isolated")
			}

			if removed, _ := s.Remove(ctx, "k", "UCa"); !removed {
				t.Error("Remove(UCa) = false")
			}
			if removed, _ := s.Remove(ctx, "k", "UCa"); removed {
				t.Error("second Remove(UCa) = true")
			}
			got, _ = s.Members(ctx, "k")
			if len(got) != 1 || got[0] != "UCb" {
				t.Errorf("Members after remove = %v", got)
			}
		})
	}
}

func TestStoreRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Add(ctx, "", "x"); err == nil {
				t.Error("empty key accepted")
			}
			if _, err := s.Add(ctx, "k", ""); err == nil {
				t.Error("empty member accepted")
			}
		})
	}
}

func TestSQLitePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	s.Add(ctx, SubscriptionsKey, "UCchannel")
	s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if ok, _ := s.Contains(ctx, SubscriptionsKey, "UCchannel"); !ok {
		t.Error("member lost after reopen")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("memory driver returned %T", s)
	}

	s, err = Open(ctx, Options{Path: filepath.Join(t.TempDir(), "s.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLite); !ok {
		t.Errorf("default driver returned %T", s)
	}

	if _, err := Open(ctx, Options{Driver: "bolt"}); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("err = %v, want ErrUnknownDriver", err)
	}
	if _, err := Open(ctx, Options{Driver: "redis"}); err == nil {
		t.Error("redis without address accepted")
	}
}
