package planner_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dvrmanager/internal/identify"
	"dvrmanager/internal/planner"
	"dvrmanager/internal/services"
	"dvrmanager/internal/testsupport"
)

func TestPlanEpisodePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := planner.New(cfg)

	src := filepath.Join(cfg.Paths.WatchDir, "rec.mkv")
	testsupport.WriteFile(t, src, 64)

	plan, err := p.Plan(src, identify.MediaIdentity{
		Title:        "Known Show",
		Season:       1,
		Episode:      2,
		EpisodeTitle: "Pilot",
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	want := filepath.Join(cfg.Paths.TVDir, "Known Show", "Season 01", "Known Show - S01E02 - Pilot.mkv")
	if plan.DestPath != want {
		t.Fatalf("DestPath = %q, want %q", plan.DestPath, want)
	}
	if plan.Duplicate {
		t.Fatal("fresh destination flagged as duplicate")
	}
}

func TestPlanEpisodeOmitsEmptyTitleSegment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := planner.New(cfg)

	src := filepath.Join(cfg.Paths.WatchDir, "rec.ts")
	testsupport.WriteFile(t, src, 64)

	plan, err := p.Plan(src, identify.MediaIdentity{Title: "Known Show", Season: 3, Episode: 11})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := plan.FileName; got != "Known Show - S03E11.ts" {
		t.Fatalf("FileName = %q", got)
	}
}

func TestPlanDateBasedPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := planner.New(cfg)

	src := filepath.Join(cfg.Paths.WatchDir, "rec.ts")
	testsupport.WriteFile(t, src, 64)

	plan, err := p.Plan(src, identify.MediaIdentity{Title: "Nightly News", AirDate: "2026-03-14"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	want := filepath.Join(cfg.Paths.TVDir, "Nightly News", "Season 2026", "Nightly News - 2026-03-14.ts")
	if plan.DestPath != want {
		t.Fatalf("DestPath = %q, want %q", plan.DestPath, want)
	}
}

func TestPlanMoviePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := planner.New(cfg)

	src := filepath.Join(cfg.Paths.WatchDir, "rec.mkv")
	testsupport.WriteFile(t, src, 64)

	plan, err := p.Plan(src, identify.MediaIdentity{Title: "The Heist", Year: 2019, Movie: true})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	want := filepath.Join(cfg.Paths.MoviesDir, "The Heist (2019)", "The Heist (2019).mkv")
	if plan.DestPath != want {
		t.Fatalf("DestPath = %q, want %q", plan.DestPath, want)
	}
}

func TestPlanSanitizesUnsafeTitles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := planner.New(cfg)

	src := filepath.Join(cfg.Paths.WatchDir, "rec.mkv")
	testsupport.WriteFile(t, src, 64)

	plan, err := p.Plan(src, identify.MediaIdentity{Title: "Crime: Scene?", Season: 1, Episode: 1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	wantDir := filepath.Join(cfg.Paths.TVDir, "Crime- Scene", "Season 01")
	if plan.DestDir != wantDir {
		t.Fatalf("DestDir = %q, want %q", plan.DestDir, wantDir)
	}
}

func TestPlanCollisionSuffixes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := planner.New(cfg)

	src := filepath.Join(cfg.Paths.WatchDir, "rec.mkv")
	testsupport.WriteFile(t, src, 64)

	identity := identify.MediaIdentity{Title: "Known Show", Season: 1, Episode: 2}
	dir := filepath.Join(cfg.Paths.TVDir, "Known Show", "Season 01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	// Occupy the bare slot with different content.
	testsupport.WriteFile(t, filepath.Join(dir, "Known Show - S01E02.mkv"), 128)

	plan, err := p.Plan(src, identity)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.FileName != "Known Show - S01E02-2.mkv" {
		t.Fatalf("FileName = %q, want suffixed -2", plan.FileName)
	}
	if plan.Duplicate {
		t.Fatal("distinct content flagged as duplicate")
	}

	// Occupy -2 as well; the next plan lands on -3.
	testsupport.WriteFile(t, plan.DestPath, 256)
	plan, err = p.Plan(src, identity)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.FileName != "Known Show - S01E02-3.mkv" {
		t.Fatalf("FileName = %q, want suffixed -3", plan.FileName)
	}
}

func TestPlanDetectsByteIdenticalDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := planner.New(cfg)

	src := filepath.Join(cfg.Paths.WatchDir, "rec.mkv")
	testsupport.WriteFile(t, src, 64)

	dir := filepath.Join(cfg.Paths.TVDir, "Known Show", "Season 01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(dir, "Known Show - S01E02.mkv")
	testsupport.WriteFile(t, existing, 64)

	plan, err := p.Plan(src, identify.MediaIdentity{Title: "Known Show", Season: 1, Episode: 2})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !plan.Duplicate {
		t.Fatal("byte-identical destination not flagged as duplicate")
	}
	if plan.DuplicateOf != existing {
		t.Fatalf("DuplicateOf = %q, want %q", plan.DuplicateOf, existing)
	}
}

func TestPlanRejectsEmptyTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := planner.New(cfg)

	_, err := p.Plan(filepath.Join(cfg.Paths.WatchDir, "rec.mkv"), identify.MediaIdentity{})
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("err = %v, want permanent", err)
	}
}
