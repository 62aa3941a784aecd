package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"seirsim.dev/internal/persistence/indexdb"
	persistlog "seirsim.dev/internal/persistence/log"
	"seirsim.dev/internal/sim/digest"
	"seirsim.dev/internal/sim/epidemic"
	"seirsim.dev/internal/sim/randsrc"
)

func main() {
	var (
		eventsDir = flag.String("events", "", "directory containing events-*.jsonl.zst")
		seed      = flag.Int64("seed", 0, "only replay runs with this seed (optional)")
		indexPath = flag.String("index", "", "sqlite run index to cross-check (default: <events>/index/runs.sqlite if present)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lmicroseconds)

	if *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -events")
		os.Exit(2)
	}

	entries, err := persistlog.ReadDayLog(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}

	runs, err := splitRuns(entries)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	seedSet := false
	flag.Visit(func(f *flag.Flag) { seedSet = seedSet || f.Name == "seed" })
	if seedSet {
		runs = filterBySeed(runs, *seed)
		if len(runs) == 0 {
			fmt.Fprintf(os.Stderr, "replay: no run with seed=%d in %s\n", *seed, *eventsDir)
			os.Exit(1)
		}
	}

	idx := strings.TrimSpace(*indexPath)
	if idx == "" {
		candidate := filepath.Join(*eventsDir, "index", "runs.sqlite")
		if _, err := os.Stat(candidate); err == nil {
			idx = candidate
		}
	}

	for i, r := range runs {
		checked, err := verify(r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "replay: run %d (seed=%d): %v\n", i, r[0].Seed, err)
			os.Exit(1)
		}
		logger.Printf("run %d ok: seed=%d checked=%d days", i, r[0].Seed, checked)
	}
	if idx != "" && seedSet {
		n, err := crossCheckIndex(context.Background(), idx, runs[len(runs)-1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay: index:", err)
			os.Exit(1)
		}
		logger.Printf("index ok: seed=%d checked=%d days", *seed, n)
	}
	fmt.Printf("replay ok: runs=%d\n", len(runs))
}

// splitRuns groups entries by header; each group starts with a header.
func splitRuns(entries []persistlog.Entry) ([][]persistlog.Entry, error) {
	var runs [][]persistlog.Entry
	for _, e := range entries {
		if e.Kind == persistlog.KindHeader {
			runs = append(runs, []persistlog.Entry{e})
			continue
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("log does not start with a header (got %q)", e.Kind)
		}
		runs[len(runs)-1] = append(runs[len(runs)-1], e)
	}
	return runs, nil
}

func filterBySeed(runs [][]persistlog.Entry, seed int64) [][]persistlog.Entry {
	var out [][]persistlog.Entry
	for _, r := range runs {
		if r[0].Seed == seed {
			out = append(out, r)
		}
	}
	return out
}

// crossCheckIndex compares the newest indexed run for the logged seed
// against the logged days.
func crossCheckIndex(ctx context.Context, path string, run []persistlog.Entry) (int, error) {
	head := run[0]
	row, days, err := indexdb.LatestRun(ctx, path, head.Seed)
	if err != nil {
		return 0, err
	}
	if head.Config != nil && row.Config != *head.Config {
		return 0, fmt.Errorf("run %d config differs from logged header", row.ID)
	}
	logged := map[int]persistlog.Entry{}
	for _, e := range run[1:] {
		if e.Kind == persistlog.KindDay {
			logged[e.Day] = e
		}
	}
	if len(days) != len(logged) {
		return 0, fmt.Errorf("run %d has %d indexed days, log has %d", row.ID, len(days), len(logged))
	}
	for _, d := range days {
		e, ok := logged[d.Day]
		if !ok {
			return 0, fmt.Errorf("run %d: day %d indexed but not logged", row.ID, d.Day)
		}
		if e.Active != d.Active || e.Total != d.Total || e.Digest != d.Digest {
			return 0, fmt.Errorf("run %d: day %d differs between index and log", row.ID, d.Day)
		}
	}
	return len(days), nil
}

type recorder struct {
	epidemic.NopObserver
	days []persistlog.Entry
}

func (r *recorder) DayEnded(d epidemic.DayReport) {
	r.days = append(r.days, persistlog.Entry{
		Kind:   persistlog.KindDay,
		Day:    d.Day,
		Active: d.Active,
		Total:  d.Total,
		Digest: digest.Population(d.Day, d.Population),
	})
}

// verify re-runs one logged simulation and compares every logged day.
func verify(run []persistlog.Entry) (int, error) {
	head := run[0]
	if head.Config == nil {
		return 0, fmt.Errorf("header has no config")
	}
	rec := &recorder{}
	s, err := epidemic.New(*head.Config, randsrc.NewPCG(head.Seed), rec)
	if err != nil {
		return 0, err
	}
	res := s.Run()

	checked := 0
	for _, e := range run[1:] {
		switch e.Kind {
		case persistlog.KindDay:
			if e.Day >= len(rec.days) {
				return checked, fmt.Errorf("day %d logged but replay ended at day %d", e.Day, len(rec.days)-1)
			}
			got := rec.days[e.Day]
			if got.Active != e.Active || got.Total != e.Total {
				return checked, fmt.Errorf("day %d mismatch: active got=%d want=%d total got=%d want=%d", e.Day, got.Active, e.Active, got.Total, e.Total)
			}
			if got.Digest != e.Digest {
				return checked, fmt.Errorf("digest mismatch at day %d: got=%s want=%s", e.Day, got.Digest, e.Digest)
			}
			checked++
		case persistlog.KindResult:
			if e.Result == nil {
				return checked, fmt.Errorf("result entry is empty")
			}
			if e.Result.TotalInfections != res.TotalInfections || e.Result.Outcome != res.Outcome || e.Result.Days != res.Days {
				return checked, fmt.Errorf("result mismatch: got %s want %s", res.Summary(), e.Result.Summary())
			}
		}
	}
	return checked, nil
}
