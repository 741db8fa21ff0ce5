package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	persistlog "voxeltrace.ai/internal/persistence/log"
	"voxeltrace.ai/internal/sim/game"
)

// runStats summarises the step log of one server run.
type runStats struct {
	id        string
	firstTick uint64
	lastTick  uint64
	steps     int
	resyncs   int
	shifts    int
	nodes     int
	intents   int
	rejected  int
	lastUsed  uint32
	gaps      int
}

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		runID   = flag.String("run", "", "only report this run id (optional)")
		strict  = flag.Bool("strict", false, "exit non-zero when a run has tick gaps")
	)
	flag.Parse()

	stepFiles, err := persistlog.StepFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list step files:", err)
		os.Exit(1)
	}
	if len(stepFiles) == 0 {
		fmt.Fprintln(os.Stderr, "no step files found in", filepath.Join(*dataDir, "steps"))
		os.Exit(1)
	}

	runs := map[string]*runStats{}
	var order []string
	for _, path := range stepFiles {
		err := persistlog.ReadFile(path, func(line []byte) error {
			var rec persistlog.StepRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if *runID != "" && rec.RunID != *runID {
				return nil
			}
			rs, ok := runs[rec.RunID]
			if !ok {
				rs = &runStats{id: rec.RunID, firstTick: rec.Tick, lastTick: rec.Tick}
				runs[rec.RunID] = rs
				order = append(order, rec.RunID)
			} else if rec.Tick != rs.lastTick+1 {
				rs.gaps++
			}
			rs.add(rec.StepLogEntry)
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read steps:", err)
			os.Exit(1)
		}
	}

	gaps := 0
	for _, id := range order {
		rs := runs[id]
		gaps += rs.gaps
		fmt.Printf("run=%s ticks=%d..%d steps=%d resyncs=%d shifts=%d nodes=%d intents=%d rejected=%d last_used=%d gaps=%d\n",
			rs.id, rs.firstTick, rs.lastTick, rs.steps, rs.resyncs, rs.shifts, rs.nodes, rs.intents, rs.rejected, rs.lastUsed, rs.gaps)
	}

	if err := reportAudit(*dataDir); err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}

	if *strict && gaps > 0 {
		fmt.Fprintf(os.Stderr, "step log has %d tick gaps\n", gaps)
		os.Exit(1)
	}
}

func (rs *runStats) add(e game.StepLogEntry) {
	rs.steps++
	rs.lastTick = e.Tick
	if e.Resync {
		rs.resyncs++
	}
	rs.shifts += len(e.Shifts)
	rs.nodes += e.Nodes
	rs.intents += e.Intents
	rs.rejected += e.Rejected
	rs.lastUsed = e.LastUsed
}

func reportAudit(dataDir string) error {
	files, err := persistlog.AuditFiles(dataDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	edits := map[string]int{}
	nodes := map[string]int{}
	for _, path := range files {
		err := persistlog.ReadFile(path, func(line []byte) error {
			var e game.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if e.Kind == "" {
				return errors.New(filepath.Base(path) + ": audit entry without kind")
			}
			edits[e.Kind]++
			nodes[e.Kind] += e.Nodes
			return nil
		})
		if err != nil {
			return err
		}
	}
	kinds := make([]string, 0, len(edits))
	for k := range edits {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("audit kind=%s edits=%d nodes=%d\n", k, edits[k], nodes[k])
	}
	return nil
}
