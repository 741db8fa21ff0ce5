package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "voxeltrace.ai/internal/persistence/log"
	"voxeltrace.ai/internal/protocol"
	"voxeltrace.ai/internal/sim/game"
	"voxeltrace.ai/internal/sim/svo"
	"voxeltrace.ai/internal/sim/terrain/gen"
	"voxeltrace.ai/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "probe":
			probeCmd(os.Args[2:])
			return
		case "bootstrap":
			bootstrapCmd(os.Args[2:])
			return
		case "health":
			healthCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	steps, err := persistlog.StepFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list steps:", err)
		os.Exit(1)
	}
	audit, err := persistlog.AuditFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit:", err)
		os.Exit(1)
	}
	for _, p := range append(steps, audit...) {
		fmt.Println(p)
	}
}

// probeCmd builds a world offline and reports arena usage, optionally walking
// the observer so the region streamer runs.
func probeCmd(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	configDir := fs.String("configs", "./configs", "config directory")
	seed := fs.Int64("seed", 0, "override the world seed (0 keeps tuning.yaml)")
	depth := fs.Int("depth", 0, "override max_depth (0 keeps tuning.yaml)")
	column := fs.String("column", "", "print the voxel runs of column x,z (optional)")
	walk := fs.Int("walk", 0, "blocks to walk the observer along +x")
	stride := fs.Int("stride", 8, "blocks per walk step")
	_ = fs.Parse(args)

	tune, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.World.Seed = *seed
	}
	if *depth != 0 {
		tune.World.MaxDepth = *depth
	}

	w := svo.New(tune.WorldConfig())
	g := game.New(tune.GameConfig(), w, gen.New(tune.GenParams()), nil)
	start := time.Now()
	g.Generate()
	fmt.Printf("generated size=%d seed=%d min=%v in %s\n", w.Size(), tune.World.Seed, w.Min(), time.Since(start).Round(time.Millisecond))
	printArena(w)

	if *column != "" {
		var x, z int
		if _, err := fmt.Sscanf(strings.TrimSpace(*column), "%d,%d", &x, &z); err != nil {
			fmt.Fprintln(os.Stderr, "bad -column, want x,z:", err)
			os.Exit(2)
		}
		printColumn(w, x, z)
	}

	if *walk > 0 {
		step := max(*stride, 1)
		obs := g.Observer()
		shifts := 0
		for moved := 0; moved < *walk; moved += step {
			obs.X += float64(step)
			g.StepOnce(protocol.IntentMsg{
				Type:            protocol.TypeIntent,
				ProtocolVersion: protocol.Version,
				Kind:            protocol.IntentMove,
				Observer:        [3]float64{obs.X, obs.Y, obs.Z},
			})
			// MOVE lands on the following step.
			res := g.StepOnce()
			shifts += len(res.Shifts)
		}
		fmt.Printf("walked=%d shifts=%d min=%v tick=%d\n", *walk, shifts, w.Min(), g.CurrentTick())
		printArena(w)
	}
}

func printArena(w *svo.World) {
	counts := map[svo.NodeKind]int{}
	leaves := map[string]int{}
	nodes := w.Nodes()
	for _, n := range nodes {
		counts[n.Kind()]++
		if n.Kind() == svo.NodeLeaf {
			leaves[n.Voxel().String()]++
		}
	}
	fmt.Printf("arena len=%d last_used=%d max_nodes=%d split=%d leaf=%d unused=%d upload=%s budget=%s\n",
		len(nodes), w.LastUsedNode(), w.MaxNodes(), counts[svo.NodeSplit], counts[svo.NodeLeaf], counts[svo.NodeUnused],
		humanize.IBytes(uint64(w.LastUsedNode()+1)*svo.NodeSize), humanize.IBytes(uint64(w.MaxNodes())*svo.NodeSize))

	names := make([]string, 0, len(leaves))
	for k := range leaves {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return leaves[names[i]] > leaves[names[j]] })
	for _, name := range names {
		fmt.Printf("  %-12s %d\n", name, leaves[name])
	}
}

func printColumn(w *svo.World, x, z int) {
	lo, hi := w.Min().Y, w.Max().Y
	cur, from := svo.Air, lo
	for y := lo; y <= hi; y++ {
		v := svo.Air
		if y < hi {
			got, err := w.GetVoxel(svo.V3(x, y, z))
			if err != nil {
				fmt.Fprintln(os.Stderr, "column:", err)
				os.Exit(2)
			}
			v = got
		}
		if y == hi || v != cur {
			if y > from {
				fmt.Printf("  y=%d..%d %s\n", from, y-1, cur)
			}
			cur, from = v, y
		}
	}
}
