package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"voxeltrace.ai/internal/observerproto"
	"voxeltrace.ai/internal/sim/nodesync"
	"voxeltrace.ai/internal/sim/svo"
	"voxeltrace.ai/internal/transport/observer"
)

func healthCmd(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/healthz"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

// bootstrapCmd fetches the observer bootstrap and summarises the node buffer.
func bootstrapCmd(args []string) {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/observer/bootstrap"
	cl := &http.Client{Timeout: 30 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "status %d: %s\n", resp.StatusCode, b)
		os.Exit(1)
	}

	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	words, err := observer.DecodeBootstrapNodes(boot)
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode nodes:", err)
		os.Exit(1)
	}

	sink := nodesync.NewBufferSink(max(boot.WorldParams.MaxNodes, uint32(len(words))))
	if err := sink.WriteNodes(0, nodesync.AppendWords(nil, words)); err != nil {
		fmt.Fprintln(os.Stderr, "mirror:", err)
		os.Exit(1)
	}
	nodes, err := sink.Nodes()
	if err != nil {
		fmt.Fprintln(os.Stderr, "unpack:", err)
		os.Exit(1)
	}
	counts := map[svo.NodeKind]int{}
	for _, n := range nodes {
		counts[n.Kind()]++
	}
	wp := boot.WorldParams
	fmt.Printf("tick=%d size=%d min=%v last_used=%d nodes=%d split=%d leaf=%d unused=%d palette=%d\n",
		boot.Tick, wp.Size, wp.Min, boot.LastUsed, len(nodes),
		counts[svo.NodeSplit], counts[svo.NodeLeaf], counts[svo.NodeUnused], len(boot.Palette))
}
