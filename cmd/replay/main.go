package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/journal"
)

func main() {
	var (
		path     = flag.String("journal", "", "path to a .jsonl.zst journal")
		dir      = flag.String("dir", "", "list the journals in this directory")
		fromTick = flag.Uint64("from_tick", 0, "print entries from tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		verbose  = flag.Bool("v", false, "print every command and change")
	)
	flag.Parse()

	if *dir != "" {
		files, err := journal.List(*dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list journals:", err)
			os.Exit(1)
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return
	}
	if *path == "" {
		fmt.Fprintln(os.Stderr, "missing -journal or -dir")
		os.Exit(2)
	}

	r, err := journal.Open(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open journal:", err)
		os.Exit(1)
	}
	defer r.Close()

	var (
		matchID  string
		lines    int
		first    uint64
		last     uint64
		accepted = map[string]int{}
		rejected = map[string]int{}
		kinds    = map[ecs.EntityID]string{}
		alive    = map[ecs.EntityID]bool{}
		spawned  int
		removed  int
		end      *journal.End
	)
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "read journal:", err)
			os.Exit(1)
		}
		t := uint64(e.Tick)
		if *toTick != 0 && t > *toTick {
			break
		}
		if lines == 0 {
			first = t
		}
		lines++
		last = t
		if e.Match != "" {
			matchID = e.Match
		}
		show := *verbose && t >= *fromTick

		for _, c := range e.Commands {
			if c.Err != "" {
				rejected[c.Command.Name]++
			} else {
				accepted[c.Command.Name]++
			}
			if show {
				status := "ok"
				if c.Err != "" {
					status = "rejected: " + c.Err
				}
				fmt.Printf("tick=%d cmd=%s target=%d source=%d seq=%d %s\n",
					t, c.Command.Name, c.Command.Target, c.Command.Source, c.Command.Seq, status)
			}
		}
		for _, c := range e.Changes {
			switch {
			case c.Removed:
				if alive[c.Entity] {
					removed++
				}
				delete(alive, c.Entity)
			case !alive[c.Entity]:
				alive[c.Entity] = true
				spawned++
			}
			if c.Field == "kind" {
				if s, ok := c.Value.(string); ok {
					kinds[c.Entity] = s
				}
			}
			if show {
				if c.Removed {
					fmt.Printf("tick=%d entity=%d removed\n", t, c.Entity)
				} else {
					fmt.Printf("tick=%d entity=%d %s=%v\n", t, c.Entity, c.Field, c.Value)
				}
			}
		}
		if e.End != nil {
			end = e.End
		}
	}

	fmt.Printf("journal match=%s entries=%d ticks=%d..%d\n", matchID, lines, first, last)
	for _, name := range sortedKeys(accepted, rejected) {
		fmt.Printf("  command %-14s accepted=%d rejected=%d\n", name, accepted[name], rejected[name])
	}
	fmt.Printf("  entities spawned=%d removed=%d alive=%d\n", spawned, removed, len(alive))

	byKind := map[string]int{}
	for id := range alive {
		k := kinds[id]
		if k == "" {
			k = "?"
		}
		byKind[k]++
	}
	for _, k := range sortedKeys(byKind) {
		fmt.Printf("  alive %-12s %d\n", k, byKind[k])
	}
	if end != nil {
		fmt.Printf("  result winner=%s reason=%s\n", end.Winner, end.Reason)
	} else {
		fmt.Println("  result none (match still running or journal truncated)")
	}
}

func sortedKeys(ms ...map[string]int) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range ms {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
