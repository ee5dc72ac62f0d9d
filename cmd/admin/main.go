package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lastoasis.ai/internal/persistence/archive"
	"lastoasis.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "archive":
			archiveCmd(os.Args[2:])
			return
		case "health":
			healthCmd(os.Args[2:])
			return
		case "metrics":
			metricsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the final archives found under the data directory.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "archives"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "final_") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
}

type worldSummary struct {
	Path        string         `json:"path"`
	Status      string         `json:"status"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	NextDecayAt string         `json:"next_decay_at"`
	Agents      int            `json:"agents"`
	Survivors   []string       `json:"survivors"`
	AliveZones  []int          `json:"alive_zones"`
	Trades      map[string]int `json:"trades"`
	Events      int            `json:"events"`
}

func summarize(path string, snap snapshot.WorldV1) worldSummary {
	s := worldSummary{
		Path:        path,
		Status:      snap.Status,
		CreatedAt:   snap.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   snap.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		NextDecayAt: snap.NextDecayAt.Format("2006-01-02T15:04:05Z07:00"),
		Agents:      len(snap.Agents),
		Survivors:   []string{},
		AliveZones:  []int{},
		Trades:      map[string]int{},
		Events:      len(snap.Events),
	}
	for id, a := range snap.Agents {
		if a.Alive {
			s.Survivors = append(s.Survivors, id)
		}
	}
	sort.Strings(s.Survivors)
	for _, z := range snap.Zones {
		if z.Alive {
			s.AliveZones = append(s.AliveZones, z.ID)
		}
	}
	for _, t := range snap.Trades {
		s.Trades[t.Status]++
	}
	return s
}

// inspectCmd summarizes the live world document.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	path := fs.String("file", "", "world state file (default: <data>/world.json)")
	full := fs.Bool("full", false, "print the whole document")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		p = filepath.Join(*dataDir, "world.json")
	}
	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	if *full {
		printJSON(snap)
		return
	}
	printJSON(summarize(p, snap))
}

// archiveCmd prints the meta and summary of one final archive.
func archiveCmd(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	name := fs.String("name", "", "archive directory name (default: latest)")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "archives")
	n := strings.TrimSpace(*name)
	if n == "" {
		n = latestArchive(dir)
	}
	if n == "" {
		fmt.Fprintln(os.Stderr, "no archives found")
		os.Exit(2)
	}
	p := filepath.Join(dir, n, "world.json.zst")
	meta, err := archive.ReadMeta(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read meta:", err)
		os.Exit(1)
	}
	snap, err := archive.ReadFinalSnapshot(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read archive:", err)
		os.Exit(1)
	}
	printJSON(struct {
		Meta    archive.FinalArchiveMeta `json:"meta"`
		Summary worldSummary             `json:"summary"`
	}{meta, summarize(p, snap)})
}

func latestArchive(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	best := ""
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "final_") && e.Name() > best {
			best = e.Name()
		}
	}
	return best
}
