package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/world.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	zone := fs.Int("zone", 0, "zone_id filter (eliminations)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		if *limit <= 0 {
			*limit = 20
		}
		rows, err := db.Query(`SELECT seq,written_at,path,status,agents,alive_agents,alive_zones,trades,events,next_decay_at FROM snapshots ORDER BY seq DESC LIMIT ?`, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq         int64  `json:"seq"`
				WrittenAt   string `json:"written_at"`
				Path        string `json:"path"`
				Status      string `json:"status"`
				Agents      int    `json:"agents"`
				AliveAgents int    `json:"alive_agents"`
				AliveZones  int    `json:"alive_zones"`
				Trades      int    `json:"trades"`
				Events      int    `json:"events"`
				NextDecayAt string `json:"next_decay_at"`
			}
			if err := rows.Scan(&r.Seq, &r.WrittenAt, &r.Path, &r.Status, &r.Agents, &r.AliveAgents, &r.AliveZones, &r.Trades, &r.Events, &r.NextDecayAt); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "decays":
		rows, err := db.Query(`SELECT zone_id,name,decayed_at FROM zone_decays ORDER BY decayed_at, zone_id`)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ZoneID    int    `json:"zone_id"`
				Name      string `json:"name"`
				DecayedAt string `json:"decayed_at"`
			}
			if err := rows.Scan(&r.ZoneID, &r.Name, &r.DecayedAt); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "eliminations":
		query := `SELECT agent_id,zone_id,eliminated_at FROM eliminations ORDER BY eliminated_at, agent_id`
		var qargs []any
		if *zone > 0 {
			query = `SELECT agent_id,zone_id,eliminated_at FROM eliminations WHERE zone_id=? ORDER BY eliminated_at, agent_id`
			qargs = append(qargs, *zone)
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				AgentID      string `json:"agent_id"`
				ZoneID       int    `json:"zone_id"`
				EliminatedAt string `json:"eliminated_at"`
			}
			if err := rows.Scan(&r.AgentID, &r.ZoneID, &r.EliminatedAt); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "results":
		rows, err := db.Query(`SELECT agent_id,name,zone_id,survived,inventory_json,recorded_at FROM results ORDER BY survived DESC, agent_id`)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				AgentID    string          `json:"agent_id"`
				Name       string          `json:"name"`
				ZoneID     int             `json:"zone_id"`
				Survived   bool            `json:"survived"`
				Inventory  json.RawMessage `json:"inventory"`
				RecordedAt string          `json:"recorded_at"`
			}
			var inv string
			if err := rows.Scan(&r.AgentID, &r.Name, &r.ZoneID, &r.Survived, &inv, &r.RecordedAt); err != nil {
				fail("scan", err)
			}
			r.Inventory = json.RawMessage(inv)
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta WHERE key <> 'tuning_json' ORDER BY key`)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		out := map[string]string{}
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				fail("scan", err)
			}
			out[k] = v
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}
		printJSON(out)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] snapshots|decays|eliminations|results|meta")
		os.Exit(2)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
