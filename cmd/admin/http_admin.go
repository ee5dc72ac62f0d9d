package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func healthCmd(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8787", "server base url")
	_ = fs.Parse(args)
	get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/health")
}

func metricsCmd(args []string) {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8787", "server base url")
	_ = fs.Parse(args)
	get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/metrics")
}

func get(u string) {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Print(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
