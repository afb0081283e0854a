// Command healthctl is a CLI client for the healthsync service.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- http client ----

type client struct {
	base   string
	apiKey string
	http   *http.Client
}

func newClient(base, apiKey string) *client {
	return &client{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, body []byte) (map[string]any, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s %s: status %d, bad response body: %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		msg := "request failed"
		if e, ok := out["error"].(map[string]any); ok {
			if m, ok := e["message"].(string); ok {
				msg = m
			}
		}
		return out, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	return out, nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// buildEnvelope wraps a raw export document into the sync request shape.
// A file that already carries raw_json and source passes through untouched.
func buildEnvelope(raw []byte, deviceID, sourceApp string, collectedAt time.Time) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("input is not valid JSON: %w", err)
	}
	if _, ok := doc["raw_json"]; ok {
		return raw, nil
	}

	date, _ := doc["date"].(string)
	if date == "" {
		date = collectedAt.UTC().Format(time.DateOnly)
	}
	return json.Marshal(map[string]any{
		"schema_version": 3,
		"date":           date,
		"raw_json":       string(raw),
		"source": map[string]any{
			"device_id":    deviceID,
			"collected_at": collectedAt.UTC().Format(time.RFC3339),
			"source_app":   sourceApp,
		},
	})
}

func usage() {
	fmt.Fprintf(os.Stderr, `healthctl
Usage:
  healthctl -addr URL -key API_KEY <cmd> [args]

Commands:
  version
  sync    -file <json|-> [-kind daily|intraday] [-device <id>] [-app <name>]
  debug   -file <json|->
  latest
  get     -date <YYYY-MM-DD>
  range   -start <YYYY-MM-DD> -end <YYYY-MM-DD>
  logs    [-date <YYYY-MM-DD>] [-device <id>] [-limit <n>]
`)
	os.Exit(2)
}

// main dispatches subcommands against the HTTP API.
func main() {
	addr := flag.String("addr", "http://localhost:8000", "server base URL")
	key := flag.String("key", os.Getenv("API_KEY"), "API key (or API_KEY env)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := newClient(*addr, *key)

	switch cmd {

	case "version":
		fmt.Printf("healthctl %s (%s)\n", version, buildDate)

	case "sync":
		fs := flag.NewFlagSet("sync", flag.ExitOnError)
		file := fs.String("file", "-", "export JSON file, - for stdin")
		kind := fs.String("kind", "daily", "daily or intraday")
		device := fs.String("device", "healthctl", "device id for bare exports")
		app := fs.String("app", "healthctl", "source app for bare exports")
		_ = fs.Parse(flag.Args()[1:])
		if *kind != "daily" && *kind != "intraday" {
			fail(fmt.Errorf("unknown kind %q", *kind))
		}

		raw, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		body, err := buildEnvelope(raw, *device, *app, time.Now())
		if err != nil {
			fail(err)
		}

		out, err := c.do(ctx, http.MethodPost, "/v1/ingest/"+*kind, nil, body)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "debug":
		fs := flag.NewFlagSet("debug", flag.ExitOnError)
		file := fs.String("file", "-", "raw JSON file, - for stdin")
		_ = fs.Parse(flag.Args()[1:])

		raw, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		out, err := c.do(ctx, http.MethodPost, "/v1/ingest/debug", nil, raw)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "latest":
		out, err := c.do(ctx, http.MethodGet, "/v1/records/latest", nil, nil)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "get":
		fs := flag.NewFlagSet("get", flag.ExitOnError)
		date := fs.String("date", "", "record date (YYYY-MM-DD)")
		_ = fs.Parse(flag.Args()[1:])
		if *date == "" {
			fail(fmt.Errorf("need -date"))
		}

		out, err := c.do(ctx, http.MethodGet, "/v1/records/"+*date, nil, nil)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "range":
		fs := flag.NewFlagSet("range", flag.ExitOnError)
		start := fs.String("start", "", "start date (YYYY-MM-DD)")
		end := fs.String("end", "", "end date (YYYY-MM-DD)")
		_ = fs.Parse(flag.Args()[1:])
		if *start == "" || *end == "" {
			fail(fmt.Errorf("need -start and -end"))
		}

		q := url.Values{"start_date": {*start}, "end_date": {*end}}
		out, err := c.do(ctx, http.MethodGet, "/v1/records", q, nil)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "logs":
		fs := flag.NewFlagSet("logs", flag.ExitOnError)
		date := fs.String("date", "", "filter by date (YYYY-MM-DD)")
		device := fs.String("device", "", "filter by device id")
		limit := fs.Int("limit", 0, "max entries")
		_ = fs.Parse(flag.Args()[1:])

		q := url.Values{}
		if *date != "" {
			q.Set("date", *date)
		}
		if *device != "" {
			q.Set("device_id", *device)
		}
		if *limit > 0 {
			q.Set("limit", fmt.Sprint(*limit))
		}

		out, err := c.do(ctx, http.MethodGet, "/v1/logs", q, nil)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	default:
		usage()
	}
}
