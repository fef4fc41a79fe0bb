// Command parity_check replays read endpoints against the legacy attendance
// API and this service, and reports status or payload differences. It is a
// migration aid: run it with a token valid on both deployments before
// pointing clients at the new base URL.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

// endpoint pairs the route shape each deployment serves for one logical
// operation. The legacy API mounts /api/user/{id}, /api/instituition/{id}
// and /api/subject/{id} while this service mounts /api/v1/users/{id} etc.,
// so the two paths differ for every entity route.
type endpoint struct {
	Method     string `json:"method"`
	NewPath    string `json:"new_path"`
	LegacyPath string `json:"legacy_path"`
	Critical   bool   `json:"critical"`
}

type manifest struct {
	Endpoints []endpoint `json:"endpoints"`
}

type result struct {
	Endpoint       endpoint
	LegacyStatus   int
	NewStatus      int
	StatusMatch    bool
	BodyMatch      bool
	Err            error
	LegacyDuration time.Duration
	NewDuration    time.Duration
}

// volatileKeys are stripped before payload comparison: both sides generate
// them independently so a mismatch carries no signal.
var volatileKeys = map[string]bool{
	"created_at":         true,
	"updated_at":         true,
	"issued_at":          true,
	"access_token":       true,
	"refresh_token":      true,
	"processing_time_ms": true,
}

func main() {
	var (
		newBase      string
		legacyBase   string
		manifestPath string
		bearerToken  string
		timeout      time.Duration
	)

	flag.StringVar(&newBase, "new-base", "http://localhost:8080", "new API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:8000", "legacy API base URL")
	flag.StringVar(&manifestPath, "endpoints", filepath.Join("scripts", "parity_check", "endpoints.json"), "path to endpoint manifest")
	flag.StringVar(&bearerToken, "token", os.Getenv("PARITY_TOKEN"), "bearer token valid on both deployments")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	endpoints, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("failed to load endpoint manifest: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var results []result
	breaking := 0

	for _, ep := range endpoints {
		res := compare(client, newBase, legacyBase, bearerToken, ep)
		if ep.Critical && (res.Err != nil || !res.StatusMatch || !res.BodyMatch) {
			breaking++
		}
		results = append(results, res)
	}

	printReport(results)
	fmt.Printf("Breaking differences: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadManifest(path string) ([]endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints defined in %s", path)
	}
	for i, ep := range m.Endpoints {
		if ep.NewPath == "" || ep.LegacyPath == "" {
			return nil, fmt.Errorf("endpoint %d in %s must set both new_path and legacy_path", i, path)
		}
	}
	return m.Endpoints, nil
}

func compare(client *http.Client, newBase, legacyBase, token string, ep endpoint) result {
	res := result{Endpoint: ep}

	newStatus, newBody, newDur, err := fetch(client, newBase, token, ep.Method, ep.NewPath)
	if err != nil {
		res.Err = fmt.Errorf("new request failed: %w", err)
		return res
	}
	legacyStatus, legacyBody, legacyDur, err := fetch(client, legacyBase, token, ep.Method, ep.LegacyPath)
	if err != nil {
		res.Err = fmt.Errorf("legacy request failed: %w", err)
		return res
	}

	res.NewStatus = newStatus
	res.LegacyStatus = legacyStatus
	res.NewDuration = newDur
	res.LegacyDuration = legacyDur
	res.StatusMatch = newStatus == legacyStatus
	res.BodyMatch = payloadsEqual(newBody, legacyBody)
	return res
}

func fetch(client *http.Client, base, token, method, path string) (int, []byte, time.Duration, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, err
	}
	return resp.StatusCode, body, time.Since(start), nil
}

func payloadsEqual(a, b []byte) bool {
	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return strings.TrimSpace(string(a)) == strings.TrimSpace(string(b))
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	scrub(&aj)
	scrub(&bj)
	return reflect.DeepEqual(aj, bj)
}

func scrub(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k := range val {
			if volatileKeys[k] {
				delete(val, k)
				continue
			}
			child := val[k]
			scrub(&child)
			val[k] = child
		}
	case []interface{}:
		for i, child := range val {
			scrub(&child)
			val[i] = child
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(results []result) {
	fmt.Println("Legacy Parity Report")
	fmt.Println("====================")
	for _, res := range results {
		status := "OK"
		if res.Err != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s new=%s legacy=%s\n", status, res.Endpoint.Method, res.Endpoint.NewPath, res.Endpoint.LegacyPath)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
			continue
		}
		fmt.Printf("  New: %d (%s) | Legacy: %d (%s)\n", res.NewStatus, res.NewDuration, res.LegacyStatus, res.LegacyDuration)
		fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Endpoint.Critical)
	}
}
