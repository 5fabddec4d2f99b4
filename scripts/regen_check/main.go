// Command regen_check runs timetable generation twice against a live API
// and verifies both runs produce identical placements. Session IDs are
// regenerated on every run, so the comparison projects each session onto
// its placement-relevant fields only.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

type sessionView struct {
	SubjectID      string   `json:"subject_id"`
	TeacherID      string   `json:"teacher_id"`
	RoomID         string   `json:"room_id"`
	GroupIDs       []string `json:"group_ids"`
	Day            string   `json:"day"`
	StartSlotIndex int      `json:"start_slot_index"`
	SlotCount      int      `json:"slot_count"`
}

type timetableView struct {
	Timetable struct {
		GroupID string `json:"group_id"`
	} `json:"timetable"`
	Sessions []sessionView `json:"sessions"`
}

type envelope struct {
	Data []timetableView `json:"data"`
}

func main() {
	var (
		base    string
		week    string
		token   string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&week, "week", "", "scheduling week (YYYY-Www)")
	flag.StringVar(&token, "token", "", "admin bearer token")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	if week == "" {
		log.Fatal("missing required -week flag")
	}

	client := &http.Client{Timeout: timeout}

	first, err := generateAndFetch(client, base, week, token)
	if err != nil {
		log.Fatalf("first run failed: %v", err)
	}
	second, err := generateAndFetch(client, base, week, token)
	if err != nil {
		log.Fatalf("second run failed: %v", err)
	}

	diffs := diffPlacements(first, second)

	fmt.Println("Regeneration Determinism Report")
	fmt.Println("===============================")
	fmt.Printf("Week: %s\n", week)
	fmt.Printf("Placements: run 1 = %d, run 2 = %d\n", len(first), len(second))
	if len(diffs) == 0 {
		fmt.Println("Result: identical")
		return
	}

	fmt.Printf("Result: %d difference(s)\n", len(diffs))
	for _, diff := range diffs {
		fmt.Printf("  %s\n", diff)
	}
	os.Exit(1)
}

func generateAndFetch(client *http.Client, base, week, token string) ([]string, error) {
	payload, err := json.Marshal(map[string]string{"week": week, "scope": "all"})
	if err != nil {
		return nil, err
	}
	if err := do(client, http.MethodPost, base, "/api/timetable/generate", token, payload, nil); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	var resp envelope
	if err := do(client, http.MethodGet, base, "/api/timetable/week/"+week, token, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch week: %w", err)
	}
	return projectPlacements(resp.Data), nil
}

func do(client *http.Client, method, base, path, token string, payload []byte, out interface{}) error {
	url := strings.TrimRight(base, "/") + path
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

// projectPlacements flattens every session onto a comparable key, sorted
// so list order differences between runs do not register as diffs.
func projectPlacements(views []timetableView) []string {
	keys := make([]string, 0)
	for _, view := range views {
		for _, session := range view.Sessions {
			groups := append([]string(nil), session.GroupIDs...)
			sort.Strings(groups)
			keys = append(keys, fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%d",
				view.Timetable.GroupID, session.SubjectID, session.TeacherID, session.RoomID,
				strings.Join(groups, ","), session.Day, session.StartSlotIndex, session.SlotCount))
		}
	}
	sort.Strings(keys)
	return keys
}

func diffPlacements(a, b []string) []string {
	counts := make(map[string]int)
	for _, key := range a {
		counts[key]++
	}
	for _, key := range b {
		counts[key]--
	}

	diffs := make([]string, 0)
	for key, count := range counts {
		switch {
		case count > 0:
			diffs = append(diffs, fmt.Sprintf("only in run 1: %s", key))
		case count < 0:
			diffs = append(diffs, fmt.Sprintf("only in run 2: %s", key))
		}
	}
	sort.Strings(diffs)
	return diffs
}
