package observation

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xenocomm/coordinator/internal/model"
)

// ReadFlowLog scans every flows_*.jsonl[.gz] file in dir in name order
// (which, given the timestamp+seq naming in NewFileSink, is chronological)
// and returns events matching the optional since/flowType filters.
func ReadFlowLog(dir string, since time.Time, flowType string) ([]model.FlowEvent, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("observation: read persistence dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), "flows_") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var out []model.FlowEvent
	for _, name := range names {
		events, err := readFlowFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if !since.IsZero() && e.Timestamp.Before(since) {
				continue
			}
			if flowType != "" && e.FlowType != flowType {
				continue
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func readFlowFile(path string) ([]model.FlowEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("observation: open flow log %s: %w", path, err)
	}
	defer f.Close()

	var scanner *bufio.Scanner
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("observation: open gzip flow log %s: %w", path, err)
		}
		defer gz.Close()
		scanner = bufio.NewScanner(gz)
	} else {
		scanner = bufio.NewScanner(f)
	}
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var events []model.FlowEvent
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e model.FlowEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("observation: parse flow log %s: %w", path, err)
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}
