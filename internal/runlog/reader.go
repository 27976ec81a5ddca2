package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ReadRecords parses all JSON records out of a run log. Start lines and
// forwarded child output are skipped; the log is a mixed stream and only
// lines that decode as records count.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.StartTime.IsZero() {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run log %s: %w", path, err)
	}
	return records, nil
}
