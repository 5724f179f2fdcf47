// Copyright 2026 The Plangate Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ListFiles returns the audit files in dir, oldest day first. A missing
// directory yields no files and no error.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// ReadDir reads every event in dir with a timestamp at or after since, in
// file order. Unparseable lines are skipped.
func ReadDir(dir string, since time.Time) ([]Event, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}

	var out []Event
	for _, path := range files {
		if !since.IsZero() && fileDay(path).Before(truncateDay(since)) {
			continue
		}
		events, _, err := ReadEventsFromOffset(path, 0)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if since.IsZero() || !e.Timestamp.Before(since) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// fileDay parses the day from an audit file name. Unparseable names map to
// the zero time so they are never skipped.
func fileDay(path string) time.Time {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), FilePrefix), FileSuffix)
	day, err := time.Parse("2006-01-02", name)
	if err != nil {
		return time.Time{}
	}
	return day
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ReadEventsFromOffset reads audit events from path starting at the given byte offset.
// Returns the parsed events, the new file offset, and any error.
// If the file has been truncated (offset > size), it resets to the beginning.
// Partial (unterminated) lines are not consumed: the offset stays before them
// so they can be re-read once complete.
func ReadEventsFromOffset(path string, offset int64) ([]Event, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("audit: stat %s: %w", path, err)
	}
	if offset > info.Size() {
		offset = 0
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("audit: seek %s: %w", path, err)
	}

	reader := bufio.NewReader(f)
	cursor := offset
	events := make([]Event, 0, 8)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, cursor, fmt.Errorf("audit: read line: %w", err)
		}

		// EOF with no data.
		if line == "" && errors.Is(err, io.EOF) {
			return events, cursor, nil
		}

		// Partial line (no trailing newline), not consumed.
		if !strings.HasSuffix(line, "\n") {
			return events, cursor, nil
		}

		cursor += int64(len(line))
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if errors.Is(err, io.EOF) {
				return events, cursor, nil
			}
			continue
		}

		var evt Event
		if unmarshalErr := json.Unmarshal([]byte(trimmed), &evt); unmarshalErr == nil {
			events = append(events, evt)
		}

		if errors.Is(err, io.EOF) {
			return events, cursor, nil
		}
	}
}
