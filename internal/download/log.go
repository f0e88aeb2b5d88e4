package download

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowloom/flowloom/internal/logging"
)

// separatorLine delimits records in the on-disk log format (spec §6): an
// exact line of 40 '='.
const separatorLine = "========================================" // 40 '='

// DownloadLog is the on-disk, chronologically sorted harvest record (C6).
// All mutation goes through Insert, which rewrites the whole file via a
// temp-file rename so concurrent readers never see a partial write (spec
// §5, "read-modify-written atomically via a temp-file rename").
type DownloadLog struct {
	mu      sync.Mutex
	path    string
	entries []Entry // sorted descending by parsed creation time
	index   *sqliteIndex
	logger  *logging.Logger
}

// Load reads path (creating an empty log if it does not yet exist) and
// rebuilds the duplicate index from its contents. indexPath is the sqlite
// side-car file; pass "" to keep the index purely in-memory.
func Load(path, indexPath string, logger *logging.Logger) (*DownloadLog, error) {
	l := &DownloadLog{path: path, logger: logger}

	body, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read download log: %w", err)
		}
		body = nil
	}

	entries, err := parseEntries(body, logger)
	if err != nil {
		return nil, err
	}
	l.entries = entries
	sortDescending(l.entries)

	if indexPath != "" {
		idx, err := openIndex(indexPath)
		if err != nil {
			return nil, err
		}
		l.index = idx
	} else {
		l.index = nil
	}
	if l.index != nil {
		if err := l.index.rebuild(l.entries); err != nil {
			return nil, fmt.Errorf("rebuild duplicate index: %w", err)
		}
	}

	return l, nil
}

// parseEntries parses the four-line-record text format, dropping any
// record that doesn't carry all four lines (spec §4.5 corruption recovery).
func parseEntries(body []byte, logger *logging.Logger) ([]Entry, error) {
	if len(body) == 0 {
		return nil, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan download log: %w", err)
	}

	var entries []Entry
	for i := 0; i < len(lines); {
		remaining := len(lines) - i
		if remaining < 4 {
			if logger != nil && remaining > 0 {
				logger.Warn("dropping incomplete trailing download-log record", map[string]any{"lines": remaining})
			}
			break
		}
		id, dateLine, prompt, sep := lines[i], lines[i+1], lines[i+2], lines[i+3]
		i += 4

		if sep != separatorLine {
			if logger != nil {
				logger.Warn("dropping malformed download-log record (bad separator)", map[string]any{"id": id})
			}
			continue
		}

		parsed, err := ParseDateTime(dateLine)
		if err != nil {
			if logger != nil {
				logger.Warn("dropping download-log record with unparsable creation_time", map[string]any{"id": id, "creation_time": dateLine})
			}
			continue
		}

		entries = append(entries, Entry{
			FileID:       id,
			CreationTime: FormatCanonical(parsed),
			Prompt:       prompt,
			parsed:       parsed,
		})
	}

	return entries, nil
}

func sortDescending(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].parsed.After(entries[j].parsed)
	})
}

// IsDuplicate reports whether (creationTime, prompt) already has an entry,
// keyed only by (creationTime, prompt[:100]) (spec testable property #6).
func (l *DownloadLog) IsDuplicate(creationTime, prompt string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := newDuplicateKey(creationTime, prompt)
	if l.index != nil {
		if found, err := l.index.has(key); err == nil {
			return found
		}
	}
	for _, e := range l.entries {
		if newDuplicateKey(e.CreationTime, e.Prompt) == key {
			return true
		}
	}
	return false
}

// Insert adds entry in sorted-descending position and atomically rewrites
// the backing file (spec §4.5). If entry.CreationTime fails to parse, the
// entry is placed at the head of the list (given the current head entry's
// time, or "now" when the log is empty) and a warning is logged, rather
// than rejected.
func (l *DownloadLog) Insert(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	parsed, err := ParseDateTime(entry.CreationTime)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("download-log insert: unparsable creation_time, appending to head", map[string]any{"creation_time": entry.CreationTime})
		}
		parsed = mostRecent(l.entries)
	} else {
		entry.CreationTime = FormatCanonical(parsed)
	}
	entry.Prompt = strings.ReplaceAll(entry.Prompt, "\n", " ")
	entry.parsed = parsed

	idx := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].parsed.Before(parsed) || l.entries[i].parsed.Equal(parsed)
	})
	l.entries = append(l.entries, Entry{})
	copy(l.entries[idx+1:], l.entries[idx:])
	l.entries[idx] = entry

	if l.index != nil {
		if err := l.index.add(newDuplicateKey(entry.CreationTime, entry.Prompt), entry.FileID); err != nil {
			return fmt.Errorf("update duplicate index: %w", err)
		}
	}

	return l.writeLocked()
}

func mostRecent(entries []Entry) time.Time {
	if len(entries) == 0 {
		return time.Now()
	}
	return entries[0].parsed
}

// Count returns the number of entries currently held.
func (l *DownloadLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// IterAll returns a defensive copy of all entries, newest first (spec
// testable property #5).
func (l *DownloadLog) IterAll() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// HeadEntry returns the newest entry, if any.
func (l *DownloadLog) HeadEntry() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[0], true
}

// Close releases the side-car index, if one is open.
func (l *DownloadLog) Close() error {
	if l.index != nil {
		return l.index.close()
	}
	return nil
}

// writeLocked rewrites the entire backing file via a temp-file rename,
// called with l.mu already held.
func (l *DownloadLog) writeLocked() error {
	if l.path == "" {
		return nil
	}

	var b strings.Builder
	for _, e := range l.entries {
		fmt.Fprintf(&b, "%s\n%s\n%s\n%s\n", e.FileID, e.CreationTime, e.Prompt, separatorLine)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".download-log-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp download log: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp download log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp download log: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp download log: %w", err)
	}
	return nil
}
