package logs

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Entry is one log record, possibly spanning several console lines.
type Entry struct {
	Lines     []string
	Level     string
	Component string
	MovieID   string
	RunID     string
}

// Text joins the entry's lines back together.
func (e Entry) Text() string {
	return strings.Join(e.Lines, "\n")
}

// Parse groups raw log lines into entries. Console field lines ("    - key:
// value") belong to the preceding header; JSON lines are one entry each.
// Continuation lines before any header form an entry of their own.
func Parse(lines []string) []Entry {
	var entries []Entry
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isContinuation(line) && len(entries) > 0 {
			last := &entries[len(entries)-1]
			last.Lines = append(last.Lines, line)
			if key, value, ok := fieldLine(line); ok && key == "run_id" && last.RunID == "" {
				last.RunID = value
			}
			continue
		}
		if strings.HasPrefix(line, "{") {
			if entry, ok := parseJSONLine(line); ok {
				entries = append(entries, entry)
				continue
			}
		}
		entries = append(entries, parseConsoleHeader(line))
	}
	return entries
}

// Filter selects entries. Empty fields match everything.
type Filter struct {
	MinLevel  string
	Component string
	MovieID   string
	RunID     string
}

// Active reports whether any criteria are set.
func (f Filter) Active() bool {
	return f.MinLevel != "" || f.Component != "" || f.MovieID != "" || f.RunID != ""
}

// Match reports whether the entry satisfies every set criterion.
func (f Filter) Match(e Entry) bool {
	if f.MinLevel != "" && levelRank(e.Level) < levelRank(f.MinLevel) {
		return false
	}
	if f.Component != "" && !strings.EqualFold(e.Component, f.Component) {
		return false
	}
	if f.MovieID != "" && e.MovieID != f.MovieID {
		return false
	}
	if f.RunID != "" && !strings.HasPrefix(e.RunID, f.RunID) {
		return false
	}
	return true
}

// Apply returns the lines of every matching entry.
func (f Filter) Apply(lines []string) []string {
	if !f.Active() {
		return lines
	}
	var out []string
	for _, entry := range Parse(lines) {
		if f.Match(entry) {
			out = append(out, entry.Lines...)
		}
	}
	return out
}

func isContinuation(line string) bool {
	return strings.HasPrefix(line, "    - ") || strings.HasPrefix(line, "    + ")
}

func fieldLine(line string) (string, string, bool) {
	rest, ok := strings.CutPrefix(line, "    - ")
	if !ok {
		return "", "", false
	}
	key, value, ok := strings.Cut(rest, ": ")
	if !ok {
		return "", "", false
	}
	return key, strings.Trim(value, `"`), true
}

// parseConsoleHeader reads "2006-01-02 15:04:05 INFO [component] Movie #1 – msg".
func parseConsoleHeader(line string) Entry {
	entry := Entry{Lines: []string{line}}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return entry
	}
	entry.Level = strings.ToLower(fields[2])
	rest := fields[3:]
	if len(rest) > 0 && strings.HasPrefix(rest[0], "[") && strings.HasSuffix(rest[0], "]") {
		entry.Component = strings.Trim(rest[0], "[]")
		rest = rest[1:]
	}
	if len(rest) > 1 && rest[0] == "Movie" && strings.HasPrefix(rest[1], "#") {
		entry.MovieID = strings.TrimPrefix(rest[1], "#")
	}
	return entry
}

func parseJSONLine(line string) (Entry, bool) {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return Entry{}, false
	}
	return Entry{
		Lines:     []string{line},
		Level:     jsonString(record["level"]),
		Component: jsonString(record["component"]),
		MovieID:   jsonString(record["movie_id"]),
		RunID:     jsonString(record["run_id"]),
	}, true
}

func jsonString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

func levelRank(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return 0
	case "info":
		return 1
	case "warn", "warning":
		return 2
	case "error":
		return 3
	default:
		return -1
	}
}
