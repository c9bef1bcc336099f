package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	readBufferSize = 64 * 1024
	maxLineLength  = 1024 * 1024
	defaultPoll    = 250 * time.Millisecond
)

// TailResult holds the lines read and the offset just past them.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail returns up to limit trailing lines of path. A missing file yields an
// empty result. limit <= 0 returns no lines but still reports the end offset.
func Tail(path string, limit int) (TailResult, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return TailResult{}, err
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := scanLines(file, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return TailResult{}, err
	}

	lines := make([]string, count)
	if count < limit {
		copy(lines, ring[:count])
	} else {
		for i := range count {
			lines[i] = ring[(next+i)%limit]
		}
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// ReadFrom returns the complete lines written after offset. An offset past the
// end of the file (for example after truncation) restarts from the beginning.
func ReadFrom(path string, offset int64) (TailResult, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return TailResult{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	read, err := scanLines(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return TailResult{}, err
	}
	return TailResult{Lines: lines, Offset: offset + read}, nil
}

// Follow polls path from offset and hands each new batch of lines to fn until
// ctx is cancelled. A cancelled context is not reported as an error.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, fn func([]string) error) error {
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		result, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		offset = result.Offset
		if len(result.Lines) > 0 {
			if err := fn(result.Lines); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scanLines feeds every newline-terminated line to fn and returns how many
// bytes were consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, readBufferSize)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			line = trimNewline(line)
			if len(line) > maxLineLength {
				line = line[:maxLineLength]
			}
			fn(line)
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
