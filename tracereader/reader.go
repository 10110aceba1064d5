package tracereader

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Reader lazily scans a trace file one reference at a time. It never loads
// the whole file into memory, matching the teacher's preference for
// streaming file I/O over eager slurps (mem/trace readers in the pack use
// the same bufio.Scanner pattern).
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
	path    string
	lineNo  int
	done    bool
}

// Open opens path for trace reading. The caller must Close it when done.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tracereader: opening %s: %w", path, err)
	}

	return &Reader{
		file:    f,
		scanner: bufio.NewScanner(f),
		path:    path,
	}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Next returns the next valid reference in the trace, or ok=false once the
// file is exhausted. Blank lines and lines starting with '#' are skipped;
// malformed lines are logged and skipped rather than treated as an error.
func (r *Reader) Next() (ref Reference, ok bool) {
	if r.done {
		return Reference{}, false
	}

	for r.scanner.Scan() {
		r.lineNo++

		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ref, parseErr := parseLine(line)
		if parseErr != nil {
			log.Printf("tracereader: %s:%d: %v, skipping line", r.path, r.lineNo, parseErr)
			continue
		}

		return ref, true
	}

	r.done = true

	return Reference{}, false
}

func parseLine(line string) (Reference, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Reference{}, fmt.Errorf("expected 2 fields, got %d", len(fields))
	}

	kind, err := parseKind(fields[0])
	if err != nil {
		return Reference{}, err
	}

	addr, err := parseAddr(fields[1])
	if err != nil {
		return Reference{}, err
	}

	return Reference{Kind: kind, Addr: addr}, nil
}

func parseKind(tok string) (Kind, error) {
	switch tok {
	case "R", "r":
		return Read, nil
	case "W", "w":
		return Write, nil
	default:
		return 0, fmt.Errorf("unrecognized operation %q", tok)
	}
}

func parseAddr(tok string) (uint64, error) {
	base := 10

	s := tok
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	addr, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", tok, err)
	}

	return addr, nil
}
