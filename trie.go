// Package libtrie is the frontend over the two compaction schemes: pick
// a variant, bulk-load it from a text source or build it programmatically,
// then serialise and reopen it as an immutable archive.
package libtrie

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jianingy/libtrie/archive"
	"github.com/jianingy/libtrie/internal/dat"
	"github.com/jianingy/libtrie/tailtrie"
	"github.com/jianingy/libtrie/twotrie"
)

// Kind selects a compaction scheme at construction time.
type Kind int

const (
	// KindTail is the single-trie-with-tail-buffer scheme.
	KindTail Kind = iota + 1
	// KindTwo is the front/rear double-trie scheme.
	KindTwo
)

// DefaultInitialSize is the state-table size new tries start with when
// the caller doesn't have a better estimate.
const DefaultInitialSize = 4096

// Pair is one (key, value) result of a prefix search.
type Pair = dat.Pair

// Trie is the variant-agnostic surface every compaction scheme
// implements: build once, then insert, search, and archive.
type Trie interface {
	Insert(key []byte, value int32)
	Search(key []byte) (int32, bool)
	PrefixSearch(prefix []byte) []Pair
	Build(path string) error
}

type tailAdapter struct{ t *tailtrie.Trie }

func (a tailAdapter) Insert(key []byte, value int32)    { a.t.Insert(key, value) }
func (a tailAdapter) Search(key []byte) (int32, bool)   { return a.t.Search(key) }
func (a tailAdapter) PrefixSearch(prefix []byte) []Pair { return a.t.PrefixSearch(prefix) }
func (a tailAdapter) Build(path string) error           { return archive.WriteTail(path, a.t) }

type twoAdapter struct{ t *twotrie.Trie }

func (a twoAdapter) Insert(key []byte, value int32)    { a.t.Insert(key, value) }
func (a twoAdapter) Search(key []byte) (int32, bool)   { return a.t.Search(key) }
func (a twoAdapter) PrefixSearch(prefix []byte) []Pair { return a.t.PrefixSearch(prefix) }
func (a twoAdapter) Build(path string) error           { return archive.WriteTwo(path, a.t) }

// New creates an empty trie of the given kind.
func New(kind Kind, initialSize int32) Trie {
	switch kind {
	case KindTail:
		return tailAdapter{tailtrie.New(initialSize)}
	case KindTwo:
		return twoAdapter{twotrie.New(initialSize)}
	default:
		panic("libtrie: unknown trie kind")
	}
}

// Open memory-maps an archive and dispatches on its magic to the
// variant that built it.
func Open(path string) (Trie, error) {
	kind, tail, two, err := archive.Load(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case archive.KindTail:
		return tailAdapter{tail}, nil
	case archive.KindTwo:
		return twoAdapter{two}, nil
	default:
		return nil, &archive.Error{Path: path, Err: errors.New("unrecognised archive kind")}
	}
}

// SourceError is bad-trie-source: a malformed or unreadable line in a
// text source given to ReadFromText.
type SourceError struct {
	Path string
	Line int
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("bad-trie-source: %s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ReadFromText bulk-loads tr from a text source: one "<value> <key>"
// record per line, the key running to end of line. If verbose, progress
// is written to out: a dot every 500 lines, the running count every
// 1500.
func ReadFromText(tr Trie, path string, verbose bool, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return &SourceError{Path: path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		sp := strings.IndexByte(text, ' ')
		if sp < 0 {
			return &SourceError{Path: path, Line: line, Err: errors.New("missing value/key separator")}
		}
		value, err := strconv.Atoi(text[:sp])
		if err != nil {
			return &SourceError{Path: path, Line: line, Err: err}
		}
		key := text[sp+1:]
		if key == "" {
			return &SourceError{Path: path, Line: line, Err: errors.New("empty key")}
		}
		tr.Insert([]byte(key), int32(value))

		if verbose && out != nil {
			if line%500 == 0 {
				fmt.Fprint(out, ".")
			}
			if line%1500 == 0 {
				fmt.Fprintf(out, "%d\n", line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return &SourceError{Path: path, Line: line, Err: err}
	}
	if verbose && out != nil {
		fmt.Fprintf(out, "\n%d records\n", line)
	}
	return nil
}
