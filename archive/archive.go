// Package archive serialises a built trie to a single file and loads it
// back by memory-mapping it read-only.
//
// Every field is written and read explicitly in little-endian, at the
// cost of one decode pass over the mapping rather than a zero-copy
// struct overlay, so archives stay portable across hosts.
package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/jianingy/libtrie/internal/dat"
	"github.com/jianingy/libtrie/internal/symbol"
	"github.com/jianingy/libtrie/tailtrie"
	"github.com/jianingy/libtrie/twotrie"
)

const magicSize = 16

const (
	tailMagic = "TAIL_TRIE"
	twoMagic  = "TWO_TRIE"
)

// Kind identifies which compaction scheme an archive holds.
type Kind int

const (
	// KindTail is the single-trie-with-tail-buffer scheme.
	KindTail Kind = iota + 1
	// KindTwo is the front/rear double-trie scheme.
	KindTwo
)

// Error is bad-trie-archive: the file could not be opened, was
// truncated, or its magic did not match a known variant.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bad-trie-archive: %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func padMagic(s string) [magicSize]byte {
	var b [magicSize]byte
	copy(b[:], s)
	return b
}

// WriteTail serialises a TAIL-variant trie to path.
func WriteTail(path string, tr *tailtrie.Trie) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &Error{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := &errWriter{w: f}
	magic := padMagic(tailMagic)
	w.write(magic[:])

	suffix := tr.Suffix()
	w.writeValue(int32(len(suffix)))
	var reserved [44]byte
	w.write(reserved[:])
	for _, sym := range suffix {
		w.writeValue(sym)
	}

	writeBasicTrie(w, tr.Trie())

	if err = w.err; err != nil {
		return &Error{Path: path, Err: err}
	}
	return nil
}

// WriteTwo serialises a TWO-variant trie to path.
func WriteTwo(path string, tr *twotrie.Trie) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &Error{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := &errWriter{w: f}
	magic := padMagic(twoMagic)
	w.write(magic[:])

	index := tr.Index()
	accept := tr.Accept()
	w.writeValue(int32(len(index)))
	w.writeValue(int32(len(accept)))
	var reserved [40]byte
	w.write(reserved[:])
	for _, e := range index {
		w.writeValue(e.Data)
		w.writeValue(e.Index)
	}
	for _, e := range accept {
		w.writeValue(e.Accept)
	}

	writeBasicTrie(w, tr.Front())
	writeBasicTrie(w, tr.Rear())

	if err = w.err; err != nil {
		return &Error{Path: path, Err: err}
	}
	return nil
}

// errWriter accumulates the first error across a sequence of writes, so
// callers can check it once at the end instead of after every field.
type errWriter struct {
	w   io.Writer
	err error
}

func (w *errWriter) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

func (w *errWriter) writeValue(v interface{}) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func writeBasicTrie(w *errWriter, tr *dat.Trie) {
	size := tr.MaxState() + 1
	w.writeValue(size)
	var reserved [60]byte
	w.write(reserved[:])
	states := tr.States()
	for i := int32(0); i < size; i++ {
		w.writeValue(states[i].Base)
		w.writeValue(states[i].Check)
	}
}

// Load opens path, memory-maps it read-only, and decodes whichever
// variant its magic names.
func Load(path string) (Kind, *tailtrie.Trie, *twotrie.Trie, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, nil, &Error{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, nil, nil, &Error{Path: path, Err: err}
	}
	size := info.Size()
	if size < magicSize {
		return 0, nil, nil, &Error{Path: path, Err: errors.New("truncated archive")}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return 0, nil, nil, &Error{Path: path, Err: err}
	}
	defer unix.Munmap(data)

	switch string(bytes.TrimRight(data[:magicSize], "\x00")) {
	case tailMagic:
		tr, err := decodeTail(path, data)
		if err != nil {
			return 0, nil, nil, err
		}
		return KindTail, tr, nil, nil
	case twoMagic:
		tr, err := decodeTwo(path, data)
		if err != nil {
			return 0, nil, nil, err
		}
		return KindTwo, nil, tr, nil
	default:
		return 0, nil, nil, &Error{Path: path, Err: errors.New("magic mismatch")}
	}
}

type errReader struct {
	r   *bytes.Reader
	err error
}

func (r *errReader) skip(n int64) {
	if r.err != nil {
		return
	}
	_, r.err = r.r.Seek(n, io.SeekCurrent)
}

func (r *errReader) readValue(v interface{}) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.r, binary.LittleEndian, v)
}

func decodeBasicTrie(r *errReader) *dat.Trie {
	var size int32
	r.readValue(&size)
	r.skip(60)
	if r.err != nil || size <= 0 {
		return dat.New(0)
	}
	states := make([]dat.State, size)
	for i := range states {
		r.readValue(&states[i].Base)
		r.readValue(&states[i].Check)
	}
	return dat.NewFromStates(states, size-1)
}

func decodeTail(path string, data []byte) (*tailtrie.Trie, error) {
	r := &errReader{r: bytes.NewReader(data)}
	r.skip(magicSize)
	var suffixSize int32
	r.readValue(&suffixSize)
	r.skip(44)
	suffix := make([]symbol.Symbol, suffixSize)
	for i := range suffix {
		r.readValue(&suffix[i])
	}
	base := decodeBasicTrie(r)
	if r.err != nil {
		return nil, &Error{Path: path, Err: r.err}
	}
	return tailtrie.FromParts(base, suffix), nil
}

func decodeTwo(path string, data []byte) (*twotrie.Trie, error) {
	r := &errReader{r: bytes.NewReader(data)}
	r.skip(magicSize)
	var indexSize, acceptSize int32
	r.readValue(&indexSize)
	r.readValue(&acceptSize)
	r.skip(40)

	index := make([]twotrie.IndexEntry, indexSize)
	for i := range index {
		r.readValue(&index[i].Data)
		r.readValue(&index[i].Index)
	}
	accept := make([]twotrie.AcceptEntry, acceptSize)
	for i := range accept {
		r.readValue(&accept[i].Accept)
	}

	front := decodeBasicTrie(r)
	rear := decodeBasicTrie(r)
	if r.err != nil {
		return nil, &Error{Path: path, Err: r.err}
	}
	return twotrie.FromParts(front, rear, index, accept), nil
}
