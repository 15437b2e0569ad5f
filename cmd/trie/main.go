// Command trie builds, queries, and inspects double-array trie archives.
//
// -b builds an archive from a text source, -q looks up a single key,
// -p together with -q lists keys under the -q prefix, and without -q it
// drops into an interactive query loop.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"

	"github.com/jianingy/libtrie"
)

func main() {
	var (
		build   = flag.String("b", "", "build an archive from the text source at `path`")
		query   = flag.String("q", "", "look up `key` and print its value")
		prefix  = flag.Bool("p", false, "treat the -q key as a prefix and list everything under it")
		kind    = flag.Int("t", 2, "trie `type` to build: 1=tail, 2=two")
		verbose = flag.Bool("v", false, "print progress while building")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "trie: missing archive path")
		usage()
		os.Exit(2)
	}
	archivePath := args[0]

	if *build != "" {
		if err := runBuild(*build, archivePath, *kind, *verbose); err != nil {
			fatal(err)
		}
		return
	}

	tr, err := libtrie.Open(archivePath)
	if err != nil {
		fatal(err)
	}

	switch {
	case *query != "" && *prefix:
		runPrefix(tr, *query)
	case *query != "":
		runQuery(tr, *query)
	default:
		runRepl(tr)
	}
}

func runBuild(sourcePath, archivePath string, kindFlag int, verbose bool) error {
	kind := libtrie.KindTwo
	if kindFlag == 1 {
		kind = libtrie.KindTail
	}
	tr := libtrie.New(kind, libtrie.DefaultInitialSize)
	if err := libtrie.ReadFromText(tr, sourcePath, verbose, os.Stderr); err != nil {
		return err
	}
	return tr.Build(archivePath)
}

func runQuery(tr libtrie.Trie, key string) {
	value, ok := tr.Search([]byte(key))
	if !ok {
		fmt.Fprintf(os.Stderr, "%s not found\n", key)
		os.Exit(1)
	}
	fmt.Println(value)
}

func runPrefix(tr libtrie.Trie, prefix string) {
	for _, p := range tr.PrefixSearch([]byte(prefix)) {
		fmt.Printf("%d %s\n", p.Value, p.Key)
	}
}

func runRepl(tr libtrie.Trie) {
	rl, err := readline.New("trie> ")
	if err != nil {
		fatal(err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fatal(err)
		}
		if line == "" {
			continue
		}
		if value, ok := tr.Search([]byte(line)); ok {
			fmt.Printf("%d\n", value)
			continue
		}
		matches := tr.PrefixSearch([]byte(line))
		if len(matches) == 0 {
			fmt.Println("not found")
			continue
		}
		for _, p := range matches {
			fmt.Printf("%s\t%d\n", p.Key, p.Value)
		}
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: trie [-b source | -q key [-p]] [-t type] [-v] archive")
	flag.PrintDefaults()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "trie: %v\n", err)
	os.Exit(1)
}
