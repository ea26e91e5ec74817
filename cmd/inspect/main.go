// Command inspect dumps the raw keys of a store directory, optionally
// filtered by prefix. Row keys start with "t:" and index keys with "i:",
// so "-prefix t:chats:" prints every chat row.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

func main() {
	var path, prefix string
	var values bool
	flag.StringVar(&path, "path", "", "store directory to open")
	flag.StringVar(&prefix, "prefix", "", "only print keys with this prefix")
	flag.BoolVar(&values, "values", false, "print values as well")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "-path required")
		os.Exit(2)
	}

	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer db.Close()

	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterator: %v\n", err)
		os.Exit(1)
	}
	defer iter.Close()

	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		k := string(iter.Key())
		if prefix != "" && (len(k) < len(prefix) || k[:len(prefix)] != prefix) {
			continue
		}
		if values {
			fmt.Printf("%s\t%s\n", k, iter.Value())
		} else {
			fmt.Println(k)
		}
		n++
	}
	if err := iter.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "iterate: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%d key(s)\n", n)
}
