// Package main prints the contents of a local cache directory: entry counts
// per collection, pending writes, and optionally every value of one
// collection.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/sleepwell/sleepwell-server/internal/sync"
)

func main() {
	path := flag.String("path", os.Getenv("CACHE_PATH"), "Cache directory")
	collection := flag.String("collection", "", "Dump every value of this collection")
	flag.Parse()

	if *path == "" {
		*path = os.ExpandEnv("$HOME/SleepWell/cache")
	}

	opts := badger.DefaultOptions(*path).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Cache Inspection ===")
	fmt.Println()

	counts := make(map[string]int)
	sizes := make(map[string]int64)
	var pending []string

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())

			name, id, ok := strings.Cut(key, ":")
			if !ok {
				continue
			}
			counts[name]++
			sizes[name] += int64(len(item.Key())) + item.ValueSize()

			if name == sync.PendingCollection {
				pending = append(pending, id)
			}

			if *collection == "" || name != *collection {
				continue
			}
			err := item.Value(func(val []byte) error {
				var out bytes.Buffer
				if err := json.Indent(&out, val, "  ", "  "); err != nil {
					fmt.Printf("%s\n  (not JSON, %d bytes)\n", id, len(val))
					return nil
				}
				fmt.Printf("%s\n  %s\n", id, out.String())
				return nil
			})
			if err != nil {
				log.Printf("Error reading %s: %v", key, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating cache: %v", err)
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println()
	fmt.Println("=== Summary ===")
	var total int64
	for _, name := range names {
		fmt.Printf("%-14s %6d entries %10d bytes\n", name, counts[name], sizes[name])
		total += sizes[name]
	}
	fmt.Printf("Total size: %d bytes\n", total)

	if len(pending) > 0 {
		sort.Strings(pending)
		fmt.Println()
		fmt.Printf("Pending writes (%d):\n", len(pending))
		for _, key := range pending {
			fmt.Printf("  %s\n", key)
		}
	}
}
