package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"diseasepredict/internal/storage"
)

func main() {
	var dataPath = flag.String("data", "./data", "Data directory path")
	var disease = flag.String("disease", "", "Show a single disease")
	flag.Parse()

	fmt.Printf("Inspecting artifact manifest in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	var records []storage.ArtifactRecord
	if *disease != "" {
		rec, found, err := store.Get(*disease)
		if err != nil {
			log.Fatalf("Failed to read record: %v", err)
		}
		if !found {
			log.Fatalf("No artifact recorded for %s", *disease)
		}
		records = append(records, rec)
	} else {
		records, err = store.List()
		if err != nil {
			log.Fatalf("Failed to list records: %v", err)
		}
	}

	if len(records) == 0 {
		fmt.Println("No artifacts recorded yet. Start the server with DATA_PATH set.")
		return
	}

	fmt.Println()
	for _, r := range records {
		fmt.Printf("%-14s %s\n", r.Disease, r.Path)
		fmt.Printf("  sha256:     %s\n", r.SHA256)
		fmt.Printf("  size:       %d bytes, modified %s\n", r.Size, r.ModTime.Format(time.RFC3339))
		fmt.Printf("  first seen: %s\n", r.FirstSeen.Format(time.RFC3339))
		fmt.Printf("  last seen:  %s\n", r.LastSeen.Format(time.RFC3339))
	}
}
