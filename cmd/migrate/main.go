package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"gammastack/adapters/ledger"
	"gammastack/adapters/ogip"
	"gammastack/adapters/serialization"
	"gammastack/domain/core"
	"gammastack/domain/dataset"
	"gammastack/domain/run"
	"gammastack/ports"
)

const codeVersion = "gammastack-0.3.0"

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <driver> <dsn> [collections_dir]")
	}

	driver := os.Args[1]
	dsn := os.Args[2]
	ctx := context.Background()

	db, err := ledger.Open(ctx, driver, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to ledger: %v", err)
	}
	defer db.Close()

	migrator := ledger.NewMigrator(db)
	pending, err := migrator.Pending(ctx)
	if err != nil {
		log.Fatalf("Failed to list pending migrations: %v", err)
	}
	log.Printf("Applying %d pending migrations %v", len(pending), pending)
	if err := migrator.Up(ctx); err != nil {
		log.Fatalf("Failed to migrate ledger: %v", err)
	}

	if len(os.Args) < 4 {
		log.Printf("Ledger is up to date")
		return
	}

	collectionsDir := os.Args[3]
	files, err := findCollectionFiles(collectionsDir)
	if err != nil {
		log.Fatalf("Failed to find collection files: %v", err)
	}
	log.Printf("Found %d collections to import from %s", len(files), collectionsDir)

	repo := ledger.NewRepository(db)
	serializer := serialization.NewSerializer(ogip.NewRepository())

	imported := 0
	skipped := 0
	for _, file := range files {
		runID, err := importCollection(ctx, repo, serializer, file)
		if err != nil {
			log.Printf("Failed to import %s: %v", file, err)
			skipped++
			continue
		}
		imported++
		log.Printf("Imported %s as run %s", file, runID)
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

// findCollectionFiles returns every datasets index below dir
func findCollectionFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && filepath.Base(path) == "datasets.yaml" {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

// importCollection records the manifest and info table of one collection
func importCollection(ctx context.Context, repo ports.LedgerPort, serializer *serialization.Serializer, file string) (run.ID, error) {
	ds, err := serializer.ReadDatasets(ctx, file, "")
	if err != nil {
		return "", err
	}

	inputs := make([][]float64, 0, ds.Len())
	for _, d := range ds.All() {
		if onoff, ok := d.(*dataset.SpectrumDatasetOnOff); ok && onoff.Counts != nil {
			inputs = append(inputs, onoff.Counts.Data)
		}
	}
	m := run.NewManifest(run.KindImport, ds.Names(), inputs, core.NewHash([]byte(file)), 0, codeVersion)
	if err := repo.RecordManifest(ctx, m); err != nil {
		return "", err
	}

	rows, err := ds.InfoTable(false)
	if err != nil {
		return "", err
	}
	if err := repo.RecordInfo(ctx, m.RunID, rows); err != nil {
		return "", err
	}
	return m.RunID, nil
}
