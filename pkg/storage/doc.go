// Package storage archives follow-graph snapshots on disk.
//
// Each snapshot is written as indented JSON under
// <output_dir>/<username>/<timestamp>_<scrape id>.json using a temporary
// file and rename, so a crash never leaves a truncated archive behind.
// Archived snapshots feed offline analysis such as mutual ranking.
//
// Usage:
//
//	manager, err := storage.NewManager("snapshots")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	path, err := manager.Save(snapshot, scrape.ScrapeID, scrape.ScrapeTS)
package storage
