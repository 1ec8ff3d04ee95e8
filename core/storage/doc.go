// Package storage mirrors catalog snapshots to S3-compatible object storage.
//
// It wraps the MinIO Go client behind the Client interface so the mirror can
// be tested with the mocks in core/storage/mocks, and works against AWS S3 and
// self-hosted MinIO alike.
//
// # Layout
//
//	<prefix>/latest.json                     overwritten on every publish
//	<prefix>/snapshots/<UTC timestamp>.json  pruned to keep_snapshots
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	mirror := storage.NewMirror(client, cfg.Storage, nil, log)
//	err = mirror.Publish(ctx, snapshotBytes)
//	data, err := mirror.Restore(ctx)
package storage
