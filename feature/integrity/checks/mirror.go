package checks

import (
	"context"
	"errors"
	"fmt"

	"catalog-sync/core/catalog"
	"catalog-sync/core/storage"

	"go.uber.org/zap"
)

// MirrorReport describes the published copy of the catalog.
type MirrorReport struct {
	Bucket        string `json:"bucket"`
	Latest        string `json:"latest"`
	BucketExists  bool   `json:"bucket_exists"`
	LatestPresent bool   `json:"latest_present"`
	LatestValid   bool   `json:"latest_valid"`
	Records       int    `json:"records"`
	Snapshots     int    `json:"snapshots"`
	Status        string `json:"status"` // "ok", "issues"
}

// Healthy reports whether the mirror needs no repair.
func (r *MirrorReport) Healthy() bool {
	return r.Status == "ok"
}

// CheckMirror verifies that the bucket exists and holds a readable latest snapshot.
func CheckMirror(ctx context.Context, client storage.Client, mirror *storage.Mirror) (*MirrorReport, error) {
	report := &MirrorReport{
		Bucket: mirror.Bucket(),
		Latest: mirror.LatestObject(),
		Status: "issues",
	}

	exists, err := client.BucketExists(ctx, mirror.Bucket())
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	report.BucketExists = exists
	if !exists {
		return report, nil
	}

	data, err := mirror.Restore(ctx)
	if err != nil {
		return nil, err
	}
	report.LatestPresent = data != nil
	if report.LatestPresent {
		records, err := catalog.Decode(data)
		report.LatestValid = err == nil
		report.Records = len(records)
	}

	snapshots, err := mirror.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	report.Snapshots = len(snapshots)

	if report.LatestValid {
		report.Status = "ok"
	}
	return report, nil
}

// FixMirror creates the bucket and publishes the local snapshot when the
// mirror holds no readable copy.
func FixMirror(ctx context.Context, mirror *storage.Mirror, store *catalog.SnapshotStore, logger *zap.Logger) error {
	if err := mirror.Ensure(ctx); err != nil {
		logger.Error("Failed to create mirror bucket", zap.String("bucket", mirror.Bucket()), zap.Error(err))
		return err
	}

	data, err := store.Bytes()
	if err != nil {
		return err
	}
	if data == nil {
		if data, err = catalog.Encode(nil); err != nil {
			return err
		}
	} else if _, err := catalog.Decode(data); err != nil {
		return errors.New("local snapshot is corrupt, run a dedupe or a rescan before publishing")
	}

	if err := mirror.Publish(ctx, data); err != nil {
		logger.Error("Failed to publish snapshot", zap.Error(err))
		return err
	}
	logger.Info("Published local snapshot to mirror", zap.String("object", mirror.LatestObject()))
	return nil
}
