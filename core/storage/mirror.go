package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

const (
	latestObject    = "latest.json"
	snapshotsFolder = "snapshots"
	timestampLayout = "20060102T150405.000000000Z"
)

// Mirror copies catalog snapshots to a bucket: a latest.json that is always
// overwritten plus timestamped copies under snapshots/ that are pruned.
type Mirror struct {
	client Client
	bucket string
	prefix string
	keep   int
	clock  clock.PassiveClock
	logger *zap.Logger
}

// NewMirror creates a Mirror for cfg.Bucket and cfg.Prefix.
func NewMirror(client Client, cfg Config, clk clock.PassiveClock, logger *zap.Logger) *Mirror {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		keep:   cfg.KeepSnapshots,
		clock:  clk,
		logger: logger,
	}
}

// Bucket returns the bucket name.
func (m *Mirror) Bucket() string {
	return m.bucket
}

func (m *Mirror) object(parts ...string) string {
	if m.prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{m.prefix}, parts...)...)
}

// Name returns the bucket and object of the latest snapshot.
func (m *Mirror) Name() string {
	return m.bucket + "/" + m.LatestObject()
}

// LatestObject returns the object name of the latest snapshot.
func (m *Mirror) LatestObject() string {
	return m.object(latestObject)
}

// Ensure creates the bucket when it does not exist.
func (m *Mirror) Ensure(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}
	m.logger.Info("Created mirror bucket", zap.String("bucket", m.bucket))
	return nil
}

// Publish uploads data as the latest snapshot and as a timestamped copy, then
// prunes old copies.
func (m *Mirror) Publish(ctx context.Context, data []byte) error {
	stamp := m.clock.Now().UTC().Format(timestampLayout)
	for _, name := range []string{m.LatestObject(), m.object(snapshotsFolder, stamp+".json")} {
		if err := m.put(ctx, name, data); err != nil {
			return err
		}
	}
	if err := m.prune(ctx); err != nil {
		m.logger.Warn("Failed to prune mirrored snapshots", zap.Error(err))
	}
	return nil
}

func (m *Mirror) put(ctx context.Context, name string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

// Restore downloads the latest snapshot. It returns nil when none was published.
func (m *Mirror) Restore(ctx context.Context) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.LatestObject(), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to download %s: %w", m.LatestObject(), err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", m.LatestObject(), err)
	}
	return data, nil
}

// Snapshots lists the timestamped snapshot objects, oldest first.
func (m *Mirror) Snapshots(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    m.object(snapshotsFolder) + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", obj.Err)
		}
		names = append(names, obj.Key)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Mirror) prune(ctx context.Context) error {
	if m.keep <= 0 {
		return nil
	}
	names, err := m.Snapshots(ctx)
	if err != nil {
		return err
	}
	if len(names) <= m.keep {
		return nil
	}
	stale := names[:len(names)-m.keep]

	objects := make(chan minio.ObjectInfo, len(stale))
	for _, name := range stale {
		objects <- minio.ObjectInfo{Key: name}
	}
	close(objects)

	for rerr := range m.client.RemoveObjects(ctx, m.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return fmt.Errorf("failed to remove %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	m.logger.Debug("Pruned mirrored snapshots", zap.Int("removed", len(stale)))
	return nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
