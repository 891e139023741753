// Package sink writes daily KPI rollups to a partitioned object store.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/boltlab/tripmatch/internal/core/trip"
)

// ErrNoPartition is returned when a partition has not been written yet.
var ErrNoPartition = errors.New("no metrics partition for date")

const partitionFileName = "daily_metrics.json"

// Sink is the write contract of the metrics output store. The key is
// derived deterministically from the date and writes have overwrite
// semantics, so re-running a day replaces the prior output.
type Sink interface {
	WritePartition(ctx context.Context, date string, metrics *trip.DailyMetrics) error
}

// Reader serves the query surface from previously written partitions.
type Reader interface {
	ReadPartition(ctx context.Context, date string) (*trip.DailyMetrics, error)
}

// FileSystem implements Sink and Reader on a local directory laid out as
// an object store: root/metrics/{YYYY}/{MM}/{DD}/daily_metrics.json.
type FileSystem struct {
	rootDir string
}

// NewFileSystem creates a filesystem sink rooted at rootDir.
func NewFileSystem(rootDir string) *FileSystem {
	return &FileSystem{rootDir: rootDir}
}

// WritePartition writes one day's metrics, replacing any prior output.
// The write goes through a temp file and a rename so a crashed run never
// leaves a truncated partition behind, and recomputing an unchanged day
// yields a byte-identical file.
func (f *FileSystem) WritePartition(_ context.Context, date string, metrics *trip.DailyMetrics) error {
	dir, err := f.partitionDir(date)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}

	payload, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal daily metrics: %w", err)
	}
	payload = append(payload, '\n')

	tmp, err := os.CreateTemp(dir, partitionFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp partition file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write partition file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close partition file: %w", err)
	}

	target := filepath.Join(dir, partitionFileName)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish partition file: %w", err)
	}

	slog.Info("[Sink] Wrote metrics partition", "date", date, "path", target)
	return nil
}

// ReadPartition loads one day's metrics, or ErrNoPartition.
func (f *FileSystem) ReadPartition(_ context.Context, date string) (*trip.DailyMetrics, error) {
	dir, err := f.partitionDir(date)
	if err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(filepath.Join(dir, partitionFileName))
	if os.IsNotExist(err) {
		return nil, ErrNoPartition
	}
	if err != nil {
		return nil, fmt.Errorf("read partition file: %w", err)
	}

	var metrics trip.DailyMetrics
	if err := json.Unmarshal(payload, &metrics); err != nil {
		return nil, fmt.Errorf("decode partition file: %w", err)
	}
	return &metrics, nil
}

// partitionDir maps a date to its year/month/day hierarchy.
func (f *FileSystem) partitionDir(date string) (string, error) {
	if !trip.ValidDate(date) {
		return "", fmt.Errorf("invalid partition date %q", date)
	}
	parts := strings.SplitN(date, "-", 3)
	return filepath.Join(f.rootDir, "metrics", parts[0], parts[1], parts[2]), nil
}
