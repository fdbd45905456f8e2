// Package layout resolves a Sora-style recording's report-*.json and the
// per-participant archive-*.json files it references into the SourceInfo
// set the compose graph is built from. Grounded on
// original_source/src/metadata.rs, which does the same two-stage lookup
// (report -> archive metadata paths -> per-archive metadata); JSON
// decoding uses encoding/json, same as every other JSON consumer in the
// teacher's own cmd/ package.
package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/media"
)

// ContainerFormat names the container an archive was recorded into.
type ContainerFormat string

const (
	ContainerWebm ContainerFormat = "webm"
	ContainerMp4  ContainerFormat = "mp4"
)

func parseContainerFormat(s string) (ContainerFormat, error) {
	switch ContainerFormat(s) {
	case ContainerWebm, ContainerMp4:
		return ContainerFormat(s), nil
	default:
		return "", fmt.Errorf("layout: unknown container format %q", s)
	}
}

// SourceInfo is what the rest of the compositor needs to know about one
// recorded participant archive.
type SourceInfo struct {
	ID              media.SourceId
	Format          ContainerFormat
	Audio           bool
	Video           bool
	StartTimestamp  time.Duration
	StopTimestamp   time.Duration
	ArchivePath     string
}

// recordingMetadata mirrors the fields this compositor reads out of a
// Sora report-*.json; fields the original report carries but this
// project doesn't use are left undecoded.
type recordingMetadata struct {
	SplitOnly bool            `json:"split_only"`
	Archives  []archiveEntry  `json:"archives"`
}

type archiveEntry struct {
	ConnectionID    string  `json:"connection_id"`
	SplitLastIndex  *string `json:"split_last_index"`
	MetadataFilename *string `json:"metadata_filename"`
}

// archiveMetadata mirrors the fields read out of a per-participant
// archive-*.json.
type archiveMetadata struct {
	ConnectionID    string `json:"connection_id"`
	Format          string `json:"format"`
	Audio           bool   `json:"audio"`
	Video           bool   `json:"video"`
	StartTimeOffset uint64 `json:"start_time_offset"`
	StopTimeOffset  uint64 `json:"stop_time_offset"`
}

// ResolveArchives reads the report-*.json at reportPath and returns the
// SourceInfo for every archive it references, relative to reportPath's
// directory. When the report is split_only, the per-archive metadata
// filenames are not recorded in the JSON and are instead derived by the
// naming convention split-archive-<connection_id>_<NNNN>.json (matching
// the original implementation's archive_metadata_paths).
func ResolveArchives(reportPath string) ([]SourceInfo, error) {
	raw, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, compositorerr.Wrap(compositorerr.IoFailure, "layout", fmt.Errorf("read report %s: %w", reportPath, err))
	}
	var report recordingMetadata
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, compositorerr.Wrap(compositorerr.InputFormat, "layout", fmt.Errorf("parse report %s: %w", reportPath, err))
	}

	paths, err := archiveMetadataPaths(report)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(reportPath)
	sources := make([]SourceInfo, 0, len(paths))
	for _, p := range paths {
		info, err := loadArchiveMetadata(filepath.Join(dir, p))
		if err != nil {
			return nil, err
		}
		sources = append(sources, info)
	}
	return sources, nil
}

func archiveMetadataPaths(report recordingMetadata) ([]string, error) {
	if !report.SplitOnly {
		paths := make([]string, 0, len(report.Archives))
		for _, a := range report.Archives {
			if a.MetadataFilename != nil {
				paths = append(paths, *a.MetadataFilename)
			}
		}
		return paths, nil
	}

	var paths []string
	for _, a := range report.Archives {
		if a.SplitLastIndex == nil {
			return nil, compositorerr.Newf(compositorerr.InputFormat, "layout", "split_only report missing split_last_index for connection %q", a.ConnectionID)
		}
		var lastIndex int
		if _, err := fmt.Sscanf(*a.SplitLastIndex, "%d", &lastIndex); err != nil {
			return nil, compositorerr.Wrap(compositorerr.InputFormat, "layout", fmt.Errorf("parse split_last_index for %q: %w", a.ConnectionID, err))
		}
		for i := 1; i <= lastIndex; i++ {
			paths = append(paths, fmt.Sprintf("split-archive-%s_%04d.json", a.ConnectionID, i))
		}
	}
	return paths, nil
}

func loadArchiveMetadata(path string) (SourceInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SourceInfo{}, compositorerr.Wrap(compositorerr.IoFailure, "layout", fmt.Errorf("read archive metadata %s: %w", path, err))
	}
	var m archiveMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return SourceInfo{}, compositorerr.Wrap(compositorerr.InputFormat, "layout", fmt.Errorf("parse archive metadata %s: %w", path, err))
	}
	format, err := parseContainerFormat(m.Format)
	if err != nil {
		return SourceInfo{}, compositorerr.Wrap(compositorerr.InputFormat, "layout", err)
	}

	ext := ".webm"
	if format == ContainerMp4 {
		ext = ".mp4"
	}
	dir := filepath.Dir(path)
	archivePath := filepath.Join(dir, "archive-"+m.ConnectionID+ext)

	return SourceInfo{
		ID:             media.SourceId(m.ConnectionID),
		Format:         format,
		Audio:          m.Audio,
		Video:          m.Video,
		StartTimestamp: time.Duration(m.StartTimeOffset) * time.Second,
		StopTimestamp:  time.Duration(m.StopTimeOffset) * time.Second,
		ArchivePath:    archivePath,
	}, nil
}
