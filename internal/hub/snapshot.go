package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"poemd/internal/common/fsutil"
)

// Progress describes snapshot download progress.
type Progress struct {
	// File currently being downloaded.
	File      string
	FileIndex int
	FileCount int
	// Completed and Total are byte counts of the current file; Total is -1
	// when the hub did not announce a length.
	Completed int64
	Total     int64
	// Fraction is the overall completion in [0, 1]; it never decreases.
	Fraction float64
}

// ProgressFunc receives progress updates on the downloading goroutine.
type ProgressFunc func(Progress)

// ErrNoMatchingFiles is returned when no repository file matches the patterns.
var ErrNoMatchingFiles = errors.New("hub: no files match patterns")

// ErrUnsafeFileName is returned for a listed file that would land outside dst.
var ErrUnsafeFileName = errors.New("hub: unsafe file name")

// Snapshot downloads the files of repo@revision matching patterns into dst and
// returns their local paths. Files already present in dst are not fetched again.
func (c *Client) Snapshot(ctx context.Context, repo, revision string, patterns []string, dst string, onProgress ProgressFunc) ([]string, error) {
	if strings.TrimSpace(repo) == "" {
		return nil, errors.New("hub: repository is empty")
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	revision = revisionOrMain(revision)
	files, err := c.ListFiles(ctx, repo, revision)
	if err != nil {
		return nil, err
	}
	matched := Match(files, patterns)
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s@%s %v", ErrNoMatchingFiles, repo, revision, patterns)
	}
	for _, f := range matched {
		if !filepath.IsLocal(filepath.FromSlash(f)) {
			return nil, fmt.Errorf("%w: %q in %s@%s", ErrUnsafeFileName, f, repo, revision)
		}
	}
	start := time.Now()
	c.log.Info().Str("repo", repo).Str("revision", revision).Int("files", len(matched)).Msg("snapshot start")

	n := len(matched)
	out := make([]string, 0, n)
	for i, f := range matched {
		local := filepath.Join(dst, filepath.FromSlash(f))
		base := float64(i) / float64(n)
		if fsutil.FileExists(local) {
			c.log.Debug().Str("file", f).Msg("snapshot skip existing")
			out = append(out, local)
			onProgress(Progress{File: f, FileIndex: i, FileCount: n, Completed: 0, Total: 0, Fraction: float64(i+1) / float64(n)})
			continue
		}
		if err := c.download(ctx, repo, revision, f, local, func(done, total int64) {
			frac := base
			if total > 0 {
				frac += float64(done) / float64(total) / float64(n)
			}
			onProgress(Progress{File: f, FileIndex: i, FileCount: n, Completed: done, Total: total, Fraction: frac})
		}); err != nil {
			return nil, err
		}
		onProgress(Progress{File: f, FileIndex: i, FileCount: n, Fraction: float64(i+1) / float64(n)})
		out = append(out, local)
	}
	snapshotDuration.Observe(time.Since(start).Seconds())
	c.log.Info().Str("repo", repo).Int("files", len(out)).Dur("dur", time.Since(start)).Msg("snapshot done")
	return out, nil
}

func (c *Client) download(ctx context.Context, repo, revision, file, local string, report func(done, total int64)) error {
	resp, err := c.get(ctx, c.fileURL(repo, revision, file))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	pr := &progressReader{r: resp.Body, total: resp.ContentLength, report: report}
	if _, err := fsutil.WriteFileAtomic(local, pr); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("hub: download %s: %w", file, err)
	}
	return nil
}

// progressReader reports cumulative bytes read.
type progressReader struct {
	r      io.Reader
	done   int64
	total  int64
	report func(done, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		downloadBytesTotal.Add(float64(n))
		p.report(p.done, p.total)
	}
	return n, err
}
