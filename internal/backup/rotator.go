package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"skyhero/internal/domain"
)

const (
	// DefaultRetention is how long rotated artifacts are kept.
	DefaultRetention = 60 * 24 * time.Hour

	gzSuffix       = ".db.gz"
	rawSuffix      = ".db"
	checksumSuffix = ".sha256"
	nameTimeLayout = "2006-01-02_15"
)

// ErrChecksumMismatch is returned when an artifact does not match its
// recorded digest.
var ErrChecksumMismatch = errors.New("backup: checksum mismatch")

// Rotator writes hourly-named compressed copies of the event store and
// prunes old ones.
type Rotator struct {
	LivePath  string
	Dir       string
	Prefix    string
	Retention time.Duration

	logger zerolog.Logger
	now    func() time.Time
}

func NewRotator(livePath, dir, prefix string, retention time.Duration, logger zerolog.Logger) *Rotator {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Rotator{
		LivePath:  livePath,
		Dir:       dir,
		Prefix:    prefix,
		Retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Create compresses the current store into the backup directory, writes its
// checksum and prunes expired artifacts. It copies whatever is on disk, even
// a store that fails its integrity check. A missing store is skipped.
func (r *Rotator) Create(ctx context.Context) error {
	if _, err := os.Stat(r.LivePath); errors.Is(err, fs.ErrNotExist) {
		r.logger.Warn().Str("path", r.LivePath).Msg("backup: event store missing, skipping")
		return nil
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("backup: ensure dir: %w", err)
	}

	tmp, err := os.CreateTemp(r.Dir, ".snapshot-*.db")
	if err != nil {
		return fmt.Errorf("backup: temp copy: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("backup: temp copy: %w", err)
	}
	if err := copyInto(tmp, r.LivePath); err != nil {
		return fmt.Errorf("backup: temp copy: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := fmt.Sprintf("%s_%s%s", r.Prefix, r.now().Format(nameTimeLayout), gzSuffix)
	dest := filepath.Join(r.Dir, name)
	digest, err := compressFile(tmpPath, dest)
	if err != nil {
		return fmt.Errorf("backup: compress: %w", err)
	}
	if err := os.WriteFile(dest+checksumSuffix, []byte(digest+"\n"), 0o644); err != nil {
		return fmt.Errorf("backup: checksum: %w", err)
	}
	r.logger.Info().Str("artifact", name).Msg("backup: created")

	if n, err := r.Prune(r.now()); err != nil {
		r.logger.Warn().Err(err).Msg("backup: prune failed")
	} else if n > 0 {
		r.logger.Info().Int("removed", n).Msg("backup: pruned expired artifacts")
	}
	return nil
}

// Prune removes compressed artifacts and checksum files older than the
// retention horizon, plus checksum files whose artifact is gone.
func (r *Rotator) Prune(now time.Time) (int, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := now.Add(-r.Retention)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, gzSuffix) || strings.HasSuffix(name, checksumSuffix)) {
			continue
		}
		path := filepath.Join(r.Dir, name)
		info, err := e.Info()
		if err != nil {
			continue
		}
		orphan := false
		if strings.HasSuffix(name, checksumSuffix) {
			if _, err := os.Stat(strings.TrimSuffix(path, checksumSuffix)); errors.Is(err, fs.ErrNotExist) {
				orphan = true
			}
		}
		if !orphan && !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("backup: remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// List returns every restorable artifact, newest first.
func (r *Rotator) List() ([]domain.BackupArtifact, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []domain.BackupArtifact
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasPrefix(name, r.Prefix+"_") {
			continue
		}
		compressed := strings.HasSuffix(name, gzSuffix)
		if !compressed && !strings.HasSuffix(name, rawSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, domain.BackupArtifact{
			Path:       filepath.Join(r.Dir, name),
			Name:       name,
			ModTime:    info.ModTime(),
			Size:       info.Size(),
			Compressed: compressed,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}

// Latest returns the artifact with the newest modification time.
func (r *Rotator) Latest() (domain.BackupArtifact, error) {
	all, err := r.List()
	if err != nil {
		return domain.BackupArtifact{}, err
	}
	if len(all) == 0 {
		return domain.BackupArtifact{}, fmt.Errorf("backup: no artifacts in %s: %w", r.Dir, domain.ErrNotFound)
	}
	return all[0], nil
}

// Artifact describes the file at path as a restorable artifact.
func Artifact(path string) (domain.BackupArtifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.BackupArtifact{}, err
	}
	return domain.BackupArtifact{
		Path:       path,
		Name:       filepath.Base(path),
		ModTime:    info.ModTime(),
		Size:       info.Size(),
		Compressed: strings.HasSuffix(path, ".gz"),
	}, nil
}

// VerifyChecksum compares a's digest with its .sha256 sibling. present is
// false when no checksum file exists.
func VerifyChecksum(a domain.BackupArtifact) (present bool, err error) {
	raw, err := os.ReadFile(a.Path + checksumSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return true, fmt.Errorf("%w: empty checksum file", ErrChecksumMismatch)
	}
	got, err := fileDigest(a.Path)
	if err != nil {
		return true, err
	}
	if !strings.EqualFold(fields[0], got) {
		return true, fmt.Errorf("%w: %s", ErrChecksumMismatch, a.Name)
	}
	return true, nil
}

// Materialize writes the uncompressed database held by a to dest.
func Materialize(a domain.BackupArtifact, dest string) (err error) {
	in, err := os.Open(a.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	var src io.Reader = in
	if a.Compressed {
		gz, err := gzip.NewReader(in)
		if err != nil {
			return fmt.Errorf("backup: gzip %s: %w", a.Name, err)
		}
		defer gz.Close()
		src = gz
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("backup: extract %s: %w", a.Name, err)
	}
	return out.Close()
}

func copyInto(dst *os.File, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		dst.Close()
		return err
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// compressFile gzips src into dest and returns the hex digest of dest.
func compressFile(src, dest string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".artifact-*.gz")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	h := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(tmp, h))
	if _, err := io.Copy(gz, in); err != nil {
		tmp.Close()
		return "", err
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
