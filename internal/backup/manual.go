package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"skyhero/internal/domain/jsoncfg"
	"skyhero/pkg/archive"
)

const (
	manualPrefix     = "superman-backup-"
	manualTimeLayout = "Jan-02-2006_15h-04m-05s"

	dataEntry    = "data"
	backupsEntry = "db_backups"
)

// Manual packs the data and backup directories into a portable archive and
// restores them, upgrading legacy documents on the way in.
type Manual struct {
	BaseDir    string
	DataDir    string
	BackupsDir string
	OutDir     string

	logger zerolog.Logger
	now    func() time.Time
}

func NewManual(baseDir, dataDir, backupsDir, outDir string, logger zerolog.Logger) *Manual {
	return &Manual{
		BaseDir:    baseDir,
		DataDir:    dataDir,
		BackupsDir: backupsDir,
		OutDir:     outDir,
		logger:     logger,
		now:        time.Now,
	}
}

// Create writes superman-backup-<timestamp>.tar.gz into OutDir and returns
// its path.
func (m *Manual) Create(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(m.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("backup: manual dir: %w", err)
	}
	dest := filepath.Join(m.OutDir, manualPrefix+m.now().Format(manualTimeLayout)+".tar.gz")
	err := archive.PackTarGz(dest, []archive.Source{
		{Name: dataEntry, Dir: m.DataDir},
		{Name: backupsEntry, Dir: m.BackupsDir},
	})
	if err != nil {
		return "", fmt.Errorf("backup: manual archive: %w", err)
	}
	m.logger.Info().Str("archive", dest).Msg("backup: manual archive created")
	return dest, nil
}

// Restore replaces the live data directory (and the backup directory, when
// the archive carries one) with the archive's contents.
func (m *Manual) Restore(ctx context.Context, archivePath string) error {
	if _, err := os.Stat(archivePath); err != nil {
		return fmt.Errorf("backup: archive %s: %w", archivePath, err)
	}
	tmp := filepath.Join(m.BaseDir, "tmp_restore_"+m.now().Format("20060102150405"))
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("backup: restore dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := archive.UnpackTarGz(archivePath, tmp); err != nil {
		return fmt.Errorf("backup: extract: %w", err)
	}
	data := filepath.Join(tmp, dataEntry)
	if _, err := os.Stat(data); err != nil {
		return fmt.Errorf("backup: archive has no %s directory: %w", dataEntry, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	periodDir := filepath.Join(data, "period_data")
	dailyDir := filepath.Join(data, "daily_json")
	m.renameLegacyPeriods(periodDir)
	m.upgradeDir(dailyDir, func(raw []byte, name string) ([]byte, bool, error) {
		return jsoncfg.UpgradeDaily(raw, strings.TrimSuffix(name, ".json"))
	})
	m.upgradeDir(periodDir, func(raw []byte, _ string) ([]byte, bool, error) {
		return jsoncfg.UpgradePeriod(raw)
	})

	if err := replaceDir(data, m.DataDir); err != nil {
		return fmt.Errorf("backup: replace data: %w", err)
	}
	restoredBackups := filepath.Join(tmp, backupsEntry)
	if _, err := os.Stat(restoredBackups); err == nil {
		if err := replaceDir(restoredBackups, m.BackupsDir); err != nil {
			return fmt.Errorf("backup: replace backups: %w", err)
		}
	}
	removeChecksums(filepath.Join(m.DataDir, "daily_json"))

	m.logger.Info().Str("archive", filepath.Base(archivePath)).Msg("backup: manual archive restored")
	return nil
}

// renameLegacyPeriods turns traffic_period_<a>_<b>.json into
// traffic_period_<a>-<b>.json.
func (m *Manual) renameLegacyPeriods(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "traffic_period_") {
			continue
		}
		parts := strings.Split(strings.TrimSuffix(name, ".json"), "_")
		if len(parts) != 4 {
			continue
		}
		renamed := fmt.Sprintf("traffic_period_%s-%s.json", parts[2], parts[3])
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, renamed)); err != nil {
			m.logger.Warn().Err(err).Str("file", name).Msg("backup: rename legacy report failed")
			continue
		}
		m.logger.Info().Str("from", name).Str("to", renamed).Msg("backup: renamed legacy report")
	}
}

func (m *Manual) upgradeDir(dir string, upgrade func(raw []byte, name string) ([]byte, bool, error)) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil || len(raw) == 0 {
			continue
		}
		out, upgraded, err := upgrade(raw, name)
		if err != nil {
			m.logger.Warn().Err(err).Str("file", name).Msg("backup: could not upgrade document")
			continue
		}
		if !upgraded {
			continue
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			m.logger.Warn().Err(err).Str("file", name).Msg("backup: could not write upgraded document")
			continue
		}
		m.logger.Info().Str("file", name).Msg("backup: upgraded legacy document")
	}
}

func replaceDir(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

func removeChecksums(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), checksumSuffix) {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}
