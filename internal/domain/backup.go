package domain

import (
	"fmt"
	"strings"
	"time"
)

// BackupArtifact is a point-in-time copy of the event store on disk.
type BackupArtifact struct {
	Path       string
	Name       string
	ModTime    time.Time
	Size       int64
	Compressed bool
}

// RestoreKind enumerates restore audit line kinds.
type RestoreKind string

const (
	RestoreDetected RestoreKind = "DETECTED"
	RestoreRestored RestoreKind = "RESTORED"
	RestoreFailed   RestoreKind = "FAILED"
	RestoreTimeGap  RestoreKind = "TIME GAP"
	RestoreCritical RestoreKind = "CRITICAL"
)

// AuditTimeLayout formats timestamps in the restore audit log and marker.
const AuditTimeLayout = "2006-01-02 15:04:05"

// RestoreRecord is a single line of the append-only restore audit log.
type RestoreRecord struct {
	At      time.Time
	Kind    RestoreKind
	Message string
}

// String renders the record as "[YYYY-MM-DD HH:MM:SS] KIND: message".
func (r RestoreRecord) String() string {
	return fmt.Sprintf("[%s] %s: %s", r.At.Format(AuditTimeLayout), r.Kind, r.Message)
}

// RestoreMarker is the single-shot notice the dashboard shows after a
// successful automatic restore.
type RestoreMarker struct {
	CorruptionTime string `json:"corruption_time"`
	RestoreTime    string `json:"restore_time"`
	BackupFile     string `json:"backup_file"`
}

// String renders the marker as "corruption|restore|backup".
func (m RestoreMarker) String() string {
	return m.CorruptionTime + "|" + m.RestoreTime + "|" + m.BackupFile
}

// ParseRestoreMarker parses the marker file content.
func ParseRestoreMarker(content string) (RestoreMarker, bool) {
	parts := strings.Split(strings.TrimSpace(content), "|")
	if len(parts) != 3 {
		return RestoreMarker{}, false
	}
	return RestoreMarker{CorruptionTime: parts[0], RestoreTime: parts[1], BackupFile: parts[2]}, true
}
