package record

import (
	"fmt"
	"strings"
	"time"
)

// MaxBackupCount is the upper bound for sync plus async backups of a map.
const MaxBackupCount = 6

// MapConfig is the map-level configuration shared by all record stores of a
// map. It is constant for the lifetime of the map.
type MapConfig struct {
	Name string `json:"name"`
	// BackupCount is the number of replicas that must acknowledge a backup
	// before a mutation completes.
	BackupCount int `json:"backup_count"`
	// AsyncBackupCount is the number of replicas that receive backups without
	// the mutation waiting for them.
	AsyncBackupCount int `json:"async_backup_count"`
	// WriteDelay selects the persistence timing: zero is write-through, any
	// other value is write-behind and handled by a deferred writer.
	WriteDelay time.Duration `json:"write_delay"`
	// TTL is the default time to live of new records (zero = no expiry).
	TTL time.Duration `json:"ttl"`
}

// DefaultMapConfig returns the configuration used for maps that were not
// configured explicitly: one sync backup, write-through, no expiry.
func DefaultMapConfig(name string) MapConfig {
	return MapConfig{
		Name:        name,
		BackupCount: 1,
	}
}

// Validate checks the backup counts and durations.
func (c MapConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("map config: name must not be empty")
	}
	if c.BackupCount < 0 || c.AsyncBackupCount < 0 {
		return fmt.Errorf("map config %s: backup counts must not be negative", c.Name)
	}
	if c.TotalBackupCount() > MaxBackupCount {
		return fmt.Errorf("map config %s: at most %d backups are supported, got %d", c.Name, MaxBackupCount, c.TotalBackupCount())
	}
	if c.WriteDelay < 0 || c.TTL < 0 {
		return fmt.Errorf("map config %s: durations must not be negative", c.Name)
	}
	return nil
}

// TotalBackupCount returns sync plus async backups.
func (c MapConfig) TotalBackupCount() int {
	return c.BackupCount + c.AsyncBackupCount
}

// WriteThrough reports whether the map persists synchronously.
func (c MapConfig) WriteThrough() bool {
	return c.WriteDelay == 0
}

func (c MapConfig) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: backups=%d async-backups=%d", c.Name, c.BackupCount, c.AsyncBackupCount))
	if c.WriteThrough() {
		sb.WriteString(" write-through")
	} else {
		sb.WriteString(fmt.Sprintf(" write-behind(%s)", c.WriteDelay))
	}
	if c.TTL > 0 {
		sb.WriteString(fmt.Sprintf(" ttl=%s", c.TTL))
	}
	return sb.String()
}
