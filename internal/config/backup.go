package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// MaxBackups is how many backups of one file are kept.
	MaxBackups   = 3
	BackupSuffix = ".bak"

	// Microsecond stamps sort lexically and keep rapid backups distinct.
	backupStamp = "20060102-150405.000000"
)

// Backup copies path to path.bak.<stamp> and prunes older backups beyond
// MaxBackups. It returns "" with no error when path does not exist.
func Backup(path string) (string, error) {
	if !fileExists(path) {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read config for backup: %w", err)
	}

	dst := path + BackupSuffix + "." + time.Now().Format(backupStamp)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	if old, err := ListBackups(path); err == nil && len(old) > MaxBackups {
		for _, p := range old[MaxBackups:] {
			_ = os.Remove(p)
		}
	}
	return dst, nil
}

// ListBackups returns the backups of path, newest first.
func ListBackups(path string) ([]string, error) {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list config directory: %w", err)
	}

	prefix := filepath.Base(path) + BackupSuffix + "."
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), prefix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(out)
	slices.Reverse(out)
	return out, nil
}

// Restore overwrites path with backupPath's content. The file being
// replaced is itself backed up first.
func Restore(path, backupPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if _, err := Backup(path); err != nil {
		return fmt.Errorf("back up current config: %w", err)
	}
	return writeConfigFile(path, data)
}

// WriteTemplate writes template to path. An existing file is an error
// unless force is set, in which case it is backed up and the backup path
// returned.
func WriteTemplate(path, template string, force bool) (backup string, err error) {
	if fileExists(path) {
		if !force {
			return "", fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
		if backup, err = Backup(path); err != nil {
			return "", err
		}
	}
	return backup, writeConfigFile(path, []byte(template))
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
