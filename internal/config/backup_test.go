package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBackupFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".corpusrank.yaml")

	t.Run("no config exists", func(t *testing.T) {
		backupPath, err := BackupFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath != "" {
			t.Errorf("expected empty backup path for non-existent config, got %s", backupPath)
		}
	})

	t.Run("backup existing config", func(t *testing.T) {
		testContent := "version: 1\nembeddings:\n  provider: ollama\n"
		if err := os.WriteFile(configPath, []byte(testContent), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		backupPath, err := BackupFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		backupContent, err := os.ReadFile(backupPath)
		if err != nil {
			t.Fatalf("failed to read backup: %v", err)
		}
		if string(backupContent) != testContent {
			t.Errorf("backup content mismatch:\ngot: %s\nwant: %s", backupContent, testContent)
		}
		if !strings.HasPrefix(filepath.Base(backupPath), ".corpusrank.yaml.bak.") {
			t.Errorf("unexpected backup name %s", backupPath)
		}
	})
}

func TestBackupFile_KeepsNewestMaxBackups(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	var created []string
	for i := 0; i < MaxBackups+2; i++ {
		p, err := BackupFile(configPath)
		if err != nil {
			t.Fatalf("backup %d: %v", i, err)
		}
		created = append(created, p)
		time.Sleep(5 * time.Millisecond)
	}

	backups, err := ListBackups(configPath)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != MaxBackups {
		t.Fatalf("expected %d backups, got %d", MaxBackups, len(backups))
	}
	if backups[0] != created[len(created)-1] {
		t.Errorf("expected newest backup first, got %s", backups[0])
	}
	if _, err := os.Stat(created[0]); !os.IsNotExist(err) {
		t.Errorf("expected oldest backup to be pruned")
	}
}

func TestRestoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	backupPath, err := BackupFile(configPath)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := os.WriteFile(configPath, []byte("version: 2\n"), 0o644); err != nil {
		t.Fatalf("failed to overwrite config: %v", err)
	}

	if err := RestoreFile(configPath, backupPath); err != nil {
		t.Fatalf("restore: %v", err)
	}

	data, _ := os.ReadFile(configPath)
	if string(data) != "version: 1\n" {
		t.Errorf("restored content = %q", data)
	}
	backups, _ := ListBackups(configPath)
	if len(backups) != 2 {
		t.Errorf("expected the pre-restore config to be backed up too, got %d backups", len(backups))
	}

	if err := RestoreFile(configPath, filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("expected error for missing backup")
	}
}
