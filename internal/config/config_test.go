package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// isolate points every lookup Load performs at a temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, k := range []string{"MAILSESSION_BACKEND", "MAILSESSION_ENDPOINT", "GMAIL_CLIENT_ID", "GMAIL_CLIENT_SECRET", "MAILSESSION_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.Kind != "graphql" {
		t.Errorf("default backend = %q, want %q", cfg.Backend.Kind, "graphql")
	}
	if cfg.BackendTimeout() != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", cfg.BackendTimeout())
	}
	if cfg.Backend.PageSize != 50 {
		t.Errorf("default page_size = %d, want 50", cfg.Backend.PageSize)
	}
	folder, err := cfg.DefaultFolder()
	if err != nil || folder != domain.FolderInbox {
		t.Errorf("default folder = %q, %v; want inbox", folder, err)
	}
	level, _ := cfg.LogLevel()
	if level != logrus.WarnLevel {
		t.Errorf("default level = %v, want warn", level)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "config.toml")
	content := `
[backend]
kind = "gmail"
timeout = "10s"
page_size = 100

[session]
default_folder = "Starred"

[assistant]
provider = "ollama"
model = "llama3.2"
timeout = "5s"

[log]
level = "debug"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.Kind != "gmail" {
		t.Errorf("kind = %q, want %q", cfg.Backend.Kind, "gmail")
	}
	if cfg.BackendTimeout() != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.BackendTimeout())
	}
	if folder, _ := cfg.DefaultFolder(); folder != domain.FolderStarred {
		t.Errorf("default folder = %q, want starred", folder)
	}
	if cfg.AssistantTimeout() != 5*time.Second {
		t.Errorf("assistant timeout = %v, want 5s", cfg.AssistantTimeout())
	}
	if level, _ := cfg.LogLevel(); level != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", level)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load() should return defaults for missing file, got error: %v", err)
	}
	if cfg.Backend.Timeout != "30s" {
		t.Errorf("timeout = %q, want default %q", cfg.Backend.Timeout, "30s")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("not valid [[ toml"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load() should return error for invalid TOML")
	}
	if !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "failed to parse config")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"backend kind", "[backend]\nkind = \"imap\"\n", "Kind"},
		{"folder", "[session]\ndefault_folder = \"archive\"\n", "default_folder"},
		{"timeout", "[backend]\ntimeout = \"soon\"\n", "backend.timeout"},
		{"endpoint", "[backend]\nendpoint = \"not a url\"\n", "Endpoint"},
		{"missing endpoint", "[backend]\nendpoint = \"\"\n", "backend.endpoint"},
		{"assistant provider", "[assistant]\nprovider = \"openai\"\n", "Provider"},
		{"log level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"page size", "[backend]\npage_size = 1000\n", "PageSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			cfgPath := filepath.Join(dir, "config.toml")
			if err := os.WriteFile(cfgPath, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(cfgPath)
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MAILSESSION_ENDPOINT", "https://mail.example.com/graphql")
	t.Setenv("GMAIL_CLIENT_ID", "id-from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.Endpoint != "https://mail.example.com/graphql" {
		t.Errorf("endpoint = %q", cfg.Backend.Endpoint)
	}
	if cfg.Gmail.ClientID != "id-from-env" {
		t.Errorf("client id = %q", cfg.Gmail.ClientID)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	os.Unsetenv("GMAIL_CLIENT_SECRET")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GMAIL_CLIENT_SECRET=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Gmail.ClientSecret != "from-dotenv" {
		t.Errorf("client secret = %q, want %q", cfg.Gmail.ClientSecret, "from-dotenv")
	}
	os.Unsetenv("GMAIL_CLIENT_SECRET")
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		dir := ConfigDir()
		want := "/custom/config/mailsession"
		if dir != want {
			t.Errorf("ConfigDir() = %q, want %q", dir, want)
		}
	})
	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		dir := ConfigDir()
		if !strings.HasSuffix(dir, filepath.Join(".config", "mailsession")) {
			t.Errorf("ConfigDir() = %q, want suffix %q", dir, filepath.Join(".config", "mailsession"))
		}
	})
}

func TestDataDir(t *testing.T) {
	t.Run("with XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/custom/data")
		dir := DataDir()
		want := "/custom/data/mailsession"
		if dir != want {
			t.Errorf("DataDir() = %q, want %q", dir, want)
		}
	})
	t.Run("without XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")
		dir := DataDir()
		if !strings.HasSuffix(dir, filepath.Join(".local", "share", "mailsession")) {
			t.Errorf("DataDir() = %q, want suffix %q", dir, filepath.Join(".local", "share", "mailsession"))
		}
	})
}
