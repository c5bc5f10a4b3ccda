package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/curator/internal/config"
	"github.com/JaimeStill/curator/pkg/database"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080
read_timeout = "1m"
write_timeout = "15m"
shutdown_timeout = "30s"

[database]
host = "localhost"
port = 5432
name = "curator"
user = "curator"
password = "curator"
ssl_mode = "disable"
max_open_conns = 25
max_idle_conns = 5
conn_max_lifetime = "15m"
conn_timeout = "5s"

[storage]
container_name = "uploads"
connection_string = "UseDevelopmentStorage=true"

[aws]
enabled = true
region = "us-west-2"
endpoint = "http://localhost:4566"

[automation]
retrieval_function_arn = "arn:aws:lambda:us-west-2:123456789012:function:retrieve"
parser_prefix = "parser-"

[automation.notify]
sender = "alerts@example.com"

[api]
base_path = "/api"
max_upload_size = "10MB"
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[automation]
persist_on_notification_failure = true
`

const minimalConfig = `
[database]
name = "curator"
user = "curator"

[storage]
connection_string = "conn"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func loadFrom(t *testing.T, files map[string]string) (*config.Config, error) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeConfig(t, dir, name, content)
	}
	chdir(t, dir)
	return config.Load()
}

func TestLoad(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{"config.toml": baseConfig})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("db host: got %s, want localhost", cfg.Database.Host)
	}
	if cfg.Storage.ContainerName != "uploads" {
		t.Errorf("storage container: got %s, want uploads", cfg.Storage.ContainerName)
	}
	if !cfg.AWS.Enabled || cfg.AWS.Region != "us-west-2" || cfg.AWS.Endpoint != "http://localhost:4566" {
		t.Errorf("aws: got %+v", cfg.AWS)
	}
	if cfg.Automation.Notify.Sender != "alerts@example.com" {
		t.Errorf("sender: got %s", cfg.Automation.Notify.Sender)
	}

	auto := cfg.Automation
	if auto.RetrievalFunctionARN != "arn:aws:lambda:us-west-2:123456789012:function:retrieve" || auto.ParserPrefix != "parser-" {
		t.Errorf("automation config: got %+v", auto)
	}
	if auto.PersistOnNotificationFailure {
		t.Error("persist on notification failure should default to false")
	}
	if got := cfg.API.MaxUploadSizeBytes(); got != 10*1024*1024 {
		t.Errorf("MaxUploadSizeBytes() = %d, want %d", got, 10*1024*1024)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	t.Setenv("CURATOR_ENV", "staging")

	cfg, err := loadFrom(t, map[string]string{
		"config.toml":         baseConfig,
		"config.staging.toml": overlayConfig,
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
	if !cfg.Automation.PersistOnNotificationFailure {
		t.Error("persist_on_notification_failure not merged from overlay")
	}
	if cfg.Env() != "staging" {
		t.Errorf("env: got %s, want staging", cfg.Env())
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	t.Setenv("CURATOR_VERSION", "2.0.0")
	t.Setenv("CURATOR_SERVER_PORT", "3000")
	t.Setenv("CURATOR_AWS_REGION", "eu-west-1")
	t.Setenv("CURATOR_AUTOMATION_PERSIST_ON_NOTIFICATION_FAILURE", "true")

	cfg, err := loadFrom(t, map[string]string{"config.toml": baseConfig})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.AWS.Region != "eu-west-1" {
		t.Errorf("aws region: got %s, want eu-west-1", cfg.AWS.Region)
	}
	if !cfg.Automation.PersistOnNotificationFailure {
		t.Error("persist flag not read from env")
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("CURATOR_AUTOMATION_PARSER_PREFIX", "")
	os.Unsetenv("CURATOR_AUTOMATION_PARSER_PREFIX")

	cfg, err := loadFrom(t, map[string]string{
		"config.toml": minimalConfig,
		".env":        "CURATOR_AUTOMATION_PARSER_PREFIX=dotenv-\n",
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Automation.ParserPrefix != "dotenv-" {
		t.Errorf("parser prefix: got %s, want dotenv-", cfg.Automation.ParserPrefix)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	t.Setenv("CURATOR_DB_NAME", "testdb")
	t.Setenv("CURATOR_DB_USER", "testuser")
	t.Setenv("CURATOR_STORAGE_CONNECTION_STRING", "conn")

	cfg, err := loadFrom(t, nil)
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name from env: got %s, want testdb", cfg.Database.Name)
	}
	if cfg.AWS.Enabled {
		t.Error("aws should default to disabled")
	}
	if cfg.Automation.ParserPrefix != "curator-parser-" {
		t.Errorf("parser prefix default: got %s", cfg.Automation.ParserPrefix)
	}
	if cfg.Automation.Notify.Sender != "curator@localhost" {
		t.Errorf("sender default: got %s", cfg.Automation.Notify.Sender)
	}
	if cfg.API.BasePath != "/api" || cfg.API.MaxUploadSizeBytes() != 25*1024*1024 {
		t.Errorf("api defaults: got %+v", cfg.API)
	}
	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout: got %v, want 30s", d)
	}
	if addr := cfg.Server.Addr(); addr != "0.0.0.0:8080" {
		t.Errorf("addr: got %s, want 0.0.0.0:8080", addr)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	if _, err := loadFrom(t, map[string]string{"config.toml": `server = [`}); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "invalid port",
			extra:   "[server]\nport = 99999\n",
			wantErr: "invalid port",
		},
		{
			name:    "invalid read_timeout",
			extra:   "[server]\nread_timeout = \"bad\"\n",
			wantErr: "invalid read_timeout",
		},
		{
			name:    "invalid retrieval arn",
			extra:   "[automation]\nretrieval_function_arn = \"retrieve\"\n",
			wantErr: "invalid retrieval_function_arn",
		},
		{
			name:    "aws enabled without retrieval arn",
			extra:   "[aws]\nenabled = true\n",
			wantErr: "retrieval_function_arn is required",
		},
		{
			name:    "aws enabled without retrieval arn from env",
			env:     map[string]string{"CURATOR_AWS_ENABLED": "true"},
			wantErr: "retrieval_function_arn is required",
		},
		{
			name:    "invalid sender",
			extra:   "[automation.notify]\nsender = \"not an address\"\n",
			wantErr: "invalid sender",
		},
		{
			name:    "partial aws credentials",
			extra:   "[aws]\nenabled = true\naccess_key_id = \"AKIA\"\n",
			wantErr: "must be set together",
		},
		{
			name:    "invalid upload size",
			env:     map[string]string{"CURATOR_API_MAX_UPLOAD_SIZE": "lots"},
			wantErr: "invalid max_upload_size",
		},
		{
			name:    "invalid persist flag",
			env:     map[string]string{"CURATOR_AUTOMATION_PERSIST_ON_NOTIFICATION_FAILURE": "maybe"},
			wantErr: "CURATOR_AUTOMATION_PERSIST_ON_NOTIFICATION_FAILURE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := loadFrom(t, map[string]string{"config.toml": minimalConfig + tt.extra})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDatabase(t *testing.T) {
	t.Setenv("CURATOR_DB_PASSWORD", "s3cret")

	db, err := loadDatabaseFrom(t, "[database]\nname = \"curator\"\nuser = \"migrator\"\nhost = \"db\"\n")
	if err != nil {
		t.Fatalf("LoadDatabase() error = %v", err)
	}

	want := "postgres://migrator:s3cret@db:5432/curator?sslmode=disable"
	if got := db.URL(); got != want {
		t.Errorf("URL() = %s, want %s", got, want)
	}
}

func TestLoadDatabaseIgnoresOtherSections(t *testing.T) {
	db, err := loadDatabaseFrom(t, "[database]\nname = \"curator\"\nuser = \"curator\"\n\n[server]\nport = 99999\n")
	if err != nil {
		t.Fatalf("LoadDatabase() error = %v", err)
	}
	if db.Name != "curator" {
		t.Errorf("name = %s", db.Name)
	}
}

func loadDatabaseFrom(t *testing.T, content string) (*database.Config, error) {
	t.Helper()
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", content)
	chdir(t, dir)
	return config.LoadDatabase()
}

func TestServerMerge(t *testing.T) {
	base := config.ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     "1m",
		WriteTimeout:    "5m",
		ShutdownTimeout: "30s",
	}

	base.Merge(&config.ServerConfig{WriteTimeout: "10m"})

	want := config.ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     "1m",
		WriteTimeout:    "10m",
		ShutdownTimeout: "30s",
	}
	if base != want {
		t.Errorf("Merge() = %+v, want %+v", base, want)
	}
}
