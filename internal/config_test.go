package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/folio/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Editor.SessionTTL != 30*time.Minute {
		t.Errorf("session ttl = %v", cfg.Editor.SessionTTL)
	}
}

func TestEditorConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     EditorConfig
		wantErr bool
	}{
		{"defaults", EditorConfig{SessionTTL: time.Minute, SaveDebounce: time.Second}, false},
		{"no debounce", EditorConfig{SessionTTL: time.Minute}, false},
		{"missing ttl", EditorConfig{SaveDebounce: time.Second}, true},
		{"tiny ttl", EditorConfig{SessionTTL: time.Millisecond}, true},
		{"negative debounce", EditorConfig{SessionTTL: time.Minute, SaveDebounce: -time.Second}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestPublishConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     PublishConfig
		wantErr bool
	}{
		{"default", PublishConfig{Enabled: true, BasePath: "/p"}, false},
		{"nested", PublishConfig{Enabled: true, BasePath: "/share/notes"}, false},
		{"disabled ignores path", PublishConfig{Enabled: false, BasePath: "p"}, false},
		{"relative", PublishConfig{Enabled: true, BasePath: "p"}, true},
		{"root", PublishConfig{Enabled: true, BasePath: "/"}, true},
		{"trailing slash", PublishConfig{Enabled: true, BasePath: "/p/"}, true},
		{"api overlap", PublishConfig{Enabled: true, BasePath: "/api"}, true},
		{"empty", PublishConfig{Enabled: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_YAMLWithEnv(t *testing.T) {
	t.Setenv("FOLIO_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
app:
  http:
    port: 9090
auth:
  mode: token
  token: ${FOLIO_TEST_TOKEN}
editor:
  session_ttl: 5m
  save_debounce: 250ms
publish:
  enabled: true
  base_path: /shared
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Editor.SessionTTL != 5*time.Minute || cfg.Editor.SaveDebounce != 250*time.Millisecond {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.Publish.BasePath != "/shared" {
		t.Errorf("publish = %+v", cfg.Publish)
	}
	if cfg.Vault.Path != "./vault" {
		t.Errorf("vault path default lost: %q", cfg.Vault.Path)
	}
}
