package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "corecrm-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "corecrm-auth")
	}
	if cfg.JWTAudience != "corecrm-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "corecrm-api")
	}
	if cfg.JWTAccessTTL != "15m" {
		t.Errorf("JWTAccessTTL = %q, want %q", cfg.JWTAccessTTL, "15m")
	}
	if cfg.JWTRefreshTTL != "168h" {
		t.Errorf("JWTRefreshTTL = %q, want %q", cfg.JWTRefreshTTL, "168h")
	}
	if cfg.JWTPasswordResetTTL != "1h" {
		t.Errorf("JWTPasswordResetTTL = %q, want %q", cfg.JWTPasswordResetTTL, "1h")
	}
	if cfg.JWTEmailVerifyTTL != "24h" {
		t.Errorf("JWTEmailVerifyTTL = %q, want %q", cfg.JWTEmailVerifyTTL, "24h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.AuditKafkaTopic != "corecrm-audit" {
		t.Errorf("AuditKafkaTopic = %q, want default", cfg.AuditKafkaTopic)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("BCRYPT_COST", "99")

	if _, err := Load(); err == nil {
		t.Fatal("Load: want error for BCRYPT_COST out of range")
	}
}

func TestTTLAccessors(t *testing.T) {
	cfg := &Config{
		JWTAccessTTL:        "5m",
		JWTRefreshTTL:       "72h",
		JWTPasswordResetTTL: "30m",
		JWTEmailVerifyTTL:   "48h",
	}
	if got := cfg.AccessTTL(); got != 5*time.Minute {
		t.Errorf("AccessTTL = %v, want 5m", got)
	}
	if got := cfg.RefreshTTL(); got != 72*time.Hour {
		t.Errorf("RefreshTTL = %v, want 72h", got)
	}
	if got := cfg.PasswordResetTTL(); got != 30*time.Minute {
		t.Errorf("PasswordResetTTL = %v, want 30m", got)
	}
	if got := cfg.EmailVerifyTTL(); got != 48*time.Hour {
		t.Errorf("EmailVerifyTTL = %v, want 48h", got)
	}

	bad := &Config{JWTAccessTTL: "nope", JWTRefreshTTL: "", JWTPasswordResetTTL: "-5m", JWTEmailVerifyTTL: "x"}
	if got := bad.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL fallback = %v, want 15m", got)
	}
	if got := bad.RefreshTTL(); got != 168*time.Hour {
		t.Errorf("RefreshTTL fallback = %v, want 168h", got)
	}
	if got := bad.PasswordResetTTL(); got != time.Hour {
		t.Errorf("PasswordResetTTL fallback = %v, want 1h", got)
	}
	if got := bad.EmailVerifyTTL(); got != 24*time.Hour {
		t.Errorf("EmailVerifyTTL fallback = %v, want 24h", got)
	}
}

func TestAuditKafkaBrokersList(t *testing.T) {
	cfg := &Config{AuditKafkaBrokers: "localhost:9092, broker2:9092 ,,"}
	got := cfg.AuditKafkaBrokersList()
	if len(got) != 2 || got[0] != "localhost:9092" || got[1] != "broker2:9092" {
		t.Errorf("AuditKafkaBrokersList = %v", got)
	}
	empty := &Config{}
	if got := empty.AuditKafkaBrokersList(); got != nil {
		t.Errorf("AuditKafkaBrokersList empty = %v, want nil", got)
	}
}
