package config

import "testing"

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("FIXDESK_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("FIXDESK_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("FIXDESK_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
}

func TestSchedulingFlagDefaults(t *testing.T) {
	t.Setenv("FIXDESK_DB_DSN", "file::memory:")
	t.Setenv("FIXDESK_JWT_SIGNING_KEY", "supersecret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.SchedulingAlwaysOpen {
		t.Fatal("expected always-open scheduling to default to true")
	}
	if cfg.SchedulingSameDayOnly {
		t.Fatal("expected same-day-only scheduling to default to false")
	}

	t.Setenv("FIXDESK_SCHEDULING_ALWAYS_OPEN", "false")
	t.Setenv("FIXDESK_SCHEDULING_SAME_DAY_ONLY", "true")

	cfg, err = Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SchedulingAlwaysOpen {
		t.Fatal("expected always-open override to apply")
	}
	if !cfg.SchedulingSameDayOnly {
		t.Fatal("expected same-day-only override to apply")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("FIXDESK_DB_DSN", "file::memory:")
	t.Setenv("FIXDESK_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("FIXDESK_DB_BACKEND", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported backend to fail")
	}
}

func TestLoadProductionRequiresStrongSigningKey(t *testing.T) {
	t.Setenv("FIXDESK_DB_DSN", "file::memory:")
	t.Setenv("FIXDESK_JWT_SIGNING_KEY", "short")
	t.Setenv("FIXDESK_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail with a short signing key")
	}

	t.Setenv("FIXDESK_JWT_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load to succeed: %v", err)
	}
}
