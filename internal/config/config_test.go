package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REPORT_TTL_SECONDS", "")
	t.Setenv("DEFAULT_DEPARTMENT_ID", "")
	t.Setenv("PORT", "")

	cfg := Load()
	if cfg.ReportTTLSeconds != 300 {
		t.Fatalf("expected default report TTL 300, got %d", cfg.ReportTTLSeconds)
	}
	if cfg.DepartmentID != "main-shop" {
		t.Fatalf("expected default department main-shop, got %q", cfg.DepartmentID)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.Address())
	}
}
