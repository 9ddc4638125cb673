package config

import (
	"strings"
	"testing"
)

func TestValidatorFluent(t *testing.T) {
	v := NewValidator().
		RequireNonEmpty("name", "ok").
		RequirePositive("count", 3).
		ValidateOneOf("mode", "redis", "memory", "redis", "mongo")
	if v.HasErrors() {
		t.Errorf("unexpected errors: %v", v.Errors())
	}
	if err := v.Error(); err != nil {
		t.Errorf("Error() = %v, want nil", err)
	}
}

func TestValidatorCollectsAllErrors(t *testing.T) {
	v := NewValidator().
		RequireNonEmpty("name", "").
		RequirePositive("count", 0).
		ValidateRange("size", 100, 1, 64).
		ValidateOneOf("mode", "banana", "memory", "redis")
	if got := len(v.Errors()); got != 4 {
		t.Fatalf("got %d errors, want 4", got)
	}
	err := v.Error()
	if err == nil {
		t.Fatal("Error() = nil, want combined error")
	}
	for _, field := range []string{"name", "count", "size", "mode"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Error() missing field %q: %v", field, err)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	e := ValidationError{Field: "topK", Message: "value must be positive, got -1"}
	if !strings.Contains(e.Error(), "topK") {
		t.Errorf("Error() = %q, want field name included", e.Error())
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.DBDriver != "duckdb" {
		t.Errorf("DBDriver = %q, want duckdb", cfg.DBDriver)
	}
	if cfg.Provider != "rules" {
		t.Errorf("Provider = %q, want rules", cfg.Provider)
	}
	if cfg.TopK != 3 || cfg.Concurrency != 4 {
		t.Errorf("TopK = %d, Concurrency = %d, want 3 and 4", cfg.TopK, cfg.Concurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ASKDATA_DB_DRIVER", "postgres")
	t.Setenv("ASKDATA_TOP_K", "5")

	cfg := FromEnv()
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want postgres", cfg.DBDriver)
	}
	if cfg.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.TopK)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cfg := FromEnv()
	cfg.DBDriver = "sqlite"
	cfg.Provider = "none"
	cfg.Concurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for invalid driver, provider, and concurrency")
	}
}
