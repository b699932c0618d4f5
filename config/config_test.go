package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port == "" {
		t.Error("expected a default port")
	}
	if cfg.JWT.ExpireHours <= 0 {
		t.Errorf("jwt expire hours = %d", cfg.JWT.ExpireHours)
	}
	if cfg.Database.MaxConns <= 0 {
		t.Errorf("db max conns = %d", cfg.Database.MaxConns)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("DB_MAX_CONNS", "32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("port = %q, want 9999", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Database.MaxConns != 32 {
		t.Errorf("db max conns = %d, want 32", cfg.Database.MaxConns)
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: "5432", User: "app", Password: "pw", DBName: "gatherin", SSLMode: "disable",
	}
	want := "postgres://app:pw@db:5432/gatherin?sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}

	c.URL = "postgres://localhost/other"
	if got := c.DSN(); got != c.URL {
		t.Errorf("DSN = %q, want URL passthrough", got)
	}
}
