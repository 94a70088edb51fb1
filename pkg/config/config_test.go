package config

import (
	"testing"
	"time"
)

// validConfig возвращает минимально корректную конфигурацию для тестов
func validConfig() Config {
	return Config{
		App:  AppConfig{Name: "optimizer-svc"},
		HTTP: HTTPConfig{Port: 8080},
		Log:  LogConfig{Level: "info"},
		Maps: MapsConfig{MaxRetries: 3},
		Solver: SolverConfig{
			DistanceScalingFactor: 100,
			TimeScalingFactor:     100,
			CapacityScalingFactor: 1,
			TimeLimit:             10 * time.Second,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing app name",
			mutate:  func(c *Config) { c.App.Name = "" },
			wantErr: true,
		},
		{
			name:    "invalid port - zero",
			mutate:  func(c *Config) { c.HTTP.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port - too high",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "valid debug level",
			mutate:  func(c *Config) { c.Log.Level = "debug" },
			wantErr: false,
		},
		{
			name: "api enabled without key",
			mutate: func(c *Config) {
				c.Maps.UseAPIByDefault = true
				c.Maps.APIKey = ""
			},
			wantErr: true,
		},
		{
			name: "api enabled without key in testing mode",
			mutate: func(c *Config) {
				c.Maps.UseAPIByDefault = true
				c.App.Testing = true
			},
			wantErr: false,
		},
		{
			name: "api enabled with key",
			mutate: func(c *Config) {
				c.Maps.UseAPIByDefault = true
				c.Maps.APIKey = "key"
			},
			wantErr: false,
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Maps.MaxRetries = -1 },
			wantErr: true,
		},
		{
			name:    "zero distance scaling",
			mutate:  func(c *Config) { c.Solver.DistanceScalingFactor = 0 },
			wantErr: true,
		},
		{
			name:    "zero time limit",
			mutate:  func(c *Config) { c.Solver.TimeLimit = 0 },
			wantErr: true,
		},
		{
			name: "auth enabled without secret or keys",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "auth enabled with api key hashes",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.APIKeyHashes = []string{"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"dev", true},
		{"production", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsProduction(); got != tt.want {
			t.Errorf("IsProduction() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		cfg    DatabaseConfig
		expect string
	}{
		{
			name: "postgres",
			cfg: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
				SSLMode:  "disable",
			},
			expect: "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable",
		},
		{
			name: "postgresql alias",
			cfg: DatabaseConfig{
				Driver:   "postgresql",
				Host:     "db",
				Port:     5432,
				Database: "routeopt",
				Username: "routeopt",
				Password: "secret",
				SSLMode:  "require",
			},
			expect: "host=db port=5432 user=routeopt password=secret dbname=routeopt sslmode=require",
		},
		{
			name: "unknown",
			cfg: DatabaseConfig{
				Driver: "unknown",
			},
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := tt.cfg.DSN()
			if dsn != tt.expect {
				t.Errorf("expected DSN %s, got %s", tt.expect, dsn)
			}
		})
	}
}

func TestCacheConfig_Address(t *testing.T) {
	cfg := CacheConfig{
		Host: "redis.local",
		Port: 6379,
	}

	addr := cfg.Address()
	if addr != "redis.local:6379" {
		t.Errorf("expected 'redis.local:6379', got %s", addr)
	}
}

func TestMapsConfig_Durations(t *testing.T) {
	cfg := MapsConfig{
		RetryDelaySeconds: 2,
		CacheExpiryDays:   30,
	}

	if cfg.RetryDelay() != 2*time.Second {
		t.Errorf("RetryDelay() = %v, want 2s", cfg.RetryDelay())
	}
	if cfg.CacheTTL() != 30*24*time.Hour {
		t.Errorf("CacheTTL() = %v, want 720h", cfg.CacheTTL())
	}
}

func TestSolverConfig_ResultCacheTTL(t *testing.T) {
	cfg := SolverConfig{ResultCacheTTLSecond: 3600}
	if cfg.ResultCacheTTL() != time.Hour {
		t.Errorf("ResultCacheTTL() = %v, want 1h", cfg.ResultCacheTTL())
	}
}

func TestCORSConfig(t *testing.T) {
	cfg := CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"http://localhost:3000", "https://example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	if !cfg.Enabled {
		t.Error("expected CORS to be enabled")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %d", len(cfg.AllowedOrigins))
	}
}
