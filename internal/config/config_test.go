package config

import "testing"

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(nil)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr {
		t.Fatalf("ListenAddr: got %q want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.VerificationStrategy != defaultStrategy {
		t.Fatalf("VerificationStrategy: got %q want %q", cfg.VerificationStrategy, defaultStrategy)
	}
	if cfg.DataDir == "" {
		t.Fatal("DataDir should never be empty")
	}
}

func TestLoadServerConfigEnvOverride(t *testing.T) {
	t.Setenv("BINDLE_IP_ADDRESS_PORT", "0.0.0.0:9000")
	t.Setenv("BINDLE_VERIFICATION_STRATEGY", "ExhaustiveVerification")

	cfg, err := LoadServerConfig(nil)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("ListenAddr: got %q", cfg.ListenAddr)
	}
	if cfg.VerificationStrategy != "ExhaustiveVerification" {
		t.Fatalf("VerificationStrategy: got %q", cfg.VerificationStrategy)
	}
}

func TestLoadClientConfigDefaults(t *testing.T) {
	cfg, err := LoadClientConfig(nil)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.URL == "" {
		t.Fatal("URL should never be empty")
	}
	if cfg.Directory == "" {
		t.Fatal("Directory should never be empty")
	}
}

func TestLoadClientConfigEnvOverride(t *testing.T) {
	t.Setenv("BINDLE_URL", "https://bindle.example.com")
	cfg, err := LoadClientConfig(nil)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.URL != "https://bindle.example.com" {
		t.Fatalf("URL: got %q", cfg.URL)
	}
}
