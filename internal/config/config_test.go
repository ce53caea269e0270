package config

import (
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("PORT", "")
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.EmissionThreshold != 80 || cfg.CorridorLocationID != 9 {
		t.Fatalf("unexpected policy defaults: %+v", cfg)
	}
	if cfg.MapsConfigured() {
		t.Fatalf("maps should be unconfigured by default")
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("ROUTE_PROVIDER_TIMEOUT", "750ms")
	t.Setenv("GOOGLE_MAPS_API_KEY", "abc")
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":4000" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.RouteProviderTimeout != 750*time.Millisecond {
		t.Fatalf("timeout = %s", cfg.RouteProviderTimeout)
	}
	if !cfg.MapsConfigured() {
		t.Fatalf("maps should be configured")
	}
}

func TestPlaceholderMapsKeyIsUnconfigured(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "YOUR_API_KEY_HERE")
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MapsConfigured() {
		t.Fatalf("placeholder key must not enable live routing")
	}
}

func TestLoadServerConfigCollectsErrors(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	t.Setenv("EMISSION_THRESHOLD", "high")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatalf("expected parse errors")
	}
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_BROKER", "solo:9092")
	cfg, err := LoadConsumerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "solo:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaTopic != "sensor-readings" {
		t.Fatalf("topic = %q", cfg.KafkaTopic)
	}
}

func TestEmissionProbeMustBeKnown(t *testing.T) {
	t.Setenv("EMISSION_PROBE", "sensor")
	cfg, err := LoadServerConfig()
	if err != nil || cfg.EmissionProbe != "sensor" {
		t.Fatalf("expected sensor probe, got %q %v", cfg.EmissionProbe, err)
	}
	t.Setenv("EMISSION_PROBE", "oracle")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatalf("expected unknown probe to be rejected")
	}
}
