package bootstrap

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"guru/internal/infra"
)

func TestOpenMemoryStack(t *testing.T) {
	cfg := &infra.Config{
		StoreDriver:    "memory",
		BlobDriver:     "memory",
		StorageBaseURL: "http://localhost:8080/files",
		AnswerProvider: "static",
		Verifier:       "sms",
	}
	s, err := Open(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Durable() {
		t.Fatal("memory stack reported durable")
	}
	if err := s.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if s.Gate == nil || s.Ledger == nil || s.Payments == nil {
		t.Fatal("services not wired")
	}
	if s.GeoIP != nil {
		t.Fatal("geoip should be disabled without a database path")
	}
	if _, err := s.Ledger.Consume(context.Background(), "student-1", 1); err != nil {
		t.Fatalf("Consume: %v", err)
	}
}

func TestOpenRejectsUnknownProvider(t *testing.T) {
	cfg := &infra.Config{StoreDriver: "memory", BlobDriver: "memory", AnswerProvider: "carrier-pigeon"}
	if _, err := Open(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown answer provider")
	}
}
