package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestNewDependencies_Memory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, log.WithField("test", "dependencies"))
	if err != nil {
		t.Fatalf("NewDependencies failed: %v", err)
	}
	defer deps.Close()

	if deps.Repo == nil {
		t.Error("Repo should not be nil")
	}
	if deps.TimelineRepo == nil {
		t.Error("TimelineRepo should not be nil")
	}
	if deps.OutboxRepo == nil {
		t.Error("OutboxRepo should not be nil")
	}
	if deps.IdemRepo == nil {
		t.Error("IdemRepo should not be nil")
	}
	if deps.Catalog == nil {
		t.Error("Catalog should not be nil")
	}
	if deps.Store != nil {
		t.Error("Store should be nil for memory driver")
	}
	if deps.Producer != nil {
		t.Error("Producer should be nil without kafka brokers")
	}
	if deps.Publisher != nil {
		t.Error("Publisher should be nil without kafka brokers")
	}
}

func TestNewDependencies_IndependentInstances(t *testing.T) {
	cfg := DefaultConfig()

	deps1, err := NewDependencies(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewDependencies failed: %v", err)
	}
	defer deps1.Close()

	deps2, err := NewDependencies(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewDependencies failed: %v", err)
	}
	defer deps2.Close()

	if deps1.Repo == deps2.Repo {
		t.Error("Repo instances should be independent")
	}
}

func TestNewDependencies_PostgresRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = ""

	if _, err := NewDependencies(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for postgres driver without DSN")
	}
}

func TestNewDependencies_UnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "redis"

	if _, err := NewDependencies(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}
