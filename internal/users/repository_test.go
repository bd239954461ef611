package users

import (
	"context"
	"testing"

	"github.com/cryptoknight/knightd/test/testdb"
)

func TestRepositoryCreateAndLookup(t *testing.T) {
	db := testdb.Setup(t)
	testdb.Truncate(t, db, "users")

	repo := NewRepository(db)

	created, err := repo.Create(context.Background(), " alice ", " alice@example.com ")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == 0 {
		t.Error("Expected generated user ID")
	}
	if created.Username != "alice" || created.Email != "alice@example.com" {
		t.Errorf("Expected trimmed fields, got %+v", created)
	}

	byID, err := repo.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID == nil || byID.Username != "alice" {
		t.Errorf("GetByID mismatch: %+v", byID)
	}

	byName, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if byName == nil || byName.ID != created.ID {
		t.Errorf("GetByUsername mismatch: %+v", byName)
	}
}

func TestRepositoryMissingUserIsNil(t *testing.T) {
	db := testdb.Setup(t)
	testdb.Truncate(t, db, "users")

	repo := NewRepository(db)

	user, err := repo.GetByID(context.Background(), 404)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if user != nil {
		t.Errorf("Expected nil for missing user, got %+v", user)
	}

	user, err = repo.GetByUsername(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if user != nil {
		t.Errorf("Expected nil for missing user, got %+v", user)
	}
}

func TestRepositoryCreateValidation(t *testing.T) {
	db := testdb.Setup(t)
	testdb.Truncate(t, db, "users")

	repo := NewRepository(db)

	if _, err := repo.Create(context.Background(), "", "alice@example.com"); err == nil {
		t.Error("Expected error for blank username")
	}
	if _, err := repo.Create(context.Background(), "alice", "   "); err == nil {
		t.Error("Expected error for blank email")
	}

	if _, err := repo.Create(context.Background(), "alice", "alice@example.com"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Create(context.Background(), "alice", "other@example.com"); err == nil {
		t.Error("Expected unique violation for duplicate username")
	}
}
