package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/cryptoknight/knightd/pkg/models"
	"github.com/cryptoknight/knightd/test/testdb"
)

func seedUser(t *testing.T, db *sqlx.DB, username, email string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(
		`INSERT INTO users (username, email) VALUES ($1, $2) RETURNING id`,
		username, email,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return id
}

func TestRepositoryCreateNormalizesSymbol(t *testing.T) {
	db := testdb.Setup(t)
	testdb.Truncate(t, db, "price_alerts", "users")

	repo := NewRepository(db)
	userID := seedUser(t, db, "alice", "alice@example.com")

	alert := &models.Alert{
		UserID:    userID,
		Symbol:    " btc ",
		Direction: models.DirectionAbove,
		Threshold: decimal.NewFromInt(64000),
	}
	if err := repo.Create(context.Background(), alert); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if alert.ID == 0 {
		t.Error("Expected generated alert ID")
	}
	if alert.Symbol != "BTC" {
		t.Errorf("Symbol mismatch. Expected: BTC, Got: %s", alert.Symbol)
	}
	if !alert.IsActive {
		t.Error("Expected freshly created alert to be active")
	}
	if alert.CreatedAt.IsZero() || alert.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be populated")
	}
}

func TestRepositoryCreateRejectsBadInput(t *testing.T) {
	db := testdb.Setup(t)
	testdb.Truncate(t, db, "price_alerts", "users")

	repo := NewRepository(db)
	userID := seedUser(t, db, "alice", "alice@example.com")

	testCases := []struct {
		name  string
		alert models.Alert
	}{
		{
			name: "unknown direction",
			alert: models.Alert{
				UserID:    userID,
				Symbol:    "BTC",
				Direction: "sideways",
				Threshold: decimal.NewFromInt(100),
			},
		},
		{
			name: "negative threshold",
			alert: models.Alert{
				UserID:    userID,
				Symbol:    "BTC",
				Direction: models.DirectionBelow,
				Threshold: decimal.NewFromInt(-1),
			},
		},
		{
			name: "blank symbol",
			alert: models.Alert{
				UserID:    userID,
				Symbol:    "   ",
				Direction: models.DirectionAbove,
				Threshold: decimal.NewFromInt(100),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			alert := tc.alert
			if err := repo.Create(context.Background(), &alert); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestRepositoryListOrdering(t *testing.T) {
	db := testdb.Setup(t)
	testdb.Truncate(t, db, "price_alerts", "users")

	repo := NewRepository(db)
	userID := seedUser(t, db, "alice", "alice@example.com")
	otherID := seedUser(t, db, "bob", "bob@example.com")

	symbols := []string{"BTC", "ETH", "SOL"}
	for _, symbol := range symbols {
		alert := &models.Alert{
			UserID:    userID,
			Symbol:    symbol,
			Direction: models.DirectionAbove,
			Threshold: decimal.NewFromInt(100),
		}
		if err := repo.Create(context.Background(), alert); err != nil {
			t.Fatalf("Create %s failed: %v", symbol, err)
		}
	}
	other := &models.Alert{
		UserID:    otherID,
		Symbol:    "DOGE",
		Direction: models.DirectionBelow,
		Threshold: decimal.NewFromInt(1),
	}
	if err := repo.Create(context.Background(), other); err != nil {
		t.Fatalf("Create DOGE failed: %v", err)
	}

	active, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 4 {
		t.Fatalf("Active count mismatch. Expected: 4, Got: %d", len(active))
	}
	for i := 1; i < len(active); i++ {
		if active[i].ID < active[i-1].ID {
			t.Errorf("Expected active alerts in insertion order, got IDs %d before %d", active[i-1].ID, active[i].ID)
		}
	}

	mine, err := repo.ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(mine) != 3 {
		t.Fatalf("User alert count mismatch. Expected: 3, Got: %d", len(mine))
	}
	for i := 1; i < len(mine); i++ {
		if mine[i].ID > mine[i-1].ID {
			t.Errorf("Expected newest first, got IDs %d before %d", mine[i-1].ID, mine[i].ID)
		}
	}
	for _, alert := range mine {
		if alert.Symbol == "DOGE" {
			t.Error("ListByUser leaked another user's alert")
		}
	}
}

func TestRepositoryMarkTriggered(t *testing.T) {
	db := testdb.Setup(t)
	testdb.Truncate(t, db, "price_alerts", "users")

	repo := NewRepository(db)
	userID := seedUser(t, db, "alice", "alice@example.com")

	first := &models.Alert{
		UserID:    userID,
		Symbol:    "BTC",
		Direction: models.DirectionAbove,
		Threshold: decimal.NewFromInt(60000),
	}
	second := &models.Alert{
		UserID:    userID,
		Symbol:    "ETH",
		Direction: models.DirectionBelow,
		Threshold: decimal.NewFromInt(2000),
	}
	for _, alert := range []*models.Alert{first, second} {
		if err := repo.Create(context.Background(), alert); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	firedAt := time.Now().UTC().Truncate(time.Microsecond)
	first.MarkTriggered(firedAt)
	if err := repo.MarkTriggered(context.Background(), []models.Alert{*first}); err != nil {
		t.Fatalf("MarkTriggered failed: %v", err)
	}

	active, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("Expected only the untouched alert to stay active, got %+v", active)
	}

	all, err := repo.ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	for _, alert := range all {
		if alert.ID != first.ID {
			continue
		}
		if alert.IsActive {
			t.Error("Expected fired alert to be deactivated")
		}
		if alert.TriggeredAt == nil {
			t.Fatal("Expected trigger timestamp to be persisted")
		}
		if !alert.TriggeredAt.Equal(firedAt) {
			t.Errorf("Trigger timestamp mismatch. Expected: %v, Got: %v", firedAt, *alert.TriggeredAt)
		}
	}

	// Re-marking an already fired alert must not error.
	if err := repo.MarkTriggered(context.Background(), []models.Alert{*first}); err != nil {
		t.Fatalf("Repeated MarkTriggered failed: %v", err)
	}
	if err := repo.MarkTriggered(context.Background(), nil); err != nil {
		t.Fatalf("Empty MarkTriggered failed: %v", err)
	}
}
