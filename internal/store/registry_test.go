package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/eventsite/registry/internal/db"
	"github.com/eventsite/registry/internal/model"
)

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, "Dutch oven", "https://shop.example/oven", price("89.50"), "https://img.example/oven.jpg", 2)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Name != "Dutch oven" {
		t.Errorf("expected name 'Dutch oven', got %q", item.Name)
	}
	if item.Status != model.StatusAvailable {
		t.Errorf("expected status AVAILABLE, got %q", item.Status)
	}
	if item.QuantityClaimed != 0 || item.QuantityNeeded != 2 {
		t.Errorf("expected 0/2 claimed, got %d/%d", item.QuantityClaimed, item.QuantityNeeded)
	}
	if !item.Price.Valid || !item.Price.Decimal.Equal(decimal.RequireFromString("89.5")) {
		t.Errorf("expected price 89.50, got %v", item.Price)
	}
	if item.ImageURL == nil || *item.ImageURL != "https://img.example/oven.jpg" {
		t.Errorf("expected image url, got %v", item.ImageURL)
	}
	if item.LastClaimedAt != nil {
		t.Errorf("expected no last claimed time, got %v", item.LastClaimedAt)
	}

	got, err := GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil || got.Link != "https://shop.example/oven" {
		t.Errorf("expected stored link, got %+v", got)
	}
}

func TestCreateItemWithoutPrice(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, "Mystery", "https://shop.example/x", decimal.NullDecimal{}, "", 1)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Price.Valid {
		t.Errorf("expected null price, got %v", item.Price.Decimal)
	}
	if item.ImageURL != nil {
		t.Errorf("expected null image url, got %q", *item.ImageURL)
	}
}

func TestCreateItemRejectsZeroQuantity(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := CreateItem(context.Background(), database, "Bad", "https://shop.example/bad", decimal.NullDecimal{}, "", 0)
	if err == nil {
		t.Error("expected error for zero quantity")
	}
}

func TestGetMissingItem(t *testing.T) {
	database := db.NewTestDB(t)

	got, err := GetItem(context.Background(), database, 999)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing item, got %+v", got)
	}
}

func TestListItemsByStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateItem(ctx, database, "Towels", "https://shop.example/towels", decimal.NullDecimal{}, "", 1)
	blender, _ := CreateItem(ctx, database, "Blender", "https://shop.example/blender", decimal.NullDecimal{}, "", 1)
	ClaimItem(ctx, database, blender.ID, "")

	all, _ := ListItems(ctx, database, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 items, got %d", len(all))
	}
	if all[0].Name != "Towels" {
		t.Errorf("expected creation order, got %q first", all[0].Name)
	}

	fulfilled, _ := ListItems(ctx, database, model.StatusFulfilled)
	if len(fulfilled) != 1 || fulfilled[0].ID != blender.ID {
		t.Errorf("expected only the blender to be fulfilled, got %v", fulfilled)
	}
}

func TestUpdateItemPartial(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Plates", "https://shop.example/plates", price("40"), "", 4)

	newName := "Dinner plates"
	newPrice := price("42.00")
	got, err := UpdateItem(ctx, database, item.ID, ItemUpdate{Name: &newName, Price: &newPrice})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got.Name != "Dinner plates" {
		t.Errorf("expected updated name, got %q", got.Name)
	}
	if got.Link != "https://shop.example/plates" {
		t.Errorf("expected link unchanged, got %q", got.Link)
	}
	if !got.Price.Valid || !got.Price.Decimal.Equal(newPrice.Decimal) {
		t.Errorf("expected price 42, got %v", got.Price.Decimal)
	}
	if got.QuantityNeeded != 4 {
		t.Errorf("expected quantity unchanged, got %d", got.QuantityNeeded)
	}
}

func TestUpdateItemClearsPrice(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Candles", "https://shop.example/candles", price("18.25"), "", 1)

	cleared := decimal.NullDecimal{}
	got, err := UpdateItem(ctx, database, item.ID, ItemUpdate{Price: &cleared})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got.Price.Valid {
		t.Errorf("expected price cleared, got %v", got.Price.Decimal)
	}

	newName := "Beeswax candles"
	got, _ = UpdateItem(ctx, database, item.ID, ItemUpdate{Name: &newName})
	if got.Price.Valid {
		t.Errorf("expected price to stay cleared, got %v", got.Price.Decimal)
	}
}

func TestUpdateItemQuantityRederivesStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Glasses", "https://shop.example/glasses", decimal.NullDecimal{}, "", 3)
	ClaimItem(ctx, database, item.ID, "")
	ClaimItem(ctx, database, item.ID, "")

	two := 2
	got, err := UpdateItem(ctx, database, item.ID, ItemUpdate{QuantityNeeded: &two})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got.Status != model.StatusFulfilled {
		t.Errorf("expected FULFILLED after lowering need to claimed count, got %q", got.Status)
	}

	one := 1
	_, err = UpdateItem(ctx, database, item.ID, ItemUpdate{QuantityNeeded: &one})
	if !errors.Is(err, ErrQuantityBelowClaimed) {
		t.Errorf("expected ErrQuantityBelowClaimed, got %v", err)
	}
}

func TestUpdateMissingItem(t *testing.T) {
	database := db.NewTestDB(t)

	name := "x"
	_, err := UpdateItem(context.Background(), database, 42, ItemUpdate{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetItemStatusAvailableResetsQuantity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Lamp", "https://shop.example/lamp", decimal.NullDecimal{}, "", 2)
	ClaimItem(ctx, database, item.ID, "")
	ClaimItem(ctx, database, item.ID, "")

	got, err := SetItemStatus(ctx, database, item.ID, model.StatusAvailable)
	if err != nil {
		t.Fatalf("SetItemStatus: %v", err)
	}
	if got.Status != model.StatusAvailable || got.QuantityClaimed != 0 {
		t.Errorf("expected AVAILABLE with 0 claimed, got %s with %d", got.Status, got.QuantityClaimed)
	}

	// The item is claimable again after re-listing.
	if _, err := ClaimItem(ctx, database, item.ID, ""); err != nil {
		t.Errorf("expected claim after re-listing to succeed, got %v", err)
	}
}

func TestSetItemStatusKeepsQuantity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Rug", "https://shop.example/rug", decimal.NullDecimal{}, "", 3)
	ClaimItem(ctx, database, item.ID, "")

	got, err := SetItemStatus(ctx, database, item.ID, model.StatusFulfilled)
	if err != nil {
		t.Fatalf("SetItemStatus: %v", err)
	}
	if got.Status != model.StatusFulfilled || got.QuantityClaimed != 1 {
		t.Errorf("expected FULFILLED with 1 claimed, got %s with %d", got.Status, got.QuantityClaimed)
	}

	// A forced FULFILLED item rejects claims even with quantity left.
	if _, err := ClaimItem(ctx, database, item.ID, ""); !errors.Is(err, ErrAlreadyFulfilled) {
		t.Errorf("expected ErrAlreadyFulfilled, got %v", err)
	}
}

func TestSetItemStatusMissing(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := SetItemStatus(context.Background(), database, 5, model.StatusClaimed)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteItemCascadesClaims(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Vase", "https://shop.example/vase", decimal.NullDecimal{}, "", 3)
	other, _ := CreateItem(ctx, database, "Frame", "https://shop.example/frame", decimal.NullDecimal{}, "", 1)
	ClaimItem(ctx, database, item.ID, "10.0.0.1")
	ClaimItem(ctx, database, item.ID, "10.0.0.2")
	ClaimItem(ctx, database, other.ID, "10.0.0.3")

	if err := DeleteItem(ctx, database, item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got != nil {
		t.Error("expected item to be gone")
	}

	attempts, _ := ListClaimAttempts(ctx, database, item.ID)
	if len(attempts) != 0 {
		t.Errorf("expected no claim attempts for deleted item, got %d", len(attempts))
	}

	total, _ := CountClaimAttempts(ctx, database)
	if total != 1 {
		t.Errorf("expected only the other item's claim to remain, got %d", total)
	}

	if err := DeleteItem(ctx, database, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestItemImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, "Photo Item", "https://shop.example/p", decimal.NullDecimal{}, "", 1)
	if err := SetItemImage(ctx, database, item.ID, []byte("fake image data"), "image/jpeg", "/api/registry/1/image"); err != nil {
		t.Fatalf("SetItemImage: %v", err)
	}

	data, mime, err := GetItemImage(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItemImage: %v", err)
	}
	if string(data) != "fake image data" {
		t.Errorf("expected image data, got %q", string(data))
	}
	if mime != "image/jpeg" {
		t.Errorf("expected mime 'image/jpeg', got %q", mime)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.ImageURL == nil || *got.ImageURL != "/api/registry/1/image" {
		t.Errorf("expected image url to point at stored photo, got %v", got.ImageURL)
	}

	if err := SetItemImage(ctx, database, 999, []byte("x"), "image/jpeg", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing item, got %v", err)
	}
}
