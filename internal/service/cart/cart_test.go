package cart

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/prowisla/shop/internal/models"
	"github.com/prowisla/shop/internal/service/catalog"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.Cart{}, &models.CartItem{},
	))

	return &Service{DB: db, Catalog: &catalog.Service{DB: db}}, db
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, salePrice string, stock int) *models.Product {
	t.Helper()

	p := models.Product{
		Name:    name,
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
		InStock: true,
	}
	if salePrice != "" {
		sp := decimal.RequireFromString(salePrice)
		p.SalePrice = &sp
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got),
		"want %s, got %s", want, got.String())
}

func TestGetOrCreateIsLazyAndStable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	key := SessionKey("sess-1")
	first, err := svc.GetOrCreate(ctx, key)
	require.NoError(t, err)
	require.Empty(t, first.Items)

	second, err := svc.GetOrCreate(ctx, key)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateRequiresOwner(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetOrCreate(context.Background(), OwnerKey{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAddItemRecomputesTotals(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	key := UserKey(uuid.New())

	a := seedProduct(t, db, "A", "100.00", "", 10)
	b := seedProduct(t, db, "B", "50.00", "", 10)

	_, err := svc.AddItem(ctx, key, a.ID, nil, 2)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, key, b.ID, nil, 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	requireAmount(t, "250.00", cart.TotalAmount)
	require.Equal(t, 3, cart.ItemCount)
}

func TestAddItemMergesSameProductVariantPair(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	key := SessionKey("sess-merge")

	p := seedProduct(t, db, "A", "10.00", "", 10)

	_, err := svc.AddItem(ctx, key, p.ID, nil, 1)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, key, p.ID, nil, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	require.Equal(t, 3, cart.Items[0].Quantity)
	requireAmount(t, "30.00", cart.Items[0].TotalPrice)
	require.Equal(t, 3, cart.ItemCount)
}

func TestAddItemDistinguishesVariants(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	key := SessionKey("sess-variant")

	p := seedProduct(t, db, "A", "10.00", "", 10)
	variant := uuid.New()

	_, err := svc.AddItem(ctx, key, p.ID, nil, 1)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, key, p.ID, &variant, 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
}

func TestAddItemUsesSalePrice(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	key := SessionKey("sess-sale")

	p := seedProduct(t, db, "A", "100.00", "80.00", 10)

	cart, err := svc.AddItem(ctx, key, p.ID, nil, 1)
	require.NoError(t, err)
	requireAmount(t, "80.00", cart.Items[0].Price)
	requireAmount(t, "80.00", cart.TotalAmount)
}

func TestAddItemKeepsCapturedPrice(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	key := SessionKey("sess-captured")

	p := seedProduct(t, db, "A", "100.00", "", 10)
	_, err := svc.AddItem(ctx, key, p.ID, nil, 1)
	require.NoError(t, err)

	// Catalog re-pricing must not touch the existing line.
	require.NoError(t, svc.DB.Model(&models.Product{}).
		Where("id = ?", p.ID).
		Update("price", decimal.RequireFromString("150.00")).Error)

	cart, err := svc.AddItem(ctx, key, p.ID, nil, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	requireAmount(t, "100.00", cart.Items[0].Price)
	requireAmount(t, "200.00", cart.TotalAmount)
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddItem(context.Background(), SessionKey("s"), uuid.New(), nil, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc, db := newTestService(t)
	p := seedProduct(t, db, "A", "10.00", "", 10)

	_, err := svc.AddItem(context.Background(), SessionKey("s"), p.ID, nil, 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateItemQuantityZeroRemovesLine(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	key := SessionKey("sess-upd")

	p := seedProduct(t, db, "A", "10.00", "", 10)
	cart, err := svc.AddItem(ctx, key, p.ID, nil, 2)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	cart, err = svc.UpdateItemQuantity(ctx, key, itemID, 0)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
	requireAmount(t, "0.00", cart.TotalAmount)
	require.Equal(t, 0, cart.ItemCount)
}

func TestUpdateItemQuantitySetsNewTotal(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	key := SessionKey("sess-upd2")

	p := seedProduct(t, db, "A", "9.99", "", 10)
	cart, err := svc.AddItem(ctx, key, p.ID, nil, 1)
	require.NoError(t, err)

	cart, err = svc.UpdateItemQuantity(ctx, key, cart.Items[0].ID, 3)
	require.NoError(t, err)
	require.Equal(t, 3, cart.Items[0].Quantity)
	requireAmount(t, "29.97", cart.Items[0].TotalPrice)
	requireAmount(t, "29.97", cart.TotalAmount)
}

func TestUpdateItemQuantityForeignItem(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	p := seedProduct(t, db, "A", "10.00", "", 10)
	other, err := svc.AddItem(ctx, SessionKey("other"), p.ID, nil, 1)
	require.NoError(t, err)

	_, err = svc.UpdateItemQuantity(ctx, SessionKey("mine"), other.Items[0].ID, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	key := SessionKey("sess-rm")

	cart, err := svc.RemoveItem(ctx, key, uuid.New())
	require.NoError(t, err)
	require.Empty(t, cart.Items)
}

func TestClearEmptyCartIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)

	cart, err := svc.Clear(context.Background(), SessionKey("sess-clear"))
	require.NoError(t, err)
	require.Empty(t, cart.Items)
	require.Equal(t, 0, cart.ItemCount)
}

func TestMergeGuestCombinesQuantitiesAndDeletesGuestCart(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	const sessionID = "sess-guest"

	a := seedProduct(t, db, "A", "10.00", "", 10)
	b := seedProduct(t, db, "B", "20.00", "", 10)

	_, err := svc.AddItem(ctx, UserKey(userID), a.ID, nil, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, SessionKey(sessionID), a.ID, nil, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, SessionKey(sessionID), b.ID, nil, 1)
	require.NoError(t, err)

	merged, err := svc.MergeGuest(ctx, sessionID, userID)
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	require.Equal(t, 4, merged.ItemCount)
	requireAmount(t, "50.00", merged.TotalAmount)

	var gone models.Cart
	err = db.Where("session_id = ?", sessionID).First(&gone).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMergeGuestWithoutGuestCart(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	p := seedProduct(t, db, "A", "10.00", "", 10)
	_, err := svc.AddItem(ctx, UserKey(userID), p.ID, nil, 1)
	require.NoError(t, err)

	merged, err := svc.MergeGuest(ctx, "never-seen", userID)
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
}

func TestTotalsAlwaysMatchLineSum(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	key := SessionKey("sess-invariant")

	a := seedProduct(t, db, "A", "3.33", "", 10)
	b := seedProduct(t, db, "B", "7.77", "", 10)

	_, err := svc.AddItem(ctx, key, a.ID, nil, 3)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, key, b.ID, nil, 2)
	require.NoError(t, err)

	checkInvariant := func(c *models.Cart) {
		t.Helper()
		sum := decimal.Zero
		count := 0
		for _, it := range c.Items {
			sum = sum.Add(it.TotalPrice)
			count += it.Quantity
		}
		require.True(t, sum.Equal(c.TotalAmount), "total %s != sum %s", c.TotalAmount, sum)
		require.Equal(t, count, c.ItemCount)
	}
	checkInvariant(cart)

	cart, err = svc.UpdateItemQuantity(ctx, key, cart.Items[0].ID, 1)
	require.NoError(t, err)
	checkInvariant(cart)

	cart, err = svc.RemoveItem(ctx, key, cart.Items[0].ID)
	require.NoError(t, err)
	checkInvariant(cart)

	cart, err = svc.Clear(ctx, key)
	require.NoError(t, err)
	checkInvariant(cart)
}
