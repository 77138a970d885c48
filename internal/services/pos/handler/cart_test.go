package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartFromBody(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	cart, ok := body["cart"].(map[string]any)
	require.True(t, ok, "response has no cart: %v", body)
	return cart
}

func TestAddLineComputesTotals(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)
	product := seedProduct(t, s, "SKU-100", "100.00")

	code, body := doJSON(t, r, http.MethodPost, "/pos/carts", gin.H{
		"store_id": 1, "cashier_id": 1,
	})
	require.Equal(t, http.StatusOK, code)
	cartID := int64(cartFromBody(t, body)["id"].(float64))

	code, body = doJSON(t, r, http.MethodPost, fmt.Sprintf("/pos/carts/%d/lines", cartID), gin.H{
		"product_id":       product.ID,
		"quantity":         2,
		"discount_percent": "10",
	})
	require.Equal(t, http.StatusOK, code)

	cart := cartFromBody(t, body)
	assert.Equal(t, "200.00", cart["subtotal"])
	assert.Equal(t, "20.00", cart["discount_amount"])
	assert.Equal(t, "180.00", cart["taxable_base"])
	assert.Equal(t, "28.80", cart["tax_amount"])
	assert.Equal(t, "208.80", cart["total_due"])
}

func TestAddLineWithoutIdentityIsNoOp(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)

	code, body := doJSON(t, r, http.MethodPost, "/pos/carts", gin.H{
		"store_id": 1, "cashier_id": 1,
	})
	require.Equal(t, http.StatusOK, code)
	cartID := int64(cartFromBody(t, body)["id"].(float64))

	// no identity field
	code, body = doJSON(t, r, http.MethodPost, fmt.Sprintf("/pos/carts/%d/lines", cartID), gin.H{
		"quantity": 2,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, cartFromBody(t, body)["lines"])

	// non-positive quantity
	product := seedProduct(t, s, "SKU-1", "50.00")
	code, body = doJSON(t, r, http.MethodPost, fmt.Sprintf("/pos/carts/%d/lines", cartID), gin.H{
		"product_id": product.ID,
		"quantity":   0,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, cartFromBody(t, body)["lines"])
	assert.Equal(t, "0.00", cartFromBody(t, body)["total_due"])
}

func TestUpdateLineClearFields(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)
	product := seedProduct(t, s, "SKU-2", "100.00")
	cartID := createCartWithLine(t, s, r, 1, product, 1)

	_, body := doJSON(t, r, http.MethodGet, fmt.Sprintf("/pos/carts/%d", cartID), nil)
	lines := cartFromBody(t, body)["lines"].([]any)
	require.Len(t, lines, 1)
	lineID := int64(lines[0].(map[string]any)["id"].(float64))

	// apply a discount, then clear it again
	code, body := doJSON(t, r, http.MethodPut, fmt.Sprintf("/pos/carts/%d/lines/%d", cartID, lineID), gin.H{
		"discount_percent": "25",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "25.00", cartFromBody(t, body)["discount_amount"])

	code, body = doJSON(t, r, http.MethodPut, fmt.Sprintf("/pos/carts/%d/lines/%d", cartID, lineID), gin.H{
		"clear_fields": []string{"discount_percent"},
	})
	require.Equal(t, http.StatusOK, code)
	cart := cartFromBody(t, body)
	assert.Equal(t, "0.00", cart["discount_amount"])

	line := cart["lines"].([]any)[0].(map[string]any)
	_, hasDiscount := line["discount_percent"]
	assert.False(t, hasDiscount, "cleared field must be absent, not zero")
}

func TestUpdateLineClearPriceOverride(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)
	product := seedProduct(t, s, "SKU-3", "80.00")
	cartID := createCartWithLine(t, s, r, 1, product, 1)

	_, body := doJSON(t, r, http.MethodGet, fmt.Sprintf("/pos/carts/%d", cartID), nil)
	lineID := int64(cartFromBody(t, body)["lines"].([]any)[0].(map[string]any)["id"].(float64))

	code, body := doJSON(t, r, http.MethodPut, fmt.Sprintf("/pos/carts/%d/lines/%d", cartID, lineID), gin.H{
		"unit_price": "60.00",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "60.00", cartFromBody(t, body)["subtotal"])

	code, body = doJSON(t, r, http.MethodPut, fmt.Sprintf("/pos/carts/%d/lines/%d", cartID, lineID), gin.H{
		"clear_fields": []string{"unit_price"},
	})
	require.Equal(t, http.StatusOK, code)
	cart := cartFromBody(t, body)
	assert.Equal(t, "80.00", cart["subtotal"])

	line := cart["lines"].([]any)[0].(map[string]any)
	assert.Equal(t, false, line["price_overridden"])
}

func TestRemoveLineRecalculates(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)
	product := seedProduct(t, s, "SKU-4", "100.00")
	cartID := createCartWithLine(t, s, r, 1, product, 2)

	_, body := doJSON(t, r, http.MethodGet, fmt.Sprintf("/pos/carts/%d", cartID), nil)
	lineID := int64(cartFromBody(t, body)["lines"].([]any)[0].(map[string]any)["id"].(float64))

	code, body := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/pos/carts/%d/lines/%d", cartID, lineID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0.00", cartFromBody(t, body)["total_due"])

	code, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/pos/carts/%d/lines/%d", cartID, lineID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPaymentLedgerSurfacesPendingAmount(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)
	product := seedProduct(t, s, "SKU-5", "100.00")
	cartID := createCartWithLine(t, s, r, 1, product, 1) // total 116.00 with 16% tax

	code, body := doJSON(t, r, http.MethodPost, fmt.Sprintf("/pos/carts/%d/payments", cartID), gin.H{
		"method": "CASH",
		"amount": "50.00",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "50.00", body["paid_amount"])
	assert.Equal(t, "66.00", body["pending_amount"])

	// overpayment is surfaced, not blocked
	code, body = doJSON(t, r, http.MethodPost, fmt.Sprintf("/pos/carts/%d/payments", cartID), gin.H{
		"method": "CARD",
		"amount": "100.00",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "150.00", body["paid_amount"])
	assert.Equal(t, "-34.00", body["pending_amount"])
}

func TestPaymentLedgerRejectsBadMethod(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)
	product := seedProduct(t, s, "SKU-6", "10.00")
	cartID := createCartWithLine(t, s, r, 1, product, 1)

	code, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/pos/carts/%d/payments", cartID), gin.H{
		"method": "BARTER",
		"amount": "10.00",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/pos/carts/%d/payments", cartID), gin.H{
		"method": "CASH",
		"amount": "-5.00",
	})
	assert.Equal(t, http.StatusBadRequest, code)
}
