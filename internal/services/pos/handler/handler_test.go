package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"storeline-pos/config"
	"storeline-pos/internal/database/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		ReturnApprovalThreshold: "500.00",
		ReturnApprovalMaxQty:    3,
		CreditDueSoonDays:       7,
		CashDifferenceSignoff:   false,
		DefaultTaxRate:          "16",
	}
}

func newTestHandler(t *testing.T) *POSHandler {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.MigratePOSDB(db))

	return NewPOSHandler(db, nil, zap.NewNop(), testPolicy())
}

func testRouter(s *POSHandler) *gin.Engine {
	r := gin.New()
	pos := r.Group("/pos")
	{
		pos.GET("/products", s.ListProducts)
		pos.GET("/products/:code", s.GetProductByCode)
		pos.GET("/tax-rates", s.ListTaxRates)

		pos.POST("/carts", s.CreateCart)
		pos.GET("/carts/:id", s.GetCart)
		pos.POST("/carts/:id/lines", s.AddCartLine)
		pos.PUT("/carts/:id/lines/:lineId", s.UpdateCartLine)
		pos.DELETE("/carts/:id/lines/:lineId", s.RemoveCartLine)
		pos.POST("/carts/:id/payments", s.AddCartPayment)
		pos.PUT("/carts/:id/payments/:paymentId", s.UpdateCartPayment)
		pos.DELETE("/carts/:id/payments/:paymentId", s.RemoveCartPayment)

		pos.POST("/sessions", s.OpenSession)
		pos.POST("/sessions/:id/close", s.CloseSession)
		pos.GET("/stores/:storeId/sessions/last", s.GetLastSession)

		pos.POST("/sales", s.SubmitSale)
		pos.GET("/sales/:id", s.GetSale)

		pos.POST("/returns", s.RegisterReturn)
		pos.GET("/returns/:id", s.GetReturn)

		pos.GET("/credit-schedules/:id", s.GetCreditSchedule)
		pos.POST("/credit-schedules/:id/installments/:seq/pay", s.MarkInstallmentPaid)
	}
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w.Code, parsed
}

// -- Seed helpers --

func seedProduct(t *testing.T, s *POSHandler, code, price string) models.Product {
	t.Helper()
	product := models.Product{
		ProductCode: code,
		ProductName: "Product " + code,
		UnitPrice:   price,
		IsActive:    true,
	}
	require.NoError(t, s.db.Create(&product).Error)
	return product
}

func seedSupervisor(t *testing.T, s *POSHandler, username, pin string) models.Supervisor {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)
	supervisor := models.Supervisor{
		Username: username,
		PINHash:  string(hash),
		IsActive: true,
	}
	require.NoError(t, s.db.Create(&supervisor).Error)
	return supervisor
}

func openTestSession(t *testing.T, s *POSHandler, r *gin.Engine, storeID int64, opening string) int64 {
	t.Helper()
	code, body := doJSON(t, r, http.MethodPost, "/pos/sessions", gin.H{
		"store_id":       storeID,
		"opened_by":      int64(1),
		"opening_amount": opening,
		"reason":         "start of business day",
	})
	require.Equal(t, http.StatusOK, code)
	session := body["session"].(map[string]any)
	return int64(session["id"].(float64))
}

func createCartWithLine(t *testing.T, s *POSHandler, r *gin.Engine, storeID int64, product models.Product, qty int32) int64 {
	t.Helper()
	code, body := doJSON(t, r, http.MethodPost, "/pos/carts", gin.H{
		"store_id":   storeID,
		"cashier_id": int64(1),
	})
	require.Equal(t, http.StatusOK, code)
	cartID := int64(body["cart"].(map[string]any)["id"].(float64))

	code, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/pos/carts/%d/lines", cartID), gin.H{
		"product_id": product.ID,
		"quantity":   qty,
	})
	require.Equal(t, http.StatusOK, code)
	return cartID
}

func fixedTime(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
