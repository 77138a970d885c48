package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeline-pos/internal/database/models"
)

// commitCreditSale finances the whole sale over three monthly installments
// starting 2025-01-01 and returns the schedule id.
func commitCreditSale(t *testing.T, s *POSHandler, r *gin.Engine) int64 {
	t.Helper()
	s.policy.DefaultTaxRate = "0"
	product := seedProduct(t, s, "SKU-CSCHED", "300.00")
	openTestSession(t, s, r, 1, "100.00")
	cartID := createCartWithLine(t, s, r, 1, product, 1)

	code, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/pos/carts/%d/payments", cartID), gin.H{
		"method": "CREDIT", "amount": "300.00",
	})
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, r, http.MethodPost, "/pos/sales", gin.H{
		"store_id":   1,
		"cashier_id": 1,
		"cart_id":    cartID,
		"reason":     "financed purchase",
		"credit_terms": gin.H{
			"count": 3, "frequency": "monthly", "first_due_date": "2025-01-01",
		},
	})
	require.Equal(t, http.StatusOK, code)
	return int64(body["credit_schedule"].(map[string]any)["id"].(float64))
}

func installmentStatuses(t *testing.T, r *gin.Engine, scheduleID int64) []string {
	t.Helper()
	code, body := doJSON(t, r, http.MethodGet, fmt.Sprintf("/pos/credit-schedules/%d", scheduleID), nil)
	require.Equal(t, http.StatusOK, code)

	installments := body["credit_schedule"].(map[string]any)["installments"].([]any)
	statuses := make([]string, 0, len(installments))
	for _, inst := range installments {
		statuses = append(statuses, inst.(map[string]any)["status"].(string))
	}
	return statuses
}

func TestScheduleStatusesDeriveFromClock(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)
	scheduleID := commitCreditSale(t, s, r)

	// both elapsed due dates read overdue until someone marks them paid
	s.now = func() time.Time { return fixedTime(2025, time.February, 15) }
	assert.Equal(t, []string{"overdue", "overdue", "pending"}, installmentStatuses(t, r, scheduleID))

	// moving the clock inside the lookahead window flips the third one
	s.now = func() time.Time { return fixedTime(2025, time.February, 26) }
	assert.Equal(t, []string{"overdue", "overdue", "due_soon"}, installmentStatuses(t, r, scheduleID))
}

func TestMarkInstallmentPaidIsOneWay(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)
	scheduleID := commitCreditSale(t, s, r)
	s.now = func() time.Time { return fixedTime(2025, time.February, 15) }

	payURL := fmt.Sprintf("/pos/credit-schedules/%d/installments/1/pay", scheduleID)
	code, body := doJSON(t, r, http.MethodPost, payURL, gin.H{
		"paid_by": 1,
		"reason":  "customer paid at register",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paid", body["installment"].(map[string]any)["status"])

	// paid overrides overdue and siblings are untouched
	assert.Equal(t, []string{"paid", "overdue", "pending"}, installmentStatuses(t, r, scheduleID))

	// repeating the action changes nothing and says so
	code, body = doJSON(t, r, http.MethodPost, payURL, gin.H{
		"paid_by": 1,
		"reason":  "duplicate click at register",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Installment already paid", body["message"])

	var installment models.CreditInstallment
	require.NoError(t, s.db.Where("schedule_id = ? AND sequence = ?", scheduleID, 1).First(&installment).Error)
	assert.True(t, installment.Paid)
	require.NotNil(t, installment.PaidAt)
	firstPaidAt := *installment.PaidAt

	code, _ = doJSON(t, r, http.MethodPost, payURL, gin.H{
		"paid_by": 1,
		"reason":  "triple click at register",
	})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, s.db.Where("schedule_id = ? AND sequence = ?", scheduleID, 1).First(&installment).Error)
	assert.True(t, installment.PaidAt.Equal(firstPaidAt))
}

func TestMarkInstallmentPaidValidation(t *testing.T) {
	s := newTestHandler(t)
	r := testRouter(s)
	scheduleID := commitCreditSale(t, s, r)

	code, _ := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/pos/credit-schedules/%d/installments/99/pay", scheduleID), gin.H{
			"paid_by": 1,
			"reason":  "customer paid at register",
		})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/pos/credit-schedules/%d/installments/1/pay", scheduleID), gin.H{
			"paid_by": 1,
			"reason":  "pay",
		})
	assert.Equal(t, http.StatusBadRequest, code)
}
