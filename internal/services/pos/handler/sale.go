package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storeline-pos/internal/database/models"
	"storeline-pos/internal/pos/money"
	"storeline-pos/internal/pos/schedule"
)

type CreditTermsRequest struct {
	Count        int32  `json:"count" binding:"required"`
	Frequency    string `json:"frequency" binding:"required"`
	FirstDueDate string `json:"first_due_date" binding:"required"`
}

type SubmitSaleRequest struct {
	StoreID     int64               `json:"store_id" binding:"required"`
	CashierID   int64               `json:"cashier_id" binding:"required"`
	CartID      int64               `json:"cart_id" binding:"required"`
	CustomerID  *int64              `json:"customer_id,omitempty"`
	SessionID   *int64              `json:"session_id,omitempty"`
	Note        *string             `json:"note,omitempty"`
	CreditTerms *CreditTermsRequest `json:"credit_terms,omitempty"`
	Reason      string              `json:"reason" binding:"required"`
}

func newReceiptNumber(prefix string, storeID int64) string {
	return fmt.Sprintf("%s-%d-%s", prefix, storeID, strings.ToUpper(uuid.NewString()[:8]))
}

// SubmitSale is the atomic commit of cart, ledger and session. Everything
// happens in one transaction: the sale and its items, payment breakdown,
// session accumulator updates and the credit schedule. On any failure
// nothing is written and the cart stays draft for a manual retry.
func (s *POSHandler) SubmitSale(c *gin.Context) {
	var req SubmitSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "store_id, cashier_id, cart_id and reason required")
		return
	}
	if !validReason(req.Reason) {
		respondInvalid(c, "reason must be at least 5 characters")
		return
	}

	var firstDue time.Time
	if req.CreditTerms != nil {
		parsed, err := time.Parse("2006-01-02", req.CreditTerms.FirstDueDate)
		if err != nil {
			respondInvalid(c, "first_due_date must be YYYY-MM-DD")
			return
		}
		firstDue = parsed
	}

	var sale models.Sale
	var creditSchedule *models.CreditSchedule

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := lockForUpdate(tx).
			Where("id = ? AND status = ?", req.CartID, models.CartDraft).
			Preload("Lines.Product").
			Preload("Payments").
			First(&cart).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				respondNotFound(c, "Cart not found or already committed")
				return errHandled
			}
			return err
		}

		if len(cart.Lines) == 0 {
			respondRejected(c, CodeCartEmpty, "Cart has no lines to commit", nil)
			return errHandled
		}

		session, err := s.resolveOpenSession(tx, req.StoreID, req.SessionID)
		if err != nil {
			return err
		}
		if session == nil {
			respondRejected(c, CodeSessionNotOpen, "No open session for this store", nil)
			return errHandled
		}

		totalDue := mustDecimal(cart.TotalDue)

		// empty ledger defaults to the full total in cash
		payments := cart.Payments
		if len(payments) == 0 {
			payments = []models.CartPayment{{Method: models.MethodCash, Amount: fmtMoney(totalDue)}}
		}

		paid := decimal.Zero
		creditAmount := decimal.Zero
		for _, p := range payments {
			amount := mustDecimal(p.Amount)
			paid = paid.Add(amount)
			if p.Method == models.MethodCredit {
				creditAmount = creditAmount.Add(amount)
			}
		}

		if creditAmount.IsPositive() && req.CreditTerms == nil {
			respondInvalid(c, "credit_terms required for sales with a CREDIT payment")
			return errHandled
		}

		now := time.Now()
		sale = models.Sale{
			ReceiptNumber:  newReceiptNumber("SAL", req.StoreID),
			StoreID:        req.StoreID,
			CashierID:      req.CashierID,
			CustomerID:     req.CustomerID,
			SessionID:      &session.ID,
			Subtotal:       cart.Subtotal,
			DiscountAmount: cart.DiscountAmount,
			TaxableBase:    cart.TaxableBase,
			TaxAmount:      cart.TaxAmount,
			TaxRatePct:     s.cartTaxRate(tx, cart),
			TotalDue:       cart.TotalDue,
			PaidAmount:     fmtMoney(paid),
			PendingAmount:  fmtMoney(totalDue.Sub(paid)),
			Status:         models.SaleCommitted,
			Note:           req.Note,
			SoldAt:         &now,
		}
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}

		for _, line := range cart.Lines {
			calc := money.Line{
				Quantity:  line.Quantity,
				UnitPrice: mustDecimal(line.UnitPrice),
			}
			discountPct := "0"
			if line.DiscountPercent != nil {
				discountPct = *line.DiscountPercent
				calc.DiscountPercent = mustDecimal(*line.DiscountPercent)
			}

			item := models.SaleItem{
				SaleID:          sale.ID,
				ProductID:       line.ProductID,
				DeviceID:        line.DeviceID,
				IMEI:            line.IMEI,
				Quantity:        line.Quantity,
				UnitPrice:       line.UnitPrice,
				DiscountPercent: discountPct,
				DiscountAmount:  fmtMoney(money.DiscountAmount(calc)),
				LineTotal:       fmtMoney(money.LineTotal(calc)),
				CreatedAt:       now,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}

		for _, p := range payments {
			salePayment := models.SalePayment{
				SaleID:    sale.ID,
				Method:    p.Method,
				Amount:    p.Amount,
				CreatedAt: now,
			}
			if err := tx.Create(&salePayment).Error; err != nil {
				return err
			}
		}

		if err := s.accumulatePayments(tx, session, payments, false); err != nil {
			return err
		}

		if creditAmount.IsPositive() {
			installments, err := schedule.Generate(creditAmount, req.CreditTerms.Count, req.CreditTerms.Frequency, firstDue)
			if err != nil {
				respondInvalid(c, "Invalid credit terms: "+err.Error())
				return errHandled
			}

			cs := models.CreditSchedule{
				SaleID:       sale.ID,
				CustomerID:   req.CustomerID,
				TotalAmount:  fmtMoney(creditAmount),
				Count:        req.CreditTerms.Count,
				Frequency:    req.CreditTerms.Frequency,
				FirstDueDate: firstDue,
			}
			if err := tx.Create(&cs).Error; err != nil {
				return err
			}
			for _, inst := range installments {
				row := models.CreditInstallment{
					ScheduleID: cs.ID,
					Sequence:   inst.Sequence,
					DueDate:    inst.DueDate,
					Amount:     fmtMoney(inst.Amount),
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			creditSchedule = &cs
		}

		// commit clears the draft
		return tx.Model(&models.Cart{}).Where("id = ?", cart.ID).
			Update("status", models.CartCommitted).Error
	})
	if err == errHandled {
		return
	}
	if err != nil {
		s.respondError(c, "Failed to commit sale: "+err.Error(), err)
		return
	}

	if err := s.db.Where("id = ?", sale.ID).
		Preload("Items.Product").
		Preload("Payments").
		First(&sale).Error; err != nil {
		s.respondError(c, "Failed to reload sale", err)
		return
	}

	s.publishPOSEvent(c.Request.Context(), POSEvent{
		EventType:      EventSaleCommitted,
		DocumentNumber: sale.ReceiptNumber,
		StoreID:        sale.StoreID,
		ActorID:        sale.CashierID,
		TotalAmount:    sale.TotalDue,
		Timestamp:      time.Now(),
		Payload:        &sale,
	})

	extra := gin.H{"sale": sale}
	if creditSchedule != nil {
		extra["credit_schedule"] = s.scheduleView(*creditSchedule)
	}
	respondOK(c, "Sale committed successfully", extra)
}

func (s *POSHandler) GetSale(c *gin.Context) {
	saleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid sale_id format")
		return
	}

	var sale models.Sale
	if err := s.db.Where("id = ?", saleID).
		Preload("Items.Product").
		Preload("Payments").
		Preload("Session").
		First(&sale).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondNotFound(c, "Sale not found")
			return
		}
		s.respondError(c, "Database error", err)
		return
	}

	extra := gin.H{"sale": sale}

	var cs models.CreditSchedule
	if err := s.db.Where("sale_id = ?", saleID).
		Preload("Installments").
		First(&cs).Error; err == nil {
		extra["credit_schedule"] = s.scheduleView(cs)
	}

	respondOK(c, "", extra)
}

// resolveOpenSession validates an explicit session id or falls back to the
// store's current OPEN session.
func (s *POSHandler) resolveOpenSession(tx *gorm.DB, storeID int64, sessionID *int64) (*models.CashSession, error) {
	if sessionID != nil {
		var session models.CashSession
		err := lockForUpdate(tx).
			Where("id = ? AND store_id = ? AND status = ?", *sessionID, storeID, models.SessionOpen).
			First(&session).Error
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &session, nil
	}
	return openSessionForStore(tx, storeID)
}

// accumulatePayments folds a payment breakdown into the session's
// per-method totals. Negative folds reverse returned amounts.
func (s *POSHandler) accumulatePayments(tx *gorm.DB, session *models.CashSession, payments []models.CartPayment, negate bool) error {
	for _, p := range payments {
		amount := mustDecimal(p.Amount)
		if negate {
			amount = amount.Neg()
		}
		switch p.Method {
		case models.MethodCash:
			session.CashTotal = fmtMoney(mustDecimal(session.CashTotal).Add(amount))
		case models.MethodCard:
			session.CardTotal = fmtMoney(mustDecimal(session.CardTotal).Add(amount))
		case models.MethodTransfer:
			session.TransferTotal = fmtMoney(mustDecimal(session.TransferTotal).Add(amount))
		case models.MethodCredit:
			session.CreditTotal = fmtMoney(mustDecimal(session.CreditTotal).Add(amount))
		}
	}
	return tx.Model(&models.CashSession{}).Where("id = ?", session.ID).Updates(map[string]interface{}{
		"cash_total":     session.CashTotal,
		"card_total":     session.CardTotal,
		"transfer_total": session.TransferTotal,
		"credit_total":   session.CreditTotal,
		"updated_at":     time.Now(),
	}).Error
}

// cartTaxRate re-resolves the ambient rate the cart was priced under so the
// committed sale records it.
func (s *POSHandler) cartTaxRate(tx *gorm.DB, cart models.Cart) string {
	var taxCode *string
	for i := range cart.Lines {
		if cart.Lines[i].TaxCode != nil {
			taxCode = cart.Lines[i].TaxCode
			break
		}
	}
	return s.resolveTaxRate(tx, taxCode)
}
