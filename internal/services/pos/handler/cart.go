package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storeline-pos/internal/database/models"
	"storeline-pos/internal/pos/money"
)

// Request structs
type CreateCartRequest struct {
	StoreID   int64 `json:"store_id" binding:"required"`
	CashierID int64 `json:"cashier_id" binding:"required"`
}

type AddCartLineRequest struct {
	ProductID       *int64  `json:"product_id,omitempty"`
	DeviceID        *int64  `json:"device_id,omitempty"`
	IMEI            *string `json:"imei,omitempty"`
	Quantity        int32   `json:"quantity"`
	UnitPrice       *string `json:"unit_price,omitempty"`
	DiscountPercent *string `json:"discount_percent,omitempty"`
	TaxCode         *string `json:"tax_code,omitempty"`
}

// UpdateCartLineRequest merges present fields into the line. ClearFields
// names fields to unset entirely; clearing is not the same as setting zero.
type UpdateCartLineRequest struct {
	Quantity        *int32  `json:"quantity,omitempty"`
	UnitPrice       *string `json:"unit_price,omitempty"`
	DiscountPercent *string `json:"discount_percent,omitempty"`
	TaxCode         *string `json:"tax_code,omitempty"`
	ClearFields     []string `json:"clear_fields,omitempty"`
}

type CartPaymentRequest struct {
	Method string `json:"method" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type UpdateCartPaymentRequest struct {
	Method *string `json:"method,omitempty"`
	Amount *string `json:"amount,omitempty"`
}

func validPaymentMethod(m string) bool {
	switch m {
	case models.MethodCash, models.MethodCard, models.MethodTransfer, models.MethodCredit:
		return true
	}
	return false
}

func (s *POSHandler) CreateCart(c *gin.Context) {
	var req CreateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "store_id and cashier_id required")
		return
	}

	cart := models.Cart{
		StoreID:        req.StoreID,
		CashierID:      req.CashierID,
		Status:         models.CartDraft,
		Subtotal:       "0.00",
		DiscountAmount: "0.00",
		TaxableBase:    "0.00",
		TaxAmount:      "0.00",
		TotalDue:       "0.00",
	}

	if err := s.db.Create(&cart).Error; err != nil {
		s.respondError(c, "Failed to create cart", err)
		return
	}

	respondOK(c, "Cart created successfully", gin.H{"cart": cart})
}

func (s *POSHandler) GetCart(c *gin.Context) {
	cart, ok := s.loadDraftCart(c)
	if !ok {
		return
	}
	respondOK(c, "", s.cartView(*cart))
}

// AddCartLine appends merchandise to a draft cart. Requests with no
// identity field or a non-positive quantity are treated as input noise:
// the cart is returned unchanged rather than erroring.
func (s *POSHandler) AddCartLine(c *gin.Context) {
	cart, ok := s.loadDraftCart(c)
	if !ok {
		return
	}

	var req AddCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondOK(c, "Line ignored", s.cartView(*cart))
		return
	}

	hasIdentity := req.ProductID != nil || req.DeviceID != nil || (req.IMEI != nil && *req.IMEI != "")
	if !hasIdentity || req.Quantity <= 0 {
		respondOK(c, "Line ignored", s.cartView(*cart))
		return
	}

	unitPrice := decimal.Zero
	overridden := false
	if req.UnitPrice != nil {
		p, ok := parseAmount(*req.UnitPrice)
		if !ok {
			respondOK(c, "Line ignored", s.cartView(*cart))
			return
		}
		unitPrice = p
		overridden = true
	} else if req.ProductID != nil {
		var product models.Product
		if err := s.db.Where("id = ? AND is_active = ?", *req.ProductID, true).First(&product).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				respondOK(c, "Line ignored", s.cartView(*cart))
				return
			}
			s.respondError(c, "Database error", err)
			return
		}
		unitPrice = mustDecimal(product.UnitPrice)
	} else {
		// device or IMEI lines have no catalog price to fall back on
		respondOK(c, "Line ignored", s.cartView(*cart))
		return
	}

	if req.DiscountPercent != nil {
		d, ok := parseAmount(*req.DiscountPercent)
		if !ok || d.GreaterThan(decimal.NewFromInt(100)) {
			respondOK(c, "Line ignored", s.cartView(*cart))
			return
		}
	}

	line := models.CartLine{
		CartID:          cart.ID,
		ProductID:       req.ProductID,
		DeviceID:        req.DeviceID,
		IMEI:            req.IMEI,
		Quantity:        req.Quantity,
		UnitPrice:       fmtMoney(unitPrice),
		PriceOverridden: overridden,
		DiscountPercent: req.DiscountPercent,
		TaxCode:         req.TaxCode,
		LineTotal:       "0.00",
		CreatedAt:       time.Now(),
	}

	if err := s.db.Create(&line).Error; err != nil {
		s.respondError(c, "Failed to add line: "+err.Error(), err)
		return
	}

	if err := s.recalculateCartTotals(s.db, cart.ID); err != nil {
		s.respondError(c, "Failed to recalculate totals: "+err.Error(), err)
		return
	}

	reloaded, ok := s.reloadCart(c, cart.ID)
	if !ok {
		return
	}
	respondOK(c, "Line added to cart successfully", s.cartView(*reloaded))
}

func (s *POSHandler) UpdateCartLine(c *gin.Context) {
	cart, ok := s.loadDraftCart(c)
	if !ok {
		return
	}

	lineID, err := strconv.ParseInt(c.Param("lineId"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid line_id format")
		return
	}

	var req UpdateCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "Invalid request body")
		return
	}

	var line models.CartLine
	if err := s.db.Where("id = ? AND cart_id = ?", lineID, cart.ID).First(&line).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondNotFound(c, "Cart line not found")
			return
		}
		s.respondError(c, "Database error", err)
		return
	}

	if req.Quantity != nil {
		if *req.Quantity <= 0 {
			respondInvalid(c, "quantity must be positive")
			return
		}
		line.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		p, ok := parseAmount(*req.UnitPrice)
		if !ok {
			respondInvalid(c, "Invalid unit_price format")
			return
		}
		line.UnitPrice = fmtMoney(p)
		line.PriceOverridden = true
	}
	if req.DiscountPercent != nil {
		d, ok := parseAmount(*req.DiscountPercent)
		if !ok || d.GreaterThan(decimal.NewFromInt(100)) {
			respondInvalid(c, "discount_percent must be between 0 and 100")
			return
		}
		line.DiscountPercent = req.DiscountPercent
	}
	if req.TaxCode != nil {
		line.TaxCode = req.TaxCode
	}

	for _, field := range req.ClearFields {
		switch field {
		case "discount_percent":
			line.DiscountPercent = nil
		case "tax_code":
			line.TaxCode = nil
		case "unit_price":
			// dropping an override reprices from the catalog
			if line.ProductID == nil {
				respondInvalid(c, "Cannot clear unit_price on a line without a catalog product")
				return
			}
			var product models.Product
			if err := s.db.Where("id = ?", *line.ProductID).First(&product).Error; err != nil {
				s.respondError(c, "Failed to reprice line", err)
				return
			}
			line.UnitPrice = product.UnitPrice
			line.PriceOverridden = false
		default:
			respondInvalid(c, "Unknown field in clear_fields: "+field)
			return
		}
	}

	// save with Select so cleared pointers write NULL instead of being skipped
	if err := s.db.Model(&models.CartLine{}).Where("id = ?", line.ID).
		Select("quantity", "unit_price", "price_overridden", "discount_percent", "tax_code").
		Updates(map[string]interface{}{
			"quantity":         line.Quantity,
			"unit_price":       line.UnitPrice,
			"price_overridden": line.PriceOverridden,
			"discount_percent": line.DiscountPercent,
			"tax_code":         line.TaxCode,
		}).Error; err != nil {
		s.respondError(c, "Failed to update line: "+err.Error(), err)
		return
	}

	if err := s.recalculateCartTotals(s.db, cart.ID); err != nil {
		s.respondError(c, "Failed to recalculate totals: "+err.Error(), err)
		return
	}

	reloaded, ok := s.reloadCart(c, cart.ID)
	if !ok {
		return
	}
	respondOK(c, "Line updated successfully", s.cartView(*reloaded))
}

func (s *POSHandler) RemoveCartLine(c *gin.Context) {
	cart, ok := s.loadDraftCart(c)
	if !ok {
		return
	}

	lineID, err := strconv.ParseInt(c.Param("lineId"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid line_id format")
		return
	}

	result := s.db.Where("id = ? AND cart_id = ?", lineID, cart.ID).Delete(&models.CartLine{})
	if result.Error != nil {
		s.respondError(c, "Failed to remove line: "+result.Error.Error(), result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondNotFound(c, "Cart line not found")
		return
	}

	if err := s.recalculateCartTotals(s.db, cart.ID); err != nil {
		s.respondError(c, "Failed to recalculate totals: "+err.Error(), err)
		return
	}

	reloaded, ok := s.reloadCart(c, cart.ID)
	if !ok {
		return
	}
	respondOK(c, "Line removed from cart successfully", s.cartView(*reloaded))
}

// -- Payment ledger --

func (s *POSHandler) AddCartPayment(c *gin.Context) {
	cart, ok := s.loadDraftCart(c)
	if !ok {
		return
	}

	var req CartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "method and amount required")
		return
	}
	if !validPaymentMethod(req.Method) {
		respondInvalid(c, "method must be CASH, CARD, TRANSFER or CREDIT")
		return
	}
	amount, okAmt := parseAmount(req.Amount)
	if !okAmt {
		respondInvalid(c, "Invalid amount format")
		return
	}

	payment := models.CartPayment{
		CartID: cart.ID,
		Method: req.Method,
		Amount: fmtMoney(amount),
	}
	if err := s.db.Create(&payment).Error; err != nil {
		s.respondError(c, "Failed to add payment: "+err.Error(), err)
		return
	}

	reloaded, ok := s.reloadCart(c, cart.ID)
	if !ok {
		return
	}
	respondOK(c, "Payment added successfully", s.cartView(*reloaded))
}

func (s *POSHandler) UpdateCartPayment(c *gin.Context) {
	cart, ok := s.loadDraftCart(c)
	if !ok {
		return
	}

	paymentID, err := strconv.ParseInt(c.Param("paymentId"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid payment_id format")
		return
	}

	var req UpdateCartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "Invalid request body")
		return
	}

	var payment models.CartPayment
	if err := s.db.Where("id = ? AND cart_id = ?", paymentID, cart.ID).First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondNotFound(c, "Payment not found")
			return
		}
		s.respondError(c, "Database error", err)
		return
	}

	if req.Method != nil {
		if !validPaymentMethod(*req.Method) {
			respondInvalid(c, "method must be CASH, CARD, TRANSFER or CREDIT")
			return
		}
		payment.Method = *req.Method
	}
	if req.Amount != nil {
		amount, okAmt := parseAmount(*req.Amount)
		if !okAmt {
			respondInvalid(c, "Invalid amount format")
			return
		}
		payment.Amount = fmtMoney(amount)
	}

	if err := s.db.Save(&payment).Error; err != nil {
		s.respondError(c, "Failed to update payment: "+err.Error(), err)
		return
	}

	reloaded, ok := s.reloadCart(c, cart.ID)
	if !ok {
		return
	}
	respondOK(c, "Payment updated successfully", s.cartView(*reloaded))
}

func (s *POSHandler) RemoveCartPayment(c *gin.Context) {
	cart, ok := s.loadDraftCart(c)
	if !ok {
		return
	}

	paymentID, err := strconv.ParseInt(c.Param("paymentId"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid payment_id format")
		return
	}

	result := s.db.Where("id = ? AND cart_id = ?", paymentID, cart.ID).Delete(&models.CartPayment{})
	if result.Error != nil {
		s.respondError(c, "Failed to remove payment: "+result.Error.Error(), result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondNotFound(c, "Payment not found")
		return
	}

	reloaded, ok := s.reloadCart(c, cart.ID)
	if !ok {
		return
	}
	respondOK(c, "Payment removed successfully", s.cartView(*reloaded))
}

// -- Shared cart helpers --

func (s *POSHandler) loadDraftCart(c *gin.Context) (*models.Cart, bool) {
	cartID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid cart_id format")
		return nil, false
	}

	var cart models.Cart
	if err := s.db.Where("id = ? AND status = ?", cartID, models.CartDraft).
		Preload("Lines.Product").
		Preload("Payments").
		First(&cart).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondNotFound(c, "Cart not found or already committed")
			return nil, false
		}
		s.respondError(c, "Database error", err)
		return nil, false
	}
	return &cart, true
}

func (s *POSHandler) reloadCart(c *gin.Context, cartID int64) (*models.Cart, bool) {
	var cart models.Cart
	if err := s.db.Where("id = ?", cartID).
		Preload("Lines.Product").
		Preload("Payments").
		First(&cart).Error; err != nil {
		s.respondError(c, "Failed to reload cart", err)
		return nil, false
	}
	return &cart, true
}

// cartView adds the informational payment check. Underpayment and
// overpayment are surfaced, never blocked.
func (s *POSHandler) cartView(cart models.Cart) gin.H {
	paid := decimal.Zero
	for _, p := range cart.Payments {
		paid = paid.Add(mustDecimal(p.Amount))
	}
	pending := mustDecimal(cart.TotalDue).Sub(paid)

	return gin.H{
		"cart":           cart,
		"paid_amount":    fmtMoney(paid),
		"pending_amount": fmtMoney(pending),
	}
}

// recalculateCartTotals reprices every line and rewrites the cart totals
// from scratch.
func (s *POSHandler) recalculateCartTotals(tx *gorm.DB, cartID int64) error {
	var lines []models.CartLine
	if err := tx.Where("cart_id = ?", cartID).Order("id ASC").Find(&lines).Error; err != nil {
		return err
	}

	calcLines := make([]money.Line, 0, len(lines))
	var taxCode *string
	for i := range lines {
		l := money.Line{
			Quantity:  lines[i].Quantity,
			UnitPrice: mustDecimal(lines[i].UnitPrice),
		}
		if lines[i].DiscountPercent != nil {
			l.DiscountPercent = mustDecimal(*lines[i].DiscountPercent)
		}
		calcLines = append(calcLines, l)

		if taxCode == nil && lines[i].TaxCode != nil {
			taxCode = lines[i].TaxCode
		}

		lineTotal := money.LineTotal(l)
		if err := tx.Model(&models.CartLine{}).Where("id = ?", lines[i].ID).
			Update("line_total", lineTotal.StringFixed(2)).Error; err != nil {
			return err
		}
	}

	rate := mustDecimal(s.resolveTaxRate(tx, taxCode))
	totals := money.Compute(calcLines, rate)

	return tx.Model(&models.Cart{}).Where("id = ?", cartID).Updates(map[string]interface{}{
		"subtotal":        fmtMoney(totals.Subtotal),
		"discount_amount": fmtMoney(totals.DiscountAmount),
		"taxable_base":    fmtMoney(totals.TaxableBase),
		"tax_amount":      fmtMoney(totals.TaxAmount),
		"total_due":       fmtMoney(totals.TotalDue),
		"updated_at":      time.Now(),
	}).Error
}
