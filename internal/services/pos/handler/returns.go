package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storeline-pos/internal/database/models"
)

type ReturnItemRequest struct {
	SaleItemID  int64   `json:"sale_item_id" binding:"required"`
	Quantity    int32   `json:"quantity" binding:"required"`
	Disposition string  `json:"disposition" binding:"required"`
	Reason      *string `json:"reason,omitempty"`
}

type RegisterReturnRequest struct {
	SaleID              int64               `json:"sale_id" binding:"required"`
	ProcessedBy         int64               `json:"processed_by" binding:"required"`
	Reason              string              `json:"reason" binding:"required"`
	ReasonCategory      string              `json:"reason_category" binding:"required"`
	DestinationLocation string              `json:"destination_location" binding:"required"`
	Items               []ReturnItemRequest `json:"items" binding:"required,min=1"`
	Approval            *ApprovalBlock      `json:"approval,omitempty"`
}

// RegisterReturn reverses sold quantities from a committed sale. Returns
// above the value or quantity policy threshold need a valid supervisor
// approval block; the rejection code tells the caller whether approval is
// missing or invalid, so it can capture credentials and resubmit the same
// payload.
func (s *POSHandler) RegisterReturn(c *gin.Context) {
	var req RegisterReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "sale_id, processed_by, reason, reason_category, destination_location and items required")
		return
	}
	if !validReason(req.Reason) {
		respondInvalid(c, "reason must be at least 5 characters")
		return
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			respondInvalid(c, "item quantity must be positive")
			return
		}
	}

	var returnDoc models.ReturnDocument
	var saleStatus int32
	var storeID int64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		if err := lockForUpdate(tx).
			Where("id = ?", req.SaleID).
			Preload("Items").
			First(&sale).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				respondNotFound(c, "Sale not found")
				return errHandled
			}
			return err
		}

		storeID = sale.StoreID

		itemsByID := make(map[int64]*models.SaleItem, len(sale.Items))
		for i := range sale.Items {
			itemsByID[sale.Items[i].ID] = &sale.Items[i]
		}

		refundSubtotal := decimal.Zero
		refundDiscount := decimal.Zero
		refundNet := decimal.Zero
		var totalQty int32

		type pricedItem struct {
			req      ReturnItemRequest
			saleItem *models.SaleItem
			refund   decimal.Decimal
		}
		priced := make([]pricedItem, 0, len(req.Items))

		for _, item := range req.Items {
			saleItem, ok := itemsByID[item.SaleItemID]
			if !ok {
				respondInvalid(c, "sale_item_id does not belong to this sale")
				return errHandled
			}
			remaining := saleItem.Quantity - saleItem.ReturnedQty
			if item.Quantity > remaining {
				respondInvalid(c, "return quantity exceeds remaining quantity on the sale line")
				return errHandled
			}

			qty := decimal.NewFromInt(int64(item.Quantity))
			soldQty := decimal.NewFromInt(int64(saleItem.Quantity))

			// pro-rata share of the original line
			gross := mustDecimal(saleItem.UnitPrice).Mul(qty).Round(2)
			discount := mustDecimal(saleItem.DiscountAmount).Mul(qty).Div(soldQty).Round(2)
			net := mustDecimal(saleItem.LineTotal).Mul(qty).Div(soldQty).Round(2)

			// the return that exhausts the line absorbs the rounding
			// residual, so partial refunds always sum to the line total
			if item.Quantity == remaining {
				var prior []models.ReturnItem
				if err := tx.Where("sale_item_id = ?", saleItem.ID).Find(&prior).Error; err != nil {
					return err
				}
				net = mustDecimal(saleItem.LineTotal)
				for _, row := range prior {
					net = net.Add(mustDecimal(row.LineTotal))
				}
			}

			refundSubtotal = refundSubtotal.Add(gross)
			refundDiscount = refundDiscount.Add(discount)
			refundNet = refundNet.Add(net)
			totalQty += item.Quantity

			priced = append(priced, pricedItem{req: item, saleItem: saleItem, refund: net})
		}

		refundTax := refundNet.Mul(mustDecimal(sale.TaxRatePct)).Div(decimal.NewFromInt(100)).Round(2)
		refundTotal := refundNet.Add(refundTax)

		// policy gate: value or quantity over threshold needs a second actor
		threshold := mustDecimal(s.policy.ReturnApprovalThreshold)
		needsApproval := refundTotal.GreaterThanOrEqual(threshold) ||
			int(totalQty) > s.policy.ReturnApprovalMaxQty

		approvedBy := ""
		if needsApproval {
			verified, err := s.verifySupervisor(tx, req.Approval)
			if err != nil {
				return err
			}
			if verified == "" {
				code := CodeSupervisorRequired
				if req.Approval != nil {
					code = CodeSupervisorInvalid
				}
				respondRejected(c, code, "Return exceeds policy threshold and requires supervisor approval", gin.H{
					"refund_total": fmtMoney(refundTotal),
					"quantity":     totalQty,
				})
				return errHandled
			}
			approvedBy = verified
		}

		session, err := openSessionForStore(tx, sale.StoreID)
		if err != nil {
			return err
		}

		now := time.Now()
		returnDoc = models.ReturnDocument{
			ReturnNumber:        newReceiptNumber("RET", sale.StoreID),
			SaleID:              sale.ID,
			ProcessedBy:         req.ProcessedBy,
			Reason:              req.Reason,
			ReasonCategory:      req.ReasonCategory,
			DestinationLocation: req.DestinationLocation,
			Subtotal:            fmtMoney(refundSubtotal),
			DiscountAmount:      fmtMoney(refundDiscount),
			TaxAmount:           fmtMoney(refundTax),
			TotalAmount:         fmtMoney(refundTotal),
		}
		if approvedBy != "" {
			returnDoc.ApprovedBy = &approvedBy
		}
		if session != nil {
			returnDoc.SessionID = &session.ID
		}
		if err := tx.Create(&returnDoc).Error; err != nil {
			return err
		}

		for _, p := range priced {
			row := models.ReturnItem{
				ReturnID:    returnDoc.ID,
				SaleItemID:  p.saleItem.ID,
				ProductID:   p.saleItem.ProductID,
				DeviceID:    p.saleItem.DeviceID,
				IMEI:        p.saleItem.IMEI,
				Quantity:    -p.req.Quantity,
				UnitPrice:   p.saleItem.UnitPrice,
				LineTotal:   fmtMoney(p.refund.Neg()),
				Disposition: p.req.Disposition,
				ItemReason:  p.req.Reason,
				CreatedAt:   now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}

			if err := tx.Model(&models.SaleItem{}).Where("id = ?", p.saleItem.ID).
				Update("returned_qty", p.saleItem.ReturnedQty+p.req.Quantity).Error; err != nil {
				return err
			}
			p.saleItem.ReturnedQty += p.req.Quantity
		}

		// refunds are handed back in cash and come out of the register
		if session != nil {
			refund := []models.CartPayment{{Method: models.MethodCash, Amount: fmtMoney(refundTotal)}}
			if err := s.accumulatePayments(tx, session, refund, true); err != nil {
				return err
			}
		}

		fullyReturned := true
		for i := range sale.Items {
			if sale.Items[i].ReturnedQty < sale.Items[i].Quantity {
				fullyReturned = false
				break
			}
		}
		saleStatus = sale.Status
		if fullyReturned {
			saleStatus = models.SaleRefunded
			if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).
				Update("status", models.SaleRefunded).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err == errHandled {
		return
	}
	if err != nil {
		s.respondError(c, "Failed to register return: "+err.Error(), err)
		return
	}

	if err := s.db.Where("id = ?", returnDoc.ID).
		Preload("Items").
		First(&returnDoc).Error; err != nil {
		s.respondError(c, "Failed to reload return document", err)
		return
	}

	s.publishPOSEvent(c.Request.Context(), POSEvent{
		EventType:      EventSaleReturned,
		DocumentNumber: returnDoc.ReturnNumber,
		StoreID:        storeID,
		ActorID:        req.ProcessedBy,
		TotalAmount:    returnDoc.TotalAmount,
		Timestamp:      time.Now(),
		Payload:        &returnDoc,
	})

	respondOK(c, "Return processed successfully", gin.H{
		"return":      returnDoc,
		"sale_id":     req.SaleID,
		"sale_status": saleStatus,
	})
}

func (s *POSHandler) GetReturn(c *gin.Context) {
	returnID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid return_id format")
		return
	}

	var returnDoc models.ReturnDocument
	if err := s.db.Where("id = ?", returnID).
		Preload("Items").
		First(&returnDoc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondNotFound(c, "Return not found")
			return
		}
		s.respondError(c, "Database error", err)
		return
	}

	respondOK(c, "", gin.H{"return": returnDoc})
}
