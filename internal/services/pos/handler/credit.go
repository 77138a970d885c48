package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"storeline-pos/internal/database/models"
	"storeline-pos/internal/pos/schedule"
)

type MarkInstallmentPaidRequest struct {
	PaidBy int64  `json:"paid_by" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func (s *POSHandler) GetCreditSchedule(c *gin.Context) {
	scheduleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid schedule_id format")
		return
	}

	var cs models.CreditSchedule
	if err := s.db.Where("id = ?", scheduleID).First(&cs).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondNotFound(c, "Credit schedule not found")
			return
		}
		s.respondError(c, "Database error", err)
		return
	}

	respondOK(c, "", gin.H{"credit_schedule": s.scheduleView(cs)})
}

// MarkInstallmentPaid flips one installment to paid. The action is one-way
// and leaves sibling installments untouched; marking an already paid
// installment again changes nothing.
func (s *POSHandler) MarkInstallmentPaid(c *gin.Context) {
	scheduleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid schedule_id format")
		return
	}
	sequence, err := strconv.Atoi(c.Param("seq"))
	if err != nil || sequence <= 0 {
		respondInvalid(c, "Invalid installment sequence")
		return
	}

	var req MarkInstallmentPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "paid_by and reason required")
		return
	}
	if !validReason(req.Reason) {
		respondInvalid(c, "reason must be at least 5 characters")
		return
	}

	var installment models.CreditInstallment
	alreadyPaid := false

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("schedule_id = ? AND sequence = ?", scheduleID, sequence).
			First(&installment).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				respondNotFound(c, "Installment not found")
				return errHandled
			}
			return err
		}

		if installment.Paid {
			alreadyPaid = true
			return nil
		}

		now := s.now()
		installment.Paid = true
		installment.PaidAt = &now
		return tx.Model(&models.CreditInstallment{}).Where("id = ?", installment.ID).
			Updates(map[string]interface{}{"paid": true, "paid_at": now}).Error
	})
	if err == errHandled {
		return
	}
	if err != nil {
		s.respondError(c, "Failed to mark installment paid: "+err.Error(), err)
		return
	}

	// a duplicate click must not emit a duplicate domain event
	if alreadyPaid {
		respondOK(c, "Installment already paid", gin.H{
			"installment": s.installmentView(installment),
		})
		return
	}

	s.publishPOSEvent(c.Request.Context(), POSEvent{
		EventType:   EventInstallmentPaid,
		ActorID:     req.PaidBy,
		TotalAmount: installment.Amount,
		Timestamp:   time.Now(),
		Payload:     &installment,
	})

	respondOK(c, "Installment marked as paid", gin.H{
		"installment": s.installmentView(installment),
	})
}

// scheduleView renders a schedule with per-installment statuses derived
// against the handler clock. Statuses are never read from storage.
func (s *POSHandler) scheduleView(cs models.CreditSchedule) gin.H {
	var installments []models.CreditInstallment
	if len(cs.Installments) > 0 {
		installments = cs.Installments
	} else {
		_ = s.db.Where("schedule_id = ?", cs.ID).Order("sequence ASC").Find(&installments).Error
	}

	views := make([]gin.H, 0, len(installments))
	for _, inst := range installments {
		views = append(views, s.installmentView(inst))
	}

	return gin.H{
		"id":             cs.ID,
		"sale_id":        cs.SaleID,
		"customer_id":    cs.CustomerID,
		"total_amount":   cs.TotalAmount,
		"count":          cs.Count,
		"frequency":      cs.Frequency,
		"first_due_date": cs.FirstDueDate.Format("2006-01-02"),
		"installments":   views,
	}
}

func (s *POSHandler) installmentView(inst models.CreditInstallment) gin.H {
	return gin.H{
		"sequence": inst.Sequence,
		"due_date": inst.DueDate.Format("2006-01-02"),
		"amount":   inst.Amount,
		"status":   schedule.Status(inst.DueDate, inst.Paid, s.now(), s.policy.CreditDueSoonDays),
		"paid_at":  inst.PaidAt,
	}
}
