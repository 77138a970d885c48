package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"storeline-pos/internal/database/models"
)

type OpenSessionRequest struct {
	StoreID       int64   `json:"store_id" binding:"required"`
	OpenedBy      int64   `json:"opened_by" binding:"required"`
	OpeningAmount string  `json:"opening_amount" binding:"required"`
	Notes         *string `json:"notes,omitempty"`
	Reason        string  `json:"reason" binding:"required"`
}

type DeclaredAmounts struct {
	Cash     *string `json:"cash,omitempty"`
	Card     *string `json:"card,omitempty"`
	Transfer *string `json:"transfer,omitempty"`
	Credit   *string `json:"credit,omitempty"`
}

type CloseSessionRequest struct {
	ClosingAmount string           `json:"closing_amount" binding:"required"`
	ClosedBy      int64            `json:"closed_by" binding:"required"`
	Notes         *string          `json:"notes,omitempty"`
	Declared      *DeclaredAmounts `json:"declared,omitempty"`
	Approval      *ApprovalBlock   `json:"approval,omitempty"`
	Reason        string           `json:"reason" binding:"required"`
}

// OpenSession transitions a store register from CLOSED to OPEN. The
// pre-check gives racing opens a clean rejection in the common case; the
// partial unique index on (store_id) WHERE status = 'OPEN' is what actually
// guarantees a single winner, since there is no row to lock while none is
// open yet.
func (s *POSHandler) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "store_id, opened_by, opening_amount and reason required")
		return
	}
	if !validReason(req.Reason) {
		respondInvalid(c, "reason must be at least 5 characters")
		return
	}
	opening, ok := parseAmount(req.OpeningAmount)
	if !ok {
		respondInvalid(c, "Invalid opening_amount format")
		return
	}

	var session models.CashSession

	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := openSessionForStore(tx, req.StoreID)
		if err != nil {
			return err
		}
		if existing != nil {
			respondRejected(c, CodeSessionAlreadyOpen,
				"An open session already exists for this store", gin.H{"session": existing})
			return errHandled
		}

		now := time.Now()
		session = models.CashSession{
			StoreID:       req.StoreID,
			Status:        models.SessionOpen,
			OpenedBy:      req.OpenedBy,
			OpeningAmount: fmtMoney(opening),
			CashTotal:     "0.00",
			CardTotal:     "0.00",
			TransferTotal: "0.00",
			CreditTotal:   "0.00",
			Notes:         req.Notes,
			OpenedAt:      now,
		}
		return tx.Create(&session).Error
	})
	if err == errHandled {
		return // rejection already written
	}
	if err != nil {
		if isDuplicateKey(err) {
			respondRejected(c, CodeSessionAlreadyOpen,
				"An open session already exists for this store", nil)
			return
		}
		s.respondError(c, "Failed to open session: "+err.Error(), err)
		return
	}

	s.publishPOSEvent(c.Request.Context(), POSEvent{
		EventType:   EventSessionOpened,
		StoreID:     session.StoreID,
		ActorID:     session.OpenedBy,
		TotalAmount: session.OpeningAmount,
		Timestamp:   time.Now(),
		Payload:     &session,
	})

	respondOK(c, "Session opened successfully", gin.H{"session": session})
}

// CloseSession reconciles and closes an OPEN session. Expected cash is
// opening plus accumulated CASH sales; the difference against the counted
// amount is recorded, and blocks only when the sign-off policy is enabled
// and no valid supervisor approval accompanies a non-zero difference.
func (s *POSHandler) CloseSession(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid session_id format")
		return
	}

	var req CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "closing_amount, closed_by and reason required")
		return
	}
	if !validReason(req.Reason) {
		respondInvalid(c, "reason must be at least 5 characters")
		return
	}
	closing, ok := parseAmount(req.ClosingAmount)
	if !ok {
		respondInvalid(c, "Invalid closing_amount format")
		return
	}
	if req.Declared != nil {
		for _, v := range []*string{req.Declared.Cash, req.Declared.Card, req.Declared.Transfer, req.Declared.Credit} {
			if v == nil {
				continue
			}
			if _, ok := parseAmount(*v); !ok {
				respondInvalid(c, "Invalid declared amount format")
				return
			}
		}
	}

	var session models.CashSession

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", sessionID).First(&session).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				respondNotFound(c, "Session not found")
				return errHandled
			}
			return err
		}

		if session.Status != models.SessionOpen {
			respondRejected(c, CodeSessionNotOpen, "Session is not open", nil)
			return errHandled
		}

		expected := mustDecimal(session.OpeningAmount).Add(mustDecimal(session.CashTotal))
		difference := closing.Sub(expected)

		if s.policy.CashDifferenceSignoff && !difference.IsZero() {
			approvedBy, err := s.verifySupervisor(tx, req.Approval)
			if err != nil {
				return err
			}
			if approvedBy == "" {
				code := CodeSupervisorRequired
				if req.Approval != nil {
					code = CodeSupervisorInvalid
				}
				respondRejected(c, code, "Cash difference requires supervisor sign-off", gin.H{
					"expected_amount":   fmtMoney(expected),
					"difference_amount": fmtMoney(difference),
				})
				return errHandled
			}
		}

		now := time.Now()
		session.Status = models.SessionClosed
		session.ClosedBy = &req.ClosedBy
		session.ClosingAmount = strPtr(fmtMoney(closing))
		session.ExpectedAmount = strPtr(fmtMoney(expected))
		session.DifferenceAmount = strPtr(fmtMoney(difference))
		session.ClosedAt = &now
		if req.Notes != nil {
			session.Notes = req.Notes
		}
		if req.Declared != nil {
			session.DeclaredCash = req.Declared.Cash
			session.DeclaredCard = req.Declared.Card
			session.DeclaredTransfer = req.Declared.Transfer
			session.DeclaredCredit = req.Declared.Credit
		}

		return tx.Save(&session).Error
	})
	if err == errHandled {
		return
	}
	if err != nil {
		s.respondError(c, "Failed to close session: "+err.Error(), err)
		return
	}

	s.publishPOSEvent(c.Request.Context(), POSEvent{
		EventType:   EventSessionClosed,
		StoreID:     session.StoreID,
		ActorID:     req.ClosedBy,
		TotalAmount: *session.ClosingAmount,
		Timestamp:   time.Now(),
		Payload:     &session,
	})

	respondOK(c, "Session closed successfully", gin.H{"session": session})
}

// GetLastSession returns the most recent session for a store regardless of
// status. Callers decide policy from it; a missing session is a signal, not
// a failure of this endpoint.
func (s *POSHandler) GetLastSession(c *gin.Context) {
	storeID, err := strconv.ParseInt(c.Param("storeId"), 10, 64)
	if err != nil {
		respondInvalid(c, "Invalid store_id format")
		return
	}

	var session models.CashSession
	if err := s.db.Where("store_id = ?", storeID).
		Order("opened_at DESC").
		First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondNotFound(c, "No session found for this store")
			return
		}
		s.respondError(c, "Database error", err)
		return
	}

	respondOK(c, "", gin.H{"session": session})
}
