package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storeline-pos/config"
	"storeline-pos/internal/database/models"
)

const (
	POS_CACHE_PREFIX       = "pos:"
	POS_PRODUCT_CACHE_KEY  = POS_CACHE_PREFIX + "product"
	POS_TAX_RATE_CACHE_KEY = POS_CACHE_PREFIX + "tax-rates"
	EventSaleCommitted     = "sale.committed"
	EventSaleReturned      = "sale.returned"
	EventSessionOpened     = "session.opened"
	EventSessionClosed     = "session.closed"
	EventInstallmentPaid   = "installment.paid"
	CACHE_TTL_SHORT        = 5 * time.Minute
	CACHE_TTL_MEDIUM       = 30 * time.Minute
	CACHE_TTL_LONG         = 2 * time.Hour
)

// Structured rejection codes. These alter the caller's workflow state
// instead of being generic failures.
const (
	CodeSupervisorRequired = "supervisor_required"
	CodeSupervisorInvalid  = "supervisor_invalid"
	CodeSessionNotOpen     = "session_not_open"
	CodeSessionAlreadyOpen = "session_already_open"
	CodeCartEmpty          = "cart_empty"
)

const minReasonLength = 5

// errHandled aborts a transaction after the HTTP response has already been
// written inside it. It must never reach the client.
var errHandled = errors.New("response already written")

// --- Helpers ---
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// validReason checks the mandatory audit annotation carried by every
// mutating call.
func validReason(reason string) bool {
	return len(strings.TrimSpace(reason)) >= minReasonLength
}

// parseAmount accepts a non-negative 2-decimal money string.
func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func fmtMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// isDuplicateKey spots unique constraint violations across the postgres
// and sqlite drivers.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// -- Handler --

type POSHandler struct {
	db     *gorm.DB
	redis  *redis.Client
	log    *zap.Logger
	policy config.PolicyConfig

	// injectable clock for derived installment statuses
	now func() time.Time
}

func NewPOSHandler(db *gorm.DB, redisClient *redis.Client, log *zap.Logger, policy config.PolicyConfig) *POSHandler {
	return &POSHandler{
		db:     db,
		redis:  redisClient,
		log:    log,
		policy: policy,
		now:    time.Now,
	}
}

// lockForUpdate takes a row lock on dialects that support it. The sqlite
// test driver runs transactions serialized, so skipping the clause there is
// safe.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// InvalidatePOSCaches drops every cached catalog entry. Called at startup
// so a redeployment never serves product or tax-rate data cached by a
// previous schema.
func (s *POSHandler) InvalidatePOSCaches(ctx context.Context) {
	if s.redis == nil {
		return
	}
	for _, prefix := range []string{POS_PRODUCT_CACHE_KEY, POS_TAX_RATE_CACHE_KEY} {
		keys, err := s.redis.Keys(ctx, prefix+"*").Result()
		if err != nil {
			s.log.Warn("failed to scan cache keys", zap.String("prefix", prefix), zap.Error(err))
			continue
		}
		if len(keys) > 0 {
			_ = s.redis.Del(ctx, keys...)
		}
	}
}

// -- Pub/Sub Related --

type POSEvent struct {
	EventType      string    `json:"event_type"`
	DocumentNumber string    `json:"document_number,omitempty"`
	StoreID        int64     `json:"store_id"`
	ActorID        int64     `json:"actor_id"`
	TotalAmount    string    `json:"total_amount,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload,omitempty"`
}

func (s *POSHandler) publishPOSEvent(ctx context.Context, event POSEvent) error {
	if s.redis == nil {
		return nil
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := fmt.Sprintf("pos:events:%s", event.EventType)
	if err := s.redis.Publish(ctx, channel, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := s.redis.Publish(ctx, "pos:events:all", eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}

	return nil
}

// -- Response helpers --

func respondOK(c *gin.Context, message string, extra gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(200, body)
}

func respondInvalid(c *gin.Context, message string) {
	c.JSON(400, gin.H{"success": false, "message": message})
}

func respondNotFound(c *gin.Context, message string) {
	c.JSON(404, gin.H{"success": false, "message": message})
}

// respondRejected reports a state-precondition failure or a structured
// rejection. The code field is what callers branch on.
func respondRejected(c *gin.Context, code, message string, extra gin.H) {
	body := gin.H{"success": false, "code": code, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(409, body)
}

func (s *POSHandler) respondError(c *gin.Context, message string, err error) {
	s.log.Error(message, zap.Error(err))
	c.JSON(500, gin.H{"success": false, "message": message})
}

// openSessionForStore loads the current OPEN session, if any.
func openSessionForStore(tx *gorm.DB, storeID int64) (*models.CashSession, error) {
	var session models.CashSession
	err := lockForUpdate(tx).
		Where("store_id = ? AND status = ?", storeID, models.SessionOpen).
		Order("opened_at DESC").
		First(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
