package models

import (
	"time"

	"gorm.io/gorm"
)

// Session lifecycle states. Exactly one OPEN session may exist per store.
const (
	SessionOpen   = "OPEN"
	SessionClosed = "CLOSED"
)

// Payment methods accepted at the register.
const (
	MethodCash     = "CASH"
	MethodCard     = "CARD"
	MethodTransfer = "TRANSFER"
	MethodCredit   = "CREDIT"
)

// Cart lifecycle.
const (
	CartDraft     int32 = 0
	CartCommitted int32 = 1
)

// Sale lifecycle.
const (
	SaleCommitted int32 = 0
	SaleRefunded  int32 = 1
)

type Product struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductCode string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"product_code"`
	ProductName string    `gorm:"type:varchar(128);not null" json:"product_name"`
	UnitPrice   string    `gorm:"type:varchar(32);not null" json:"unit_price"`
	TaxCode     *string   `gorm:"type:varchar(16)" json:"tax_code,omitempty"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TaxRate struct {
	ID        int32     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(64);not null" json:"name"`
	Rate      string    `gorm:"type:varchar(16);not null" json:"rate"`
	IsDefault bool      `gorm:"not null" json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cart is a server-held sale draft for one register. Totals are recomputed
// in full on every mutation, never incrementally.
type Cart struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	StoreID        int64  `gorm:"not null;index" json:"store_id"`
	CashierID      int64  `gorm:"not null;index" json:"cashier_id"`
	Status         int32  `gorm:"not null;default:0" json:"status"`
	Subtotal       string `gorm:"type:varchar(32);default:'0.00'" json:"subtotal"`
	DiscountAmount string `gorm:"type:varchar(32);default:'0.00'" json:"discount_amount"`
	TaxableBase    string `gorm:"type:varchar(32);default:'0.00'" json:"taxable_base"`
	TaxAmount      string `gorm:"type:varchar(32);default:'0.00'" json:"tax_amount"`
	TotalDue       string `gorm:"type:varchar(32);default:'0.00'" json:"total_due"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines    []CartLine    `gorm:"foreignKey:CartID" json:"lines"`
	Payments []CartPayment `gorm:"foreignKey:CartID" json:"payments"`
}

// CartLine identifies its merchandise by catalog product, device or IMEI;
// at least one must be present. DiscountPercent and TaxCode are nullable on
// purpose: a cleared field is absent, not a zero sentinel.
type CartLine struct {
	ID              int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID          int64   `gorm:"not null;index" json:"cart_id"`
	ProductID       *int64  `json:"product_id,omitempty"`
	DeviceID        *int64  `json:"device_id,omitempty"`
	IMEI            *string `gorm:"type:varchar(32)" json:"imei,omitempty"`
	Quantity        int32   `gorm:"not null" json:"quantity"`
	UnitPrice       string  `gorm:"type:varchar(32);not null" json:"unit_price"`
	PriceOverridden bool    `gorm:"not null" json:"price_overridden"`
	DiscountPercent *string `gorm:"type:varchar(16)" json:"discount_percent,omitempty"`
	TaxCode         *string `gorm:"type:varchar(16)" json:"tax_code,omitempty"`
	LineTotal       string  `gorm:"type:varchar(32);not null" json:"line_total"`
	CreatedAt       time.Time `json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

type CartPayment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64     `gorm:"not null;index" json:"cart_id"`
	Method    string    `gorm:"type:varchar(16);not null" json:"method"`
	Amount    string    `gorm:"type:varchar(32);not null" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// CashSession is the open/close lifecycle of a store register. Per-method
// accumulators are mutated only by committed sales and returns, so a failed
// submission can never skew reconciliation.
type CashSession struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	StoreID  int64  `gorm:"not null;index;index:uniq_open_session_per_store,unique,where:status = 'OPEN'" json:"store_id"`
	Status   string `gorm:"type:varchar(16);not null" json:"status"`
	OpenedBy int64  `gorm:"not null" json:"opened_by"`
	ClosedBy *int64 `json:"closed_by,omitempty"`

	OpeningAmount    string  `gorm:"type:varchar(32);not null" json:"opening_amount"`
	ClosingAmount    *string `gorm:"type:varchar(32)" json:"closing_amount,omitempty"`
	ExpectedAmount   *string `gorm:"type:varchar(32)" json:"expected_amount,omitempty"`
	DifferenceAmount *string `gorm:"type:varchar(32)" json:"difference_amount,omitempty"`

	CashTotal     string `gorm:"type:varchar(32);default:'0.00'" json:"cash_total"`
	CardTotal     string `gorm:"type:varchar(32);default:'0.00'" json:"card_total"`
	TransferTotal string `gorm:"type:varchar(32);default:'0.00'" json:"transfer_total"`
	CreditTotal   string `gorm:"type:varchar(32);default:'0.00'" json:"credit_total"`

	// Counted amounts declared per method at close.
	DeclaredCash     *string `gorm:"type:varchar(32)" json:"declared_cash,omitempty"`
	DeclaredCard     *string `gorm:"type:varchar(32)" json:"declared_card,omitempty"`
	DeclaredTransfer *string `gorm:"type:varchar(32)" json:"declared_transfer,omitempty"`
	DeclaredCredit   *string `gorm:"type:varchar(32)" json:"declared_credit,omitempty"`

	Notes    *string    `gorm:"type:text" json:"notes,omitempty"`
	OpenedAt time.Time  `gorm:"not null" json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Sale struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ReceiptNumber string `gorm:"type:varchar(64);uniqueIndex;not null" json:"receipt_number"`
	StoreID       int64  `gorm:"not null;index" json:"store_id"`
	CashierID     int64  `gorm:"not null" json:"cashier_id"`
	CustomerID    *int64 `json:"customer_id,omitempty"`
	SessionID     *int64 `gorm:"index" json:"session_id,omitempty"`

	Subtotal       string `gorm:"type:varchar(32);not null" json:"subtotal"`
	DiscountAmount string `gorm:"type:varchar(32);not null" json:"discount_amount"`
	TaxableBase    string `gorm:"type:varchar(32);not null" json:"taxable_base"`
	TaxAmount      string `gorm:"type:varchar(32);not null" json:"tax_amount"`
	TaxRatePct     string `gorm:"type:varchar(16);not null" json:"tax_rate_pct"`
	TotalDue       string `gorm:"type:varchar(32);not null" json:"total_due"`
	PaidAmount     string `gorm:"type:varchar(32);not null" json:"paid_amount"`
	PendingAmount  string `gorm:"type:varchar(32);not null" json:"pending_amount"`

	Status int32      `gorm:"not null;default:0" json:"status"`
	Note   *string    `gorm:"type:text" json:"note,omitempty"`
	SoldAt *time.Time `gorm:"not null" json:"sold_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items    []SaleItem    `gorm:"foreignKey:SaleID" json:"items"`
	Payments []SalePayment `gorm:"foreignKey:SaleID" json:"payments"`
	Session  *CashSession  `gorm:"foreignKey:SessionID;references:ID" json:"session,omitempty"`
}

type SaleItem struct {
	ID              int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID          int64   `gorm:"not null;index" json:"sale_id"`
	ProductID       *int64  `json:"product_id,omitempty"`
	DeviceID        *int64  `json:"device_id,omitempty"`
	IMEI            *string `gorm:"type:varchar(32)" json:"imei,omitempty"`
	Quantity        int32   `gorm:"not null" json:"quantity"`
	ReturnedQty     int32   `gorm:"not null;default:0" json:"returned_qty"`
	UnitPrice       string  `gorm:"type:varchar(32);not null" json:"unit_price"`
	DiscountPercent string  `gorm:"type:varchar(16);not null;default:'0'" json:"discount_percent"`
	DiscountAmount  string  `gorm:"type:varchar(32);not null" json:"discount_amount"`
	LineTotal       string  `gorm:"type:varchar(32);not null" json:"line_total"`
	CreatedAt       time.Time `json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

type SalePayment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID    int64     `gorm:"not null;index" json:"sale_id"`
	Method    string    `gorm:"type:varchar(16);not null" json:"method"`
	Amount    string    `gorm:"type:varchar(32);not null" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// ReturnDocument reverses part or all of a committed sale. Quantities on its
// items are negative, mirroring the originating sale lines.
type ReturnDocument struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ReturnNumber string `gorm:"type:varchar(64);uniqueIndex;not null" json:"return_number"`
	SaleID       int64  `gorm:"not null;index" json:"sale_id"`
	SessionID    *int64 `gorm:"index" json:"session_id,omitempty"`
	ProcessedBy  int64  `gorm:"not null" json:"processed_by"`

	Reason              string  `gorm:"type:text;not null" json:"reason"`
	ReasonCategory      string  `gorm:"type:varchar(32);not null" json:"reason_category"`
	DestinationLocation string  `gorm:"type:varchar(64);not null" json:"destination_location"`
	ApprovedBy          *string `gorm:"type:varchar(64)" json:"approved_by,omitempty"`

	Subtotal       string `gorm:"type:varchar(32);not null" json:"subtotal"`
	DiscountAmount string `gorm:"type:varchar(32);not null" json:"discount_amount"`
	TaxAmount      string `gorm:"type:varchar(32);not null" json:"tax_amount"`
	TotalAmount    string `gorm:"type:varchar(32);not null" json:"total_amount"`

	CreatedAt time.Time `json:"created_at"`

	Items []ReturnItem `gorm:"foreignKey:ReturnID" json:"items"`
}

type ReturnItem struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	ReturnID    int64   `gorm:"not null;index" json:"return_id"`
	SaleItemID  int64   `gorm:"not null" json:"sale_item_id"`
	ProductID   *int64  `json:"product_id,omitempty"`
	DeviceID    *int64  `json:"device_id,omitempty"`
	IMEI        *string `gorm:"type:varchar(32)" json:"imei,omitempty"`
	Quantity    int32   `gorm:"not null" json:"quantity"`
	UnitPrice   string  `gorm:"type:varchar(32);not null" json:"unit_price"`
	LineTotal   string  `gorm:"type:varchar(32);not null" json:"line_total"`
	Disposition string  `gorm:"type:varchar(32);not null" json:"disposition"`
	ItemReason  *string `gorm:"type:text" json:"item_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreditSchedule is generated once at sale commit for the financed amount.
// Installment statuses are derived from "now" at read time; only the paid
// flag is persisted.
type CreditSchedule struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID       int64     `gorm:"uniqueIndex;not null" json:"sale_id"`
	CustomerID   *int64    `json:"customer_id,omitempty"`
	TotalAmount  string    `gorm:"type:varchar(32);not null" json:"total_amount"`
	Count        int32     `gorm:"not null" json:"count"`
	Frequency    string    `gorm:"type:varchar(16);not null" json:"frequency"`
	FirstDueDate time.Time `gorm:"not null" json:"first_due_date"`
	CreatedAt    time.Time `json:"created_at"`

	Installments []CreditInstallment `gorm:"foreignKey:ScheduleID" json:"installments"`
}

type CreditInstallment struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ScheduleID int64      `gorm:"not null;index" json:"schedule_id"`
	Sequence   int32      `gorm:"not null" json:"sequence"`
	DueDate    time.Time  `gorm:"not null" json:"due_date"`
	Amount     string     `gorm:"type:varchar(32);not null" json:"amount"`
	Paid       bool       `gorm:"not null;default:false" json:"paid"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Supervisor is the second-actor credential for out-of-policy approvals.
// The PIN is stored as a bcrypt hash.
type Supervisor struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PINHash   string    `gorm:"type:varchar(128);not null" json:"-"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func MigratePOSDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&Product{},
		&TaxRate{},
		&Cart{},
		&CartLine{},
		&CartPayment{},
		&CashSession{},
		&Sale{},
		&SaleItem{},
		&SalePayment{},
		&ReturnDocument{},
		&ReturnItem{},
		&CreditSchedule{},
		&CreditInstallment{},
		&Supervisor{},
	)
}
