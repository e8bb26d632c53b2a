package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a backend identifier. The API sends some ids as numbers and some as
// strings; both decode into the same textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("dashboard: id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Amount is a money value. Prices arrive either as JSON numbers or as
// decimal strings ("1499.00").
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("dashboard: amount %q: %w", s, err)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("dashboard: amount: %w", err)
	}
	*a = Amount(f)
	return nil
}

// envelope is the {message, data} wrapper most routes respond with.
type envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

/* ==== ACCOUNT ==== */

type User struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	PhoneNumber string  `json:"phone_number,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	Account     Account `json:"account"`
}

type Account struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// AccountUpdate is the body of UpdateAccount.
type AccountUpdate struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Account struct {
		Name string `json:"name"`
	} `json:"account"`
}

type AccountSettings struct {
	Notifications struct {
		Email bool `json:"email"`
		SMS   bool `json:"sms"`
		Push  bool `json:"push"`
	} `json:"notifications"`
	Privacy struct {
		ProfileVisible   bool `json:"profileVisible"`
		AnalyticsEnabled bool `json:"analyticsEnabled"`
	} `json:"privacy"`
	Billing struct {
		AutoRenew    bool   `json:"autoRenew"`
		InvoiceEmail string `json:"invoiceEmail"`
	} `json:"billing"`
}

// PasswordChange carries the confirmation field so the mismatch check runs
// before the request is sent. Confirm is never transmitted.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	Confirm         string `json:"-"`
}

/* ==== AUTH ==== */

type Registration struct {
	BusinessName string `json:"businessName"`
	Slug         string `json:"slug"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

// LoginResult is the password-login response. The backend sets the refresh
// cookie on the same response.
type LoginResult struct {
	Message     string `json:"message,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	User        *User  `json:"user,omitempty"`
}

/* ==== SUBSCRIPTIONS ==== */

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type Subscription struct {
	ID          int64              `json:"id"`
	AccountID   int64              `json:"account_id"`
	PlanID      int64              `json:"plan_id"`
	Service     string             `json:"service"`
	PaymentURL  string             `json:"payment_url,omitempty"`
	Status      SubscriptionStatus `json:"status"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	CancelledAt *string            `json:"cancelled_at"`
	CreatedAt   *string            `json:"created_at"`
	UpdatedAt   *string            `json:"updated_at"`
	Plan        Plan               `json:"plan"`
}

// Plan is the plan embedded in a subscription.
type Plan struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	Price        Amount  `json:"price"`
	Domain       string  `json:"domain"`
	SubUserLimit int     `json:"sub_user_limit"`
	ProductLimit int     `json:"product_limit"`
	CreatedAt    *string `json:"created_at"`
	UpdatedAt    *string `json:"updated_at"`
}

type SubscriptionPlan struct {
	ID           ID       `json:"id"`
	Name         string   `json:"name"`
	Price        Amount   `json:"price"`
	Features     []string `json:"features"`
	IsActive     bool     `json:"isActive"`
	SubUserLimit int      `json:"sub_user_limit"`
	ProductLimit int      `json:"product_limit"`
}

type CustomUserLimit struct {
	ID    ID     `json:"id"`
	Type  string `json:"type"`
	Count int    `json:"count"`
	Price Amount `json:"price"`
}

type NewSubscription struct {
	PlanID    string `json:"plan_id"`
	Service   string `json:"service"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Duration  int    `json:"duration"`
}

type CustomSubscription struct {
	PlanID      int64  `json:"plan_id"`
	Service     string `json:"service"`
	Duration    int    `json:"duration"`
	UserLimitID int64  `json:"user_limit_id"`
}

// SubscriptionUpdate holds the mutable subscription fields; zero values are
// omitted.
type SubscriptionUpdate struct {
	PlanID  int64              `json:"plan_id,omitempty"`
	Service string             `json:"service,omitempty"`
	Status  SubscriptionStatus `json:"status,omitempty"`
	EndDate string             `json:"end_date,omitempty"`
}

// Checkout is returned by subscription creation calls.
type Checkout struct {
	Message    string `json:"message,omitempty"`
	PaymentURL string `json:"payment_url"`
}

// PendingSubscription describes a 409 from subscription creation: the
// account already has a subscription awaiting payment at PaymentURL.
type PendingSubscription struct {
	Message    string
	PaymentURL string
}

type Invoice struct {
	ID          ID      `json:"id"`
	PlanID      ID      `json:"plan_id"`
	Date        string  `json:"date"`
	Amount      Amount  `json:"amount"`
	Status      string  `json:"status"`
	PaymentLink *string `json:"payment_link,omitempty"`
}

// AnalyticsPeriod is the analytics window.
type AnalyticsPeriod string

const (
	Period7Days  AnalyticsPeriod = "7d"
	Period30Days AnalyticsPeriod = "30d"
	Period90Days AnalyticsPeriod = "90d"
)

/* ==== USERS ==== */

type Permission struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

// GrantedPermission is a permission row attached to a user.
type GrantedPermission struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	GuardName string          `json:"guard_name"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	Pivot     json.RawMessage `json:"pivot,omitempty"`
}

type NewUser struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Permissions []string `json:"permissions"`
}

type UserUpdate struct {
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Password    string   `json:"password,omitempty"`
	Permissions []string `json:"permissions"`
}

type AuthenticatedProduct struct {
	ID           int64          `json:"id"`
	RefCode      string         `json:"ref_code,omitempty"`
	Brand        string         `json:"brand,omitempty"`
	Model        string         `json:"model,omitempty"`
	SerialNumber string         `json:"serial_number,omitempty"`
	Status       string         `json:"status,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	Analysis     map[string]any `json:"analysis,omitempty"`
}

type PageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page,omitempty"`
	Total       int `json:"total,omitempty"`
}

type ProductPage struct {
	Data []AuthenticatedProduct `json:"data"`
	Meta PageMeta               `json:"meta"`
}

/* ==== ORDERS ==== */

type Order struct {
	ID            int64     `json:"id"`
	InvoiceNumber string    `json:"invoice_number"`
	ShippingCost  Amount    `json:"shipping_cost"`
	Discount      Amount    `json:"discount"`
	CreditName    string    `json:"credit_name"`
	CreditsID     int64     `json:"credits_id"`
	UserID        int64     `json:"user_id"`
	PaymentURL    *string   `json:"payment_url"`
	Amount        Amount    `json:"amount"`
	ExternalID    string    `json:"external_id"`
	Quantity      int       `json:"quantity"`
	Status        string    `json:"status"`
	CreatedAt     string    `json:"created_at"`
	UpdatedAt     string    `json:"updated_at"`
	Shipment      *Shipment `json:"shipment,omitempty"`
	User          *User     `json:"user,omitempty"`
	AddedBy       *AddedBy  `json:"added_by,omitempty"`
}

type Shipment struct {
	ID              int64   `json:"id"`
	CreditInvoiceID int64   `json:"credit_invoice_id"`
	ShipmentNumber  string  `json:"shipment_number"`
	TrackingNumber  string  `json:"tracking_number"`
	Courier         string  `json:"courier"`
	FullName        string  `json:"full_name"`
	PhoneNumber     string  `json:"phone_number"`
	Street          string  `json:"street"`
	Barangay        *string `json:"barangay"`
	City            string  `json:"city"`
	Province        string  `json:"province"`
	PostalCode      string  `json:"postal_code"`
	Country         string  `json:"country"`
	Status          string  `json:"status"`
	ShipmentDate    *string `json:"shipment_date"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type AddedBy struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OrderPage is the paginator returned under data by the orders route.
type OrderPage struct {
	Data        []Order `json:"data"`
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
	PerPage     int     `json:"per_page,omitempty"`
	Total       int     `json:"total,omitempty"`
}

// Result is the {success, message} acknowledgement some mutations return.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

/* ==== CREDITS ==== */

type Credit struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Price    Amount `json:"price"`
	Quantity int    `json:"quantity"`
}

type ShippingDetails struct {
	FullName   string `json:"full_name"`
	Street     string `json:"street"`
	Barangay   string `json:"barangay"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// Attachment is an uploaded file. Data is read once when the request is
// built.
type Attachment struct {
	Filename string
	Data     []byte
}

type TopUp struct {
	CreditID    ID                    `json:"credit_id"`
	Quantity    int                   `json:"quantity"`
	Shipping    ShippingDetails       `json:"shipping"`
	Attachments map[string]Attachment `json:"-"`
}

type TopUpResult struct {
	Success    bool   `json:"success"`
	InvoiceURL string `json:"invoice_url"`
	Message    string `json:"message,omitempty"`
}

// Quote is the checkout total for one credit package.
type Quote struct {
	Subtotal    float64
	ShippingFee float64
	Total       float64
	Currency    string
}

/* ==== NFC ==== */

type RefCodeValidity struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}
