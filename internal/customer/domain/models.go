package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// CollectionDay is the weekday on which a customer's waste is collected.
type CollectionDay string

const (
	Monday    CollectionDay = "MONDAY"
	Tuesday   CollectionDay = "TUESDAY"
	Wednesday CollectionDay = "WEDNESDAY"
	Thursday  CollectionDay = "THURSDAY"
	Friday    CollectionDay = "FRIDAY"
	Saturday  CollectionDay = "SATURDAY"
	Sunday    CollectionDay = "SUNDAY"
)

// ParseCollectionDay accepts any case and surrounding whitespace.
func ParseCollectionDay(value string) (CollectionDay, bool) {
	day := CollectionDay(strings.ToUpper(strings.TrimSpace(value)))
	switch day {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return day, true
	default:
		return "", false
	}
}

type Customer struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	FirstName      string        `gorm:"not null" json:"first_name"`
	LastName       string        `gorm:"not null" json:"last_name"`
	Email          string        `json:"email,omitempty"`
	PhoneNumber    string        `gorm:"not null;uniqueIndex" json:"phone_number"`
	Gender         string        `json:"gender,omitempty"`
	County         string        `json:"county,omitempty"`
	Town           string        `json:"town,omitempty"`
	Location       string        `json:"location,omitempty"`
	EstateName     string        `json:"estate_name,omitempty"`
	Building       string        `json:"building,omitempty"`
	HouseNumber    string        `json:"house_number,omitempty"`
	Category       string        `json:"category,omitempty"`
	MonthlyCharge  int64         `gorm:"not null" json:"monthly_charge"`
	CollectionDay  CollectionDay `json:"collection_day,omitempty"`
	Collected      bool          `gorm:"not null" json:"collected"`
	ClosingBalance int64         `gorm:"not null" json:"closing_balance"`
	Status         Status        `gorm:"not null" json:"status"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

// FullName joins the first and last names.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// CollectionRecord is one confirmed pickup for a customer.
type CollectionRecord struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID  snowflake.ID `gorm:"not null" json:"customer_id"`
	CollectedAt time.Time    `gorm:"not null" json:"collected_at"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

func (CollectionRecord) TableName() string { return "collection_history" }
