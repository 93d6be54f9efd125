package operators

import (
	"strings"
	"time"
	"unicode"
)

// Operator is an identity that owns routes. Immutable after creation.
type Operator struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Phone     string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone"`
	Name      string    `gorm:"type:varchar(120)" json:"name"`
	Approved  bool      `gorm:"default:false" json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the table name for Operator
func (Operator) TableName() string {
	return "operators"
}

// NormalizePhone reduces a phone number to digits with a leading plus.
// "+91 98765-43210", "0091 9876543210" and "919876543210" all collapse to
// the same canonical form so ownership checks compare apples to apples.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	normalized := digits.String()
	normalized = strings.TrimPrefix(normalized, "00")

	if normalized == "" {
		return ""
	}
	return "+" + normalized
}
