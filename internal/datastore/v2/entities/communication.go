package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Communication message types and defaults.
const (
	MessageTypeAlert   = "alert"
	MessageTypeMessage = "message"

	CommunicationStatusSent = "sent"

	PriorityNormal = "normal"
	PriorityHigh   = "high"

	// SystemSender is the sender of automatically generated messages.
	SystemSender = "system"
)

// Communication is an internal in-app message shown in a user's inbox.
type Communication struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	InstitutionID string     `gorm:"size:64;not null;index:idx_communications_institution_created,priority:1" json:"institutionId"`
	SenderID      string     `gorm:"size:64;not null" json:"senderId"`
	RecipientID   string     `gorm:"size:64;not null;index" json:"recipientId"`
	MessageType   string     `gorm:"size:16;not null" json:"messageType"`
	Subject       string     `gorm:"size:500;default:''" json:"subject"`
	Message       string     `gorm:"type:text" json:"message"`
	Status        string     `gorm:"size:16;not null" json:"status"`
	Priority      string     `gorm:"size:16;not null" json:"priority"`
	EmailSent     bool       `gorm:"not null" json:"emailSent"`
	RuleID        string     `gorm:"size:36;default:''" json:"ruleId,omitempty"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index:idx_communications_institution_created,priority:2" json:"createdAt"`
}

// TableName returns the table name for GORM.
func (Communication) TableName() string {
	return "communications"
}

func (c *Communication) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
