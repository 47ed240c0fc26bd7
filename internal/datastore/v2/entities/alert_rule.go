package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlertRule is an institution's staff attendance alert rule. The nested
// condition, notification and schedule blocks are stored as flattened
// prefixed columns (condition_threshold, notification_recipients, ...).
type AlertRule struct {
	ID            string            `gorm:"primaryKey;size:36" json:"id"`
	InstitutionID string            `gorm:"size:64;not null;index" json:"institutionId" validate:"required,max=64"`
	Name          string            `gorm:"size:255;not null" json:"name" validate:"notblank,max=255"`
	Type          string            `gorm:"size:32;not null;index" json:"type" validate:"oneof=late_arrival absence early_departure custom"`
	Enabled       bool              `gorm:"not null;index" json:"enabled"`
	Condition     AlertCondition    `gorm:"embedded;embeddedPrefix:condition_" json:"condition"`
	Notification  AlertNotification `gorm:"embedded;embeddedPrefix:notification_" json:"notification"`
	Schedule      AlertSchedule     `gorm:"embedded;embeddedPrefix:schedule_" json:"schedule"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (AlertRule) TableName() string {
	return "alert_rules"
}

// BeforeCreate assigns an identifier to new rules.
func (r *AlertRule) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// AlertNotification selects delivery channels and recipients.
type AlertNotification struct {
	Email         bool       `gorm:"not null" json:"email"`
	Internal      bool       `gorm:"not null" json:"internal"`
	EmailTemplate string     `gorm:"type:text" json:"emailTemplate" validate:"max=5000"`
	Recipients    StringList `json:"recipients" validate:"dive,notblank,max=64"`
}

// AlertSchedule controls when and how often a fired rule is delivered.
// Delay and RepeatInterval are minutes.
type AlertSchedule struct {
	Immediate      bool `gorm:"not null" json:"immediate"`
	Delay          int  `gorm:"not null" json:"delay" validate:"gte=0"`
	Repeat         bool `gorm:"not null" json:"repeat"`
	RepeatInterval int  `gorm:"not null" json:"repeatInterval" validate:"gte=0"`
}
