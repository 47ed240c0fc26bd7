package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delivery status values recorded on AlertHistory.
const (
	DeliveryStatusSent    = "sent"
	DeliveryStatusPartial = "partial"
	DeliveryStatusFailed  = "failed"
)

// AlertHistory records each dispatch of a rule for an employee. Rows are
// kept when the rule is deleted, so RuleName is copied at fire time.
type AlertHistory struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	RuleID        string     `gorm:"size:36;not null;index:idx_alert_history_rule_fired,priority:1" json:"ruleId"`
	RuleName      string     `gorm:"size:255;not null;default:''" json:"ruleName"`
	InstitutionID string     `gorm:"size:64;not null;index:idx_alert_history_institution_fired,priority:1" json:"institutionId"`
	EmployeeID    string     `gorm:"size:64;not null;index" json:"employeeId"`
	EmployeeName  string     `gorm:"size:255;default:''" json:"employeeName"`
	Type          string     `gorm:"size:32;not null" json:"type"`
	Subject       string     `gorm:"size:500;default:''" json:"subject"`
	Content       string     `gorm:"type:text" json:"content"`
	MeasuredValue float64    `json:"measuredValue"`
	MeasuredUnit  string     `gorm:"size:16" json:"measuredUnit"`
	DelayMinutes  float64    `json:"delayMinutes"`
	Attempt       int        `gorm:"not null" json:"attempt"`
	Recipients    StringList `json:"recipients"`
	InternalSent  int        `json:"internalSent"`
	EmailSent     int        `json:"emailSent"`
	EmailFailed   int        `json:"emailFailed"`
	EmailSkipped  int        `json:"emailSkipped"`
	Status        string     `gorm:"size:16;not null" json:"status"`
	FiredAt       time.Time  `gorm:"not null;index:idx_alert_history_rule_fired,priority:2;index:idx_alert_history_institution_fired,priority:2" json:"firedAt"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for GORM.
func (AlertHistory) TableName() string {
	return "alert_history"
}

func (h *AlertHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
