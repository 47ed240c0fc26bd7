package entities

import "time"

// Employee is the read model of a staff member used to resolve alert
// recipients and template values.
type Employee struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	InstitutionID string    `gorm:"size:64;not null;index:idx_employees_institution_department,priority:1" json:"institutionId"`
	FullName      string    `gorm:"size:255;not null" json:"fullName"`
	Email         string    `gorm:"size:255;default:''" json:"email"`
	Role          string    `gorm:"size:32;not null" json:"role"`
	Department    string    `gorm:"size:128;default:'';index:idx_employees_institution_department,priority:2" json:"department"`
	Active        bool      `gorm:"not null" json:"active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (Employee) TableName() string {
	return "employees"
}
