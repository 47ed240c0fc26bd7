package entities

// AlertCondition is the single threshold test of a rule.
type AlertCondition struct {
	Threshold  float64 `gorm:"not null" json:"threshold" validate:"gte=0"`
	Unit       string  `gorm:"size:16;not null" json:"unit" validate:"oneof=minutes hours days"`
	Comparison string  `gorm:"size:16;not null" json:"comparison" validate:"oneof=greater_than less_than equals"`
}
