package domain

import "time"

// CREATE TABLE public.judgment_modules (
//     name        TEXT PRIMARY KEY,
//     enabled     BOOLEAN NOT NULL DEFAULT TRUE,
//     priority    INT NOT NULL DEFAULT 0,
//     weight      NUMERIC NOT NULL DEFAULT 0,
//     updated_at  TIMESTAMPTZ DEFAULT NOW()
// );

// JudgmentModule is the runtime configuration of one ranking signal.
type JudgmentModule struct {
	Name      string    `json:"name" gorm:"column:name;primaryKey" koanf:"name" validate:"required"`
	Enabled   bool      `json:"enabled" gorm:"column:enabled" koanf:"enabled"`
	Priority  int       `json:"priority" gorm:"column:priority" koanf:"priority"`
	Weight    float64   `json:"weight" gorm:"column:weight;type:numeric" koanf:"weight" validate:"gte=0"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at" koanf:"-"`
}

func (JudgmentModule) TableName() string {
	return "judgment_modules"
}
