package domain

import "time"

// BaseModel is the common base struct for all domain models.
// Soft deletion is modeled as an explicit Deleted flag on each entity rather
// than gorm.DeletedAt, because uniqueness checks and list filters need to
// address deleted rows directly.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageRequest holds pagination, sorting, and filtering parameters.
// Deleted is tri-state: nil means "only not-deleted rows"; an explicit
// true/false constrains exactly on the flag.
type PageRequest struct {
	Page     int
	PageSize int
	Sort     string
	Filter   map[string]string
	Deleted  *bool
}

// PageResult is a slice of a larger result set plus navigation metadata.
type PageResult[T any] struct {
	Items       []T   `json:"items"`
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	TotalPages  int   `json:"total_pages"`
	First       bool  `json:"first"`
	Last        bool  `json:"last"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}
