package models

import "time"

// UserRole selects the permission tier of an account. Operators run the
// day-to-day roster work, admins additionally manage accounts and exports.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleOperator UserRole = "OPERATOR"
	RoleTourist  UserRole = "TOURIST"
)

// Staff reports whether the role belongs to back-office personnel.
func (r UserRole) Staff() bool {
	return r == RoleAdmin || r == RoleOperator
}

// User is a row in the users table. Tourists may register with a phone
// number instead of an email, so phone lives alongside email and both are
// optional at the database level.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter narrows account listings.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination is the paging block attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination assembles the paging block, deriving the page count from the
// total.
func NewPagination(page, pageSize, total int) *Pagination {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return &Pagination{Page: page, PageSize: pageSize, TotalCount: total, TotalPages: pages}
}
