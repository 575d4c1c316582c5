// Package finance contains the client-side CRUD surface for transactions,
// categories and budgets.
package finance

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// PageResponse is the backend's page envelope for listed collections.
type PageResponse[T any] struct {
	Items         []T  `json:"items"`
	Page          int  `json:"page"`
	Size          int  `json:"size"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Last          bool `json:"last"`
}

// Category labels transactions and carries a display color.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CategoryRequest is the payload for creating or replacing a category.
type CategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Transaction is a single income or expense entry.
type Transaction struct {
	ID           string          `json:"id"`
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	Type         TransactionType `json:"type"`
	Description  string          `json:"description"`
	Amount       float64         `json:"amount"`
	Date         string          `json:"date"`
	CreatedAt    string          `json:"createdAt"`
	UpdatedAt    string          `json:"updatedAt"`
}

// TransactionCreateRequest is the payload for creating a transaction.
type TransactionCreateRequest struct {
	CategoryID  string          `json:"categoryId"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Date        string          `json:"date"`
}

// TransactionUpdateRequest is a partial update: nil fields are left untouched
// by the backend.
type TransactionUpdateRequest struct {
	CategoryID  *string          `json:"categoryId,omitempty"`
	Type        *TransactionType `json:"type,omitempty"`
	Description *string          `json:"description,omitempty"`
	Amount      *float64         `json:"amount,omitempty"`
	Date        *string          `json:"date,omitempty"`
}

// TransactionQuery narrows a transaction listing. Zero values mean "no filter".
type TransactionQuery struct {
	Month    string
	Category string
	Type     TransactionType
	Search   string
	Page     *int
}

// Budget is a monthly spending cap for one category.
type Budget struct {
	ID           string  `json:"id"`
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Month        string  `json:"month"`
	Amount       float64 `json:"amount"`
}

// BudgetCreateRequest is the payload for creating a budget.
type BudgetCreateRequest struct {
	Month      string  `json:"month"`
	CategoryID string  `json:"categoryId"`
	Amount     float64 `json:"amount"`
}

// BudgetUpdateRequest adjusts a budget's amount.
type BudgetUpdateRequest struct {
	Amount float64 `json:"amount"`
}
