package model

import "time"

type Category struct {
	ID        string    `db:"id"`
	FamilyID  string    `db:"family_id"`
	Name      string    `db:"name"`
	Kind      string    `db:"kind"` // "expense" or "income"
	CreatedAt time.Time `db:"created_at"`
}

const (
	CategoryKindExpense = "expense"
	CategoryKindIncome  = "income"
)

// DefaultCategories are created for every new family.
var DefaultCategories = []struct {
	Name string
	Kind string
}{
	{"Groceries", CategoryKindExpense},
	{"Housing", CategoryKindExpense},
	{"Utilities", CategoryKindExpense},
	{"Transport", CategoryKindExpense},
	{"Health", CategoryKindExpense},
	{"Entertainment", CategoryKindExpense},
	{"Savings", CategoryKindExpense},
	{"Salary", CategoryKindIncome},
	{"Other income", CategoryKindIncome},
}
