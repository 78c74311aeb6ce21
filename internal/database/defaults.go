package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/jask/jaskledger/internal/database/repository"
)

var defaultCategories = []string{
	"income > Work > Salary",
	"income > Work > Bonus",
	"income > Other > Refunds",
	"expense > Food > Groceries",
	"expense > Food > Restaurants",
	"expense > Home > Rent",
	"expense > Home > Utilities",
	"expense > Transport > Fuel",
	"expense > Transport > Public Transport",
	"expense > Leisure > Subscriptions",
	"expense > Leisure > Entertainment",
	"expense > Health > Pharmacy",
	"transfer > Savings > Deposit",
}

// CategoryID derives a stable id from a category path so seeding is repeatable.
func CategoryID(transactionType, macro, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("cat:"+transactionType+">"+macro+">"+name)).String()
}

// SeedDefaults ensures baseline categories exist for new databases.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	catRepo := repository.NewCategoryRepo(db)
	existing, err := catRepo.List(ctx)
	if err == nil && len(existing) > 0 {
		return nil
	}
	for _, path := range defaultCategories {
		parts := strings.Split(path, ">")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cat := repository.Category{
			ID:              CategoryID(parts[0], parts[1], parts[2]),
			TransactionType: parts[0],
			MacroCategory:   parts[1],
			Name:            parts[2],
		}
		if err := catRepo.Upsert(ctx, cat); err != nil {
			return err
		}
	}
	return nil
}
