package repository

import (
	"context"

	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	"github.com/smallbiznis/wastebill/internal/report/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListDebtors(ctx context.Context, db *gorm.DB) ([]customerdomain.Customer, error) {
	var customers []customerdomain.Customer
	err := db.WithContext(ctx).
		Model(&customerdomain.Customer{}).
		Where("status = ? AND closing_balance > ? AND monthly_charge > ?", string(customerdomain.StatusActive), 0, 0).
		Order("closing_balance desc, id asc").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}
