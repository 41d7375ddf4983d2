package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/customer/domain"
	"github.com/smallbiznis/wastebill/pkg/db/option"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const customerColumns = `id, first_name, last_name, email, phone_number, gender, county, town,
	location, estate_name, building, house_number, category, monthly_charge, collection_day,
	collected, closing_balance, status, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (`+customerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.FirstName,
		customer.LastName,
		customer.Email,
		customer.PhoneNumber,
		customer.Gender,
		customer.County,
		customer.Town,
		customer.Location,
		customer.EstateName,
		customer.Building,
		customer.HouseNumber,
		customer.Category,
		customer.MonthlyCharge,
		string(customer.CollectionDay),
		customer.Collected,
		customer.ClosingBalance,
		string(customer.Status),
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) FindByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+` FROM customers WHERE phone_number = ?`,
		phone,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).Model(&domain.Customer{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", string(filter.Status))
	}
	if filter.CollectionDay != "" {
		stmt = stmt.Where("collection_day = ?", string(filter.CollectionDay))
	}
	if filter.EstateName != "" {
		stmt = stmt.Where("estate_name = ?", filter.EstateName)
	}
	if filter.PhoneNumber != "" {
		stmt = stmt.Where("phone_number = ?", filter.PhoneNumber)
	}
	if filter.Name != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Name)) + "%"
		stmt = stmt.Where(`(LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if filter.Collected != nil {
		stmt = stmt.Where("collected = ?", *filter.Collected)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) ListForBilling(ctx context.Context, db *gorm.DB, filter domain.BillingFilter) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("status = ?", string(domain.StatusActive)).
		Where("monthly_charge > 0")
	if filter.CollectionDay != nil {
		stmt = stmt.Where("collection_day = ?", string(*filter.CollectionDay))
	}
	if len(filter.CustomerIDs) > 0 {
		stmt = stmt.Where("id IN ?", filter.CustomerIDs)
	}
	if err := stmt.Order("id asc").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, updatedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE customers SET status = ?, updated_at = ? WHERE id = ?`,
		string(status),
		updatedAt,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) LockForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := tx.WithContext(ctx).
		Model(&domain.Customer{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) UpdateBalance(ctx context.Context, tx *gorm.DB, id snowflake.ID, balance int64, updatedAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE customers SET closing_balance = ?, updated_at = ? WHERE id = ?`,
		balance,
		updatedAt,
		id,
	).Error
}

func (r *repo) UpdateProfile(ctx context.Context, tx *gorm.DB, customer *domain.Customer) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE customers SET first_name = ?, last_name = ?, email = ?, phone_number = ?, gender = ?,
			county = ?, town = ?, location = ?, estate_name = ?, building = ?, house_number = ?,
			category = ?, monthly_charge = ?, collection_day = ?, updated_at = ?
		 WHERE id = ?`,
		customer.FirstName,
		customer.LastName,
		customer.Email,
		customer.PhoneNumber,
		customer.Gender,
		customer.County,
		customer.Town,
		customer.Location,
		customer.EstateName,
		customer.Building,
		customer.HouseNumber,
		customer.Category,
		customer.MonthlyCharge,
		string(customer.CollectionDay),
		customer.UpdatedAt,
		customer.ID,
	).Error
}

func (r *repo) SetCollected(ctx context.Context, tx *gorm.DB, id snowflake.ID, collected bool, updatedAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE customers SET collected = ?, updated_at = ? WHERE id = ?`,
		collected,
		updatedAt,
		id,
	).Error
}

func (r *repo) ResetCollected(ctx context.Context, db *gorm.DB, updatedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE customers SET collected = ?, updated_at = ? WHERE collected = ?`,
		false,
		updatedAt,
		true,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) InsertCollection(ctx context.Context, tx *gorm.DB, record *domain.CollectionRecord) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO collection_history (id, customer_id, collected_at, created_at) VALUES (?, ?, ?, ?)`,
		record.ID,
		record.CustomerID,
		record.CollectedAt,
		record.CreatedAt,
	).Error
}

func (r *repo) ListCollections(ctx context.Context, db *gorm.DB, customerID snowflake.ID, limit int) ([]*domain.CollectionRecord, error) {
	var records []*domain.CollectionRecord
	err := db.WithContext(ctx).
		Model(&domain.CollectionRecord{}).
		Where("customer_id = ?", customerID).
		Order("collected_at desc, id desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
