package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/clock"
	"github.com/smallbiznis/wastebill/internal/customer/domain"
	"github.com/smallbiznis/wastebill/pkg/db"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"github.com/smallbiznis/wastebill/pkg/phone"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	phoneNumber, err := phone.Sanitize(req.PhoneNumber)
	if err != nil {
		return domain.Customer{}, domain.ErrInvalidPhone
	}

	if req.MonthlyCharge < 0 {
		return domain.Customer{}, domain.ErrInvalidMonthlyCharge
	}

	var day domain.CollectionDay
	if strings.TrimSpace(req.CollectionDay) != "" {
		parsed, ok := domain.ParseCollectionDay(req.CollectionDay)
		if !ok {
			return domain.Customer{}, domain.ErrInvalidCollectionDay
		}
		day = parsed
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:             s.genID.Generate(),
		FirstName:      firstName,
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.TrimSpace(req.Email),
		PhoneNumber:    phoneNumber,
		Gender:         strings.TrimSpace(req.Gender),
		County:         strings.TrimSpace(req.County),
		Town:           strings.TrimSpace(req.Town),
		Location:       strings.TrimSpace(req.Location),
		EstateName:     strings.TrimSpace(req.EstateName),
		Building:       strings.TrimSpace(req.Building),
		HouseNumber:    strings.TrimSpace(req.HouseNumber),
		Category:       strings.TrimSpace(req.Category),
		MonthlyCharge:  req.MonthlyCharge,
		CollectionDay:  day,
		ClosingBalance: req.OpeningBalance,
		Status:         domain.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Customer{}, domain.ErrDuplicatePhone
		}
		return domain.Customer{}, err
	}

	s.log.Info("customer created",
		zap.String("customer_id", customer.ID.String()),
		zap.Int64("monthly_charge", customer.MonthlyCharge),
	)
	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	filter := domain.ListCustomerFilter{
		EstateName: strings.TrimSpace(req.EstateName),
		Name:       strings.TrimSpace(req.Name),
		Collected:  req.Collected,
	}
	if value := strings.TrimSpace(req.Status); value != "" {
		status := domain.Status(strings.ToUpper(value))
		if !status.Valid() {
			return domain.ListCustomerResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if value := strings.TrimSpace(req.CollectionDay); value != "" {
		day, ok := domain.ParseCollectionDay(value)
		if !ok {
			return domain.ListCustomerResponse{}, domain.ErrInvalidCollectionDay
		}
		filter.CollectionDay = day
	}
	if value := strings.TrimSpace(req.PhoneNumber); value != "" {
		sanitized, err := phone.Sanitize(value)
		if err != nil {
			return domain.ListCustomerResponse{}, domain.ErrInvalidPhone
		}
		filter.PhoneNumber = sanitized
	}

	pageSize := int32(pagination.Pagination{PageSize: int(req.PageSize)}.Limit())

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(customer *domain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        customer.ID.String(),
			CreatedAt: customer.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	resp := domain.ListCustomerResponse{Customers: customers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) FindByPhone(ctx context.Context, value string) (domain.Customer, error) {
	phoneNumber, err := phone.Sanitize(value)
	if err != nil {
		if errors.Is(err, phone.ErrInvalidPhone) {
			return domain.Customer{}, domain.ErrInvalidPhone
		}
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByPhone(ctx, s.db, phoneNumber)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status domain.Status) (domain.Customer, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}
	status = domain.Status(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return domain.Customer{}, domain.ErrInvalidStatus
	}

	updated, err := s.repo.UpdateStatus(ctx, s.db, customerID, status, s.clock.Now())
	if err != nil {
		return domain.Customer{}, err
	}
	if !updated {
		return domain.Customer{}, domain.ErrNotFound
	}

	s.log.Info("customer status changed",
		zap.String("customer_id", customerID.String()),
		zap.String("status", string(status)),
	)
	return s.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}

	var updated domain.Customer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.LockForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		next := *current
		if err := applyUpdate(&next, req); err != nil {
			return err
		}
		next.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateProfile(ctx, tx, &next); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicatePhone
			}
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.log.Info("customer updated",
		zap.String("customer_id", updated.ID.String()),
		zap.Int64("monthly_charge", updated.MonthlyCharge),
		zap.String("collection_day", string(updated.CollectionDay)),
	)
	return updated, nil
}

func applyUpdate(c *domain.Customer, req domain.UpdateCustomerRequest) error {
	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if name == "" {
			return domain.ErrInvalidName
		}
		c.FirstName = name
	}
	if req.PhoneNumber != nil {
		sanitized, err := phone.Sanitize(*req.PhoneNumber)
		if err != nil {
			return domain.ErrInvalidPhone
		}
		c.PhoneNumber = sanitized
	}
	if req.MonthlyCharge != nil {
		if *req.MonthlyCharge < 0 {
			return domain.ErrInvalidMonthlyCharge
		}
		c.MonthlyCharge = *req.MonthlyCharge
	}
	if req.CollectionDay != nil {
		if strings.TrimSpace(*req.CollectionDay) == "" {
			c.CollectionDay = ""
		} else {
			day, ok := domain.ParseCollectionDay(*req.CollectionDay)
			if !ok {
				return domain.ErrInvalidCollectionDay
			}
			c.CollectionDay = day
		}
	}

	text := []struct {
		src *string
		dst *string
	}{
		{req.LastName, &c.LastName},
		{req.Email, &c.Email},
		{req.Gender, &c.Gender},
		{req.County, &c.County},
		{req.Town, &c.Town},
		{req.Location, &c.Location},
		{req.EstateName, &c.EstateName},
		{req.Building, &c.Building},
		{req.HouseNumber, &c.HouseNumber},
		{req.Category, &c.Category},
	}
	for _, field := range text {
		if field.src != nil {
			*field.dst = strings.TrimSpace(*field.src)
		}
	}
	return nil
}

func (s *Service) MarkCollected(ctx context.Context, id string) (domain.Customer, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}

	var marked domain.Customer
	var recorded bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.LockForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		marked = *current
		if current.Collected {
			return nil
		}

		now := s.clock.Now()
		if err := s.repo.SetCollected(ctx, tx, customerID, true, now); err != nil {
			return err
		}
		if err := s.repo.InsertCollection(ctx, tx, &domain.CollectionRecord{
			ID:          s.genID.Generate(),
			CustomerID:  customerID,
			CollectedAt: now,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		marked.Collected = true
		marked.UpdatedAt = now
		recorded = true
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}

	if recorded {
		s.log.Info("collection recorded", zap.String("customer_id", customerID.String()))
	}
	return marked, nil
}

func (s *Service) ListCollections(ctx context.Context, id string, limit int) ([]domain.CollectionRecord, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return nil, err
	}
	customer, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}

	limit = pagination.Pagination{PageSize: limit}.Limit()
	items, err := s.repo.ListCollections(ctx, s.db, customerID, limit)
	if err != nil {
		return nil, err
	}
	records := make([]domain.CollectionRecord, 0, len(items))
	for _, item := range items {
		if item != nil {
			records = append(records, *item)
		}
	}
	return records, nil
}

func (s *Service) ResetCollections(ctx context.Context) (domain.ResetCollectionsResult, error) {
	reset, err := s.repo.ResetCollected(ctx, s.db, s.clock.Now())
	if err != nil {
		return domain.ResetCollectionsResult{}, err
	}
	s.log.Info("collection flags reset", zap.Int64("reset", reset))
	return domain.ResetCollectionsResult{Reset: reset}, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
