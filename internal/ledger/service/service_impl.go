package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/clock"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/wastebill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Post(ctx context.Context, tx *gorm.DB, entry ledgerdomain.BalanceEntry) error {
	if entry.CustomerID == 0 {
		return ledgerdomain.ErrInvalidCustomer
	}
	sourceType, err := normalizeSourceType(entry.SourceType)
	if err != nil {
		return err
	}
	if entry.SourceID == 0 {
		return ledgerdomain.ErrInvalidSourceID
	}
	if tx == nil {
		tx = s.db
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	result := tx.WithContext(ctx).Exec(
		`INSERT INTO balance_entries (
			id, customer_id, source_type, source_id, amount, balance_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_type, source_id) DO NOTHING`,
		s.genID.Generate(),
		entry.CustomerID,
		string(sourceType),
		entry.SourceID,
		entry.Amount,
		entry.BalanceAfter,
		createdAt.UTC(),
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("balance entry already posted",
			zap.String("source_type", string(sourceType)),
			zap.String("source_id", entry.SourceID.String()),
		)
		return nil
	}
	s.obsMetrics.RecordBalanceEntry(ctx, string(sourceType))
	return nil
}

func (s *Service) Replay(ctx context.Context, customerID snowflake.ID) (int64, error) {
	if customerID == 0 {
		return 0, ledgerdomain.ErrInvalidCustomer
	}
	var total struct {
		Sum int64
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS sum FROM balance_entries WHERE customer_id = ?`,
		customerID,
	).Scan(&total).Error; err != nil {
		return 0, err
	}
	return total.Sum, nil
}

func (s *Service) Entries(ctx context.Context, customerID snowflake.ID) ([]ledgerdomain.BalanceEntry, error) {
	if customerID == 0 {
		return nil, ledgerdomain.ErrInvalidCustomer
	}
	var entries []ledgerdomain.BalanceEntry
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, customer_id, source_type, source_id, amount, balance_after, created_at
		FROM balance_entries
		WHERE customer_id = ?
		ORDER BY created_at ASC, id ASC`,
		customerID,
	).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func normalizeSourceType(value ledgerdomain.SourceType) (ledgerdomain.SourceType, error) {
	switch ledgerdomain.SourceType(strings.ToLower(strings.TrimSpace(string(value)))) {
	case ledgerdomain.SourceTypeInvoice:
		return ledgerdomain.SourceTypeInvoice, nil
	case ledgerdomain.SourceTypePayment:
		return ledgerdomain.SourceTypePayment, nil
	case ledgerdomain.SourceTypeCancellation:
		return ledgerdomain.SourceTypeCancellation, nil
	default:
		return "", ledgerdomain.ErrInvalidSourceType
	}
}
