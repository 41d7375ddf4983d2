package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	"github.com/smallbiznis/wastebill/internal/clock"
	"github.com/smallbiznis/wastebill/internal/customer/domain"
	"github.com/smallbiznis/wastebill/internal/customer/repository"
	"github.com/smallbiznis/wastebill/internal/customer/service"
	"github.com/smallbiznis/wastebill/internal/testutil/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	return service.New(service.Params{
		DB:    testdb.Open(t),
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	}), clk
}

func TestCreateSanitisesPhone(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{
		FirstName:     " Wanjiru ",
		LastName:      "Kamau",
		PhoneNumber:   "0712 345 678",
		MonthlyCharge: 50000,
		CollectionDay: "monday",
	})
	require.NoError(t, err)
	assert.Equal(t, "254712345678", created.PhoneNumber)
	assert.Equal(t, "Wanjiru", created.FirstName)
	assert.Equal(t, domain.Monday, created.CollectionDay)
	assert.Equal(t, domain.StatusActive, created.Status)

	found, err := svc.FindByPhone(ctx, "+254 712 345 678")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestCreateRejectsDuplicatePhone(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{FirstName: "A", PhoneNumber: "712345678"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{FirstName: "B", PhoneNumber: "254712345678"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, billingerr.ErrConflict))
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	cases := []struct {
		name string
		req  domain.CreateCustomerRequest
		want error
	}{
		{name: "missing_name", req: domain.CreateCustomerRequest{PhoneNumber: "0712345678"}, want: domain.ErrInvalidName},
		{name: "bad_phone", req: domain.CreateCustomerRequest{FirstName: "A", PhoneNumber: "12345"}, want: domain.ErrInvalidPhone},
		{name: "negative_charge", req: domain.CreateCustomerRequest{FirstName: "A", PhoneNumber: "0712345678", MonthlyCharge: -1}, want: domain.ErrInvalidMonthlyCharge},
		{name: "bad_day", req: domain.CreateCustomerRequest{FirstName: "A", PhoneNumber: "0712345678", CollectionDay: "someday"}, want: domain.ErrInvalidCollectionDay},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, billingerr.ErrInvalidInput)
		})
	}
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.GetByID(context.Background(), "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, billingerr.ErrNotFound)
}

func TestSetStatusAndList(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	phones := []string{"0711000001", "0711000002", "0711000003"}
	var ids []snowflake.ID
	for _, p := range phones {
		c, err := svc.Create(ctx, domain.CreateCustomerRequest{FirstName: "C", PhoneNumber: p, MonthlyCharge: 100})
		require.NoError(t, err)
		ids = append(ids, c.ID)
		clk.Advance(time.Minute)
	}

	updated, err := svc.SetStatus(ctx, ids[0].String(), "inactive")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, updated.Status)

	active, err := svc.List(ctx, domain.ListCustomerRequest{Status: "ACTIVE"})
	require.NoError(t, err)
	assert.Len(t, active.Customers, 2)

	first, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, ids[2], first.Customers[0].ID)

	second, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Customers, 1)
	assert.Equal(t, ids[0], second.Customers[0].ID)
	assert.False(t, second.HasMore)
}

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func TestUpdateChangesProfileOnly(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{
		FirstName:      "Njeri",
		LastName:       "Mwangi",
		PhoneNumber:    "0722111222",
		MonthlyCharge:  30000,
		CollectionDay:  "monday",
		EstateName:     "Kilimani",
		OpeningBalance: 4500,
	})
	require.NoError(t, err)
	clk.Advance(time.Hour)

	updated, err := svc.Update(ctx, created.ID.String(), domain.UpdateCustomerRequest{
		LastName:      strPtr(" Wambui "),
		PhoneNumber:   strPtr("+254 722 333 444"),
		MonthlyCharge: int64Ptr(45000),
		CollectionDay: strPtr("thursday"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Njeri", updated.FirstName)
	assert.Equal(t, "Wambui", updated.LastName)
	assert.Equal(t, "254722333444", updated.PhoneNumber)
	assert.Equal(t, int64(45000), updated.MonthlyCharge)
	assert.Equal(t, domain.Thursday, updated.CollectionDay)
	assert.Equal(t, "Kilimani", updated.EstateName)
	assert.Equal(t, int64(4500), updated.ClosingBalance)
	assert.Equal(t, clk.Now(), updated.UpdatedAt)

	stored, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(45000), stored.MonthlyCharge)
	assert.Equal(t, domain.Thursday, stored.CollectionDay)
	assert.Equal(t, int64(4500), stored.ClosingBalance)
}

func TestUpdateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateCustomerRequest{FirstName: "A", PhoneNumber: "0733000001", MonthlyCharge: 100})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateCustomerRequest{FirstName: "B", PhoneNumber: "0733000002", MonthlyCharge: 100})
	require.NoError(t, err)

	cases := []struct {
		name string
		id   string
		req  domain.UpdateCustomerRequest
		want error
	}{
		{name: "blank_name", id: first.ID.String(), req: domain.UpdateCustomerRequest{FirstName: strPtr("  ")}, want: domain.ErrInvalidName},
		{name: "bad_phone", id: first.ID.String(), req: domain.UpdateCustomerRequest{PhoneNumber: strPtr("12345")}, want: domain.ErrInvalidPhone},
		{name: "negative_charge", id: first.ID.String(), req: domain.UpdateCustomerRequest{MonthlyCharge: int64Ptr(-5)}, want: domain.ErrInvalidMonthlyCharge},
		{name: "bad_day", id: first.ID.String(), req: domain.UpdateCustomerRequest{CollectionDay: strPtr("funday")}, want: domain.ErrInvalidCollectionDay},
		{name: "taken_phone", id: first.ID.String(), req: domain.UpdateCustomerRequest{PhoneNumber: strPtr("0733000002")}, want: domain.ErrDuplicatePhone},
		{name: "unknown", id: "987654321", req: domain.UpdateCustomerRequest{LastName: strPtr("X")}, want: domain.ErrNotFound},
		{name: "bad_id", id: "abc", req: domain.UpdateCustomerRequest{}, want: domain.ErrInvalidID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(ctx, tc.id, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	stored, err := svc.GetByID(ctx, first.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "254733000001", stored.PhoneNumber)
	assert.Equal(t, int64(100), stored.MonthlyCharge)
}

func TestListSearchesByName(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	seeds := []domain.CreateCustomerRequest{
		{FirstName: "Achieng", LastName: "Odhiambo", PhoneNumber: "0744000001"},
		{FirstName: "Otieno", LastName: "Achieng", PhoneNumber: "0744000002"},
		{FirstName: "Kamau", LastName: "Njoroge", PhoneNumber: "0744000003"},
	}
	for _, req := range seeds {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	found, err := svc.List(ctx, domain.ListCustomerRequest{Name: "aCHIeng"})
	require.NoError(t, err)
	assert.Len(t, found.Customers, 2)

	found, err = svc.List(ctx, domain.ListCustomerRequest{Name: "100%"})
	require.NoError(t, err)
	assert.Empty(t, found.Customers)
}

func TestMarkCollectedAndReset(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, domain.CreateCustomerRequest{FirstName: "A", PhoneNumber: "0755000001"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, domain.CreateCustomerRequest{FirstName: "B", PhoneNumber: "0755000002"})
	require.NoError(t, err)

	marked, err := svc.MarkCollected(ctx, a.ID.String())
	require.NoError(t, err)
	assert.True(t, marked.Collected)

	again, err := svc.MarkCollected(ctx, a.ID.String())
	require.NoError(t, err)
	assert.True(t, again.Collected)

	history, err := svc.ListCollections(ctx, a.ID.String(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, a.ID, history[0].CustomerID)
	assert.WithinDuration(t, clk.Now(), history[0].CollectedAt, time.Second)

	collected := true
	list, err := svc.List(ctx, domain.ListCustomerRequest{Collected: &collected})
	require.NoError(t, err)
	require.Len(t, list.Customers, 1)
	assert.Equal(t, a.ID, list.Customers[0].ID)

	clk.Advance(7 * 24 * time.Hour)
	result, err := svc.ResetCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Reset)

	stored, err := svc.GetByID(ctx, a.ID.String())
	require.NoError(t, err)
	assert.False(t, stored.Collected)

	_, err = svc.MarkCollected(ctx, a.ID.String())
	require.NoError(t, err)
	history, err = svc.ListCollections(ctx, a.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.WithinDuration(t, clk.Now(), history[0].CollectedAt, time.Second)

	history, err = svc.ListCollections(ctx, b.ID.String(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = svc.MarkCollected(ctx, "424242")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.ListCollections(ctx, "424242", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
