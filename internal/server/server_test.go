package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/wastebill/internal/authorization"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	"github.com/smallbiznis/wastebill/internal/clock"
	"github.com/smallbiznis/wastebill/internal/config"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	customerrepo "github.com/smallbiznis/wastebill/internal/customer/repository"
	customerservice "github.com/smallbiznis/wastebill/internal/customer/service"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/wastebill/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/wastebill/internal/invoice/service"
	ledgerservice "github.com/smallbiznis/wastebill/internal/ledger/service"
	mpesadomain "github.com/smallbiznis/wastebill/internal/mpesa/domain"
	mpesarepo "github.com/smallbiznis/wastebill/internal/mpesa/repository"
	mpesaservice "github.com/smallbiznis/wastebill/internal/mpesa/service"
	"github.com/smallbiznis/wastebill/internal/observability"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/wastebill/internal/payment/repository"
	paymentservice "github.com/smallbiznis/wastebill/internal/payment/service"
	reportdomain "github.com/smallbiznis/wastebill/internal/report/domain"
	reportrepo "github.com/smallbiznis/wastebill/internal/report/repository"
	reportservice "github.com/smallbiznis/wastebill/internal/report/service"
	"github.com/smallbiznis/wastebill/internal/testutil/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCustomerService struct {
	customerdomain.Service
	getByID func(ctx context.Context, id string) (customerdomain.Customer, error)
	created []customerdomain.CreateCustomerRequest
}

func (f *fakeCustomerService) GetByID(ctx context.Context, id string) (customerdomain.Customer, error) {
	return f.getByID(ctx, id)
}

func (f *fakeCustomerService) Create(_ context.Context, req customerdomain.CreateCustomerRequest) (customerdomain.Customer, error) {
	f.created = append(f.created, req)
	return customerdomain.Customer{ID: 42, FirstName: req.FirstName, MonthlyCharge: req.MonthlyCharge}, nil
}

type fakeMpesaService struct {
	mpesadomain.Service
	ingest func(ctx context.Context, cb mpesadomain.Callback, payload []byte) (mpesadomain.IngestResult, error)
}

func (f *fakeMpesaService) Ingest(ctx context.Context, cb mpesadomain.Callback, payload []byte) (mpesadomain.IngestResult, error) {
	return f.ingest(ctx, cb, payload)
}

func newAuthz(t *testing.T) authorization.Service {
	t.Helper()
	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)
	return authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func newTestServer(t *testing.T, p ServerParams) *gin.Engine {
	t.Helper()
	engine := NewEngine(observability.Config{}, nil)
	p.Gin = engine
	p.Log = zap.NewNop()
	if p.AuthzSvc == nil {
		p.AuthzSvc = newAuthz(t)
	}
	NewServer(p)
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(HeaderActorRole, role)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestMapErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"not found", customerdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"conflict", mpesadomain.ErrAlreadyProcessed, http.StatusConflict, "conflict"},
		{"invalid input", invoicedomain.ErrInvalidMonth, http.StatusBadRequest, "validation_error"},
		{"transaction", billingerr.Transaction(errors.New("deadlock")), http.StatusInternalServerError, "transaction_failed"},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"invalid role", authorization.ErrInvalidRole, http.StatusForbidden, "forbidden"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}

	_, payload := mapError(fmt.Errorf("wrap: %w", invoicedomain.ErrInvalidMonth))
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_month", payload.Errors[0].Code)
	assert.Equal(t, "month", payload.Errors[0].Field)

	typ, code := classifyErrorForLog(customerdomain.ErrDuplicatePhone)
	assert.Equal(t, "conflict", typ)
	assert.Equal(t, "duplicate_phone_number", code)
}

func TestCustomerRoutesEnforceCapabilities(t *testing.T) {
	customers := &fakeCustomerService{
		getByID: func(_ context.Context, id string) (customerdomain.Customer, error) {
			return customerdomain.Customer{ID: 7, FirstName: "Wanjiru"}, nil
		},
	}
	engine := newTestServer(t, ServerParams{CustomerSvc: customers})

	rec := doRequest(t, engine, http.MethodGet, "/api/customers/7", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, engine, http.MethodGet, "/api/customers/7", "collector", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, engine, http.MethodPost, "/api/customers", "collector", map[string]any{"first_name": "Wanjiru"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, customers.created)

	rec = doRequest(t, engine, http.MethodGet, "/api/customers/7", "janitor", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Type)
}

func TestCreateCustomerParsesDecimalAmounts(t *testing.T) {
	customers := &fakeCustomerService{}
	engine := newTestServer(t, ServerParams{CustomerSvc: customers})

	rec := doRequest(t, engine, http.MethodPost, "/api/customers", "customer_manager", []byte(`{
		"first_name": "Wanjiru",
		"phone_number": "0712345678",
		"monthly_charge": "350.50",
		"opening_balance": 100
	}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, customers.created, 1)
	assert.Equal(t, int64(35050), customers.created[0].MonthlyCharge)
	assert.Equal(t, int64(10000), customers.created[0].OpeningBalance)

	rec = doRequest(t, engine, http.MethodPost, "/api/customers", "customer_manager", []byte(`{"monthly_charge": "12.345"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Type)

	rec = doRequest(t, engine, http.MethodPost, "/api/customers", "customer_manager", []byte(`{"monthly_charge": "184467440737095516.17"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, customers.created, 1)
}

func TestGetCustomerNotFound(t *testing.T) {
	customers := &fakeCustomerService{
		getByID: func(context.Context, string) (customerdomain.Customer, error) {
			return customerdomain.Customer{}, customerdomain.ErrNotFound
		},
	}
	engine := newTestServer(t, ServerParams{CustomerSvc: customers})

	rec := doRequest(t, engine, http.MethodGet, "/api/customers/99", "admin", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "not_found", payload.Type)
	assert.Equal(t, "customer not found", payload.Message)
}

func TestMpesaConfirmationAnswersProvider(t *testing.T) {
	var calls int
	mpesa := &fakeMpesaService{
		ingest: func(_ context.Context, cb mpesadomain.Callback, payload []byte) (mpesadomain.IngestResult, error) {
			calls++
			assert.Equal(t, "QJK1ABC", cb.TransID)
			assert.Contains(t, string(payload), `"TransID"`)
			if calls > 1 {
				return mpesadomain.IngestResult{}, mpesadomain.ErrAlreadyProcessed
			}
			return mpesadomain.IngestResult{Outcome: mpesadomain.OutcomeUnmatched}, nil
		},
	}
	engine := newTestServer(t, ServerParams{MpesaSvc: mpesa})

	body := []byte(`{"TransID":"QJK1ABC","TransAmount":"100.00","BillRefNumber":"0712345678"}`)
	rec := doRequest(t, engine, http.MethodPost, "/api/mpesa/confirmation", "", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, rec.Body.String())

	rec = doRequest(t, engine, http.MethodPost, "/api/mpesa/confirmation", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, engine, http.MethodPost, "/api/mpesa/confirmation", "", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 2, calls)

	rec = doRequest(t, engine, http.MethodPost, "/api/mpesa/validation", "", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCapabilitiesForRole(t *testing.T) {
	engine := newTestServer(t, ServerParams{})

	rec := doRequest(t, engine, http.MethodGet, "/api/me/capabilities", "accountant", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Role         string                     `json:"role"`
			Capabilities []authorization.Capability `json:"capabilities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accountant", resp.Data.Role)
	assert.Contains(t, resp.Data.Capabilities, authorization.Capability{Resource: authorization.ResourceReport, Action: authorization.ActionRead})
}

func TestReadyWithoutChecker(t *testing.T) {
	engine := newTestServer(t, ServerParams{})
	rec := doRequest(t, engine, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type stack struct {
	engine *gin.Engine
}

func newStack(t *testing.T) stack {
	t.Helper()
	db := testdb.Open(t)
	node, err := snowflake.NewNode(11)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{AppName: "wastebill", Mpesa: config.MpesaConfig{ReprocessMaxTries: 3}}

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node, Clock: clk})
	customers := customerrepo.Provide()
	invoices := invoicerepo.Provide()
	payments := paymentrepo.Provide()

	customerSvc := customerservice.New(customerservice.Params{DB: db, Log: log, GenID: node, Repo: customers, Clock: clk})
	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		DB: db, Log: log, GenID: node, Cfg: cfg, Repo: invoices,
		CustomerRepo: customers, LedgerSvc: ledgerSvc, Clock: clk,
	})
	paymentSvc := paymentservice.New(paymentservice.Params{
		DB: db, Log: log, GenID: node, Repo: payments, InvoiceRepo: invoices,
		CustomerRepo: customers, LedgerSvc: ledgerSvc, Clock: clk,
	})
	mpesaSvc := mpesaservice.New(mpesaservice.Params{
		DB: db, Log: log, GenID: node, Cfg: cfg, Repo: mpesarepo.Provide(),
		CustomerRepo: customers, PaymentSvc: paymentSvc, Clock: clk,
	})
	reportSvc := reportservice.New(reportservice.Params{
		DB: db, Log: log, Cfg: cfg, Repo: reportrepo.Provide(), CustomerRepo: customers,
		InvoiceRepo: invoices, PaymentRepo: payments, LedgerSvc: ledgerSvc,
	})

	return stack{engine: newTestServer(t, ServerParams{
		Cfg:         cfg,
		CustomerSvc: customerSvc,
		InvoiceSvc:  invoiceSvc,
		PaymentSvc:  paymentSvc,
		MpesaSvc:    mpesaSvc,
		ReportSvc:   reportSvc,
	})}
}

func TestBillingFlowOverHTTP(t *testing.T) {
	s := newStack(t)

	rec := doRequest(t, s.engine, http.MethodPost, "/api/customers", "admin", map[string]any{
		"first_name":     "Achieng",
		"last_name":      "Odhiambo",
		"phone_number":   "0712000111",
		"monthly_charge": "500.00",
		"collection_day": "monday",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Data customerdomain.Customer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	customerID := created.Data.ID.String()

	rec = doRequest(t, s.engine, http.MethodPost, "/api/invoices/issue", "admin", map[string]any{"month": 6, "year": 2026})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var issued struct {
		Data invoicedomain.IssueResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.Len(t, issued.Data.Invoices, 1)
	invoiceID := issued.Data.Invoices[0].ID.String()

	rec = doRequest(t, s.engine, http.MethodPost, "/api/invoices/issue", "admin", map[string]any{"month": 6, "year": 2026})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	assert.Empty(t, issued.Data.Invoices)
	assert.Equal(t, 1, issued.Data.Skipped)

	callback := []byte(`{"TransactionType":"Pay Bill","TransID":"SFT12XY","TransTime":"20260602101500","TransAmount":"500.00","BillRefNumber":"0712000111","MSISDN":"254712000111","FirstName":"ACHIENG"}`)
	rec = doRequest(t, s.engine, http.MethodPost, "/api/mpesa/confirmation", "", callback)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, s.engine, http.MethodPost, "/api/mpesa/confirmation", "", callback)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s.engine, http.MethodGet, "/api/invoices/"+invoiceID, "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Data struct {
			Status     string                      `json:"status"`
			AmountPaid int64                       `json:"amount_paid"`
			Items      []invoicedomain.InvoiceItem `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "PAID", detail.Data.Status)
	assert.Equal(t, int64(50000), detail.Data.AmountPaid)
	assert.Len(t, detail.Data.Items, 1)

	rec = doRequest(t, s.engine, http.MethodGet, "/api/receipts?customer_id="+customerID, "accountant", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var receipts struct {
		Data []paymentdomain.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipts))
	require.Len(t, receipts.Data, 1)
	assert.Equal(t, int64(50000), receipts.Data[0].Amount)

	rec = doRequest(t, s.engine, http.MethodGet, "/api/customers/"+customerID+"/statement", "accountant", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statement struct {
		Data reportdomain.Statement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statement))
	assert.Equal(t, int64(0), statement.Data.ClosingBalance)

	rec = doRequest(t, s.engine, http.MethodGet, "/api/receipts/"+receipts.Data[0].ID.String()+"/pdf", "accountant", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = doRequest(t, s.engine, http.MethodGet, "/api/reports/age-analysis?bucket=nope", "accountant", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCustomerEditAndCollectionOverHTTP(t *testing.T) {
	s := newStack(t)

	rec := doRequest(t, s.engine, http.MethodPost, "/api/customers", "admin", map[string]any{
		"first_name":      "Achieng",
		"phone_number":    "0712000222",
		"monthly_charge":  "500.00",
		"collection_day":  "monday",
		"opening_balance": "20.00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Data customerdomain.Customer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	customerPath := "/api/customers/" + created.Data.ID.String()

	rec = doRequest(t, s.engine, http.MethodPut, customerPath, "customer_manager", map[string]any{"monthly_charge": "650.00"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, s.engine, http.MethodPut, customerPath, "admin", map[string]any{
		"monthly_charge":  "650.00",
		"collection_day":  "friday",
		"closing_balance": "0.00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Data customerdomain.Customer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, int64(65000), updated.Data.MonthlyCharge)
	assert.Equal(t, customerdomain.Friday, updated.Data.CollectionDay)
	assert.Equal(t, int64(2000), updated.Data.ClosingBalance)

	rec = doRequest(t, s.engine, http.MethodPut, customerPath, "admin", map[string]any{"collection_day": "someday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s.engine, http.MethodPost, "/api/invoices/issue", "admin", map[string]any{"month": 6, "year": 2026, "collection_day": "friday"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var issued struct {
		Data invoicedomain.IssueResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.Len(t, issued.Data.Invoices, 1)
	assert.Equal(t, int64(65000), issued.Data.Invoices[0].InvoiceAmount)

	rec = doRequest(t, s.engine, http.MethodPost, customerPath+"/collections", "customer_manager", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, s.engine, http.MethodPost, customerPath+"/collections", "collector", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var marked struct {
		Data customerdomain.Customer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &marked))
	assert.True(t, marked.Data.Collected)

	rec = doRequest(t, s.engine, http.MethodGet, customerPath+"/collections", "customer_manager", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Data []customerdomain.CollectionRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history.Data, 1)

	rec = doRequest(t, s.engine, http.MethodGet, "/api/customers?collected=true&name=ACHI", "collector", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data []customerdomain.Customer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, created.Data.ID, listed.Data[0].ID)

	rec = doRequest(t, s.engine, http.MethodGet, "/api/customers?collected=maybe", "collector", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s.engine, http.MethodGet, "/api/invoices?phone_number=0712000222", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var invoices struct {
		Data []invoicedomain.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invoices))
	assert.Len(t, invoices.Data, 1)
}
