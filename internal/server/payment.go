package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
)

type cashPaymentRequest struct {
	CustomerID string      `json:"customer_id"`
	Amount     amountParam `json:"amount"`
	PaidBy     string      `json:"paid_by"`
}

type allocatePaymentRequest struct {
	CustomerID string `json:"customer_id"`
}

func (s *Server) RecordCashPayment(c *gin.Context) {
	var req cashPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID := strings.TrimSpace(req.CustomerID)
	c.Set("customer_id", customerID)

	resp, err := s.paymentSvc.RecordCashPayment(c.Request.Context(), paymentdomain.CashPaymentRequest{
		CustomerID: customerID,
		Amount:     req.Amount.Minor,
		PaidBy:     strings.TrimSpace(req.PaidBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// AllocatePayment applies an unreceipted payment to a customer's open invoices.
func (s *Server) AllocatePayment(c *gin.Context) {
	var req allocatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID := strings.TrimSpace(req.CustomerID)
	c.Set("customer_id", customerID)

	resp, err := s.paymentSvc.Allocate(c.Request.Context(), paymentdomain.AllocateRequest{
		PaymentID:  strings.TrimSpace(c.Param("id")),
		CustomerID: customerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	page, err := parsePageQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	receipted, err := parseOptionalBool(c.Query("receipted"))
	if err != nil {
		AbortWithError(c, newValidationError("receipted", "invalid_receipted", "invalid receipted"))
		return
	}

	resp, err := s.paymentSvc.ListPayments(c.Request.Context(), paymentdomain.ListPaymentRequest{
		PageToken:  page.PageToken,
		PageSize:   page.PageSize,
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
		Receipted:  receipted,
		Mode:       strings.TrimSpace(c.Query("mode")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Payments,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	resp, err := s.paymentSvc.GetPayment(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReceipts(c *gin.Context) {
	page, err := parsePageQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.ListReceipts(c.Request.Context(), paymentdomain.ListReceiptRequest{
		PageToken:  page.PageToken,
		PageSize:   page.PageSize,
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
		InvoiceID:  strings.TrimSpace(c.Query("invoice_id")),
		PaymentID:  strings.TrimSpace(c.Query("payment_id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Receipts,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetReceiptByID(c *gin.Context) {
	resp, err := s.paymentSvc.GetReceipt(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadReceiptPDF(c *gin.Context) {
	doc, err := s.reportSvc.RenderReceipt(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeDocument(c, doc)
}
