package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	reportdomain "github.com/smallbiznis/wastebill/internal/report/domain"
)

type issueInvoicesRequest struct {
	Month         int    `json:"month"`
	Year          int    `json:"year"`
	CollectionDay string `json:"collection_day"`
}

type invoiceItemRequest struct {
	Description string      `json:"description"`
	UnitAmount  amountParam `json:"unit_amount"`
	Quantity    int64       `json:"quantity"`
}

type createInvoiceRequest struct {
	CustomerID string               `json:"customer_id"`
	Period     string               `json:"period"`
	Items      []invoiceItemRequest `json:"items"`
	Total      amountParam          `json:"total"`
}

type invoiceDetail struct {
	invoicedomain.Invoice
	Items []invoicedomain.InvoiceItem `json:"items"`
}

func (s *Server) IssueInvoices(c *gin.Context) {
	var req issueInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	var (
		resp invoicedomain.IssueResult
		err  error
	)
	if day := strings.TrimSpace(req.CollectionDay); day != "" {
		if req.Month < 1 || req.Month > 12 {
			AbortWithError(c, invoicedomain.ErrInvalidMonth)
			return
		}
		if req.Year < 2000 || req.Year > 9999 {
			AbortWithError(c, invoicedomain.ErrInvalidYear)
			return
		}
		period := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, time.UTC)
		resp, err = s.invoiceSvc.IssueForCollectionDay(ctx, customerdomain.CollectionDay(day), period)
	} else {
		resp, err = s.invoiceSvc.IssueForMonth(ctx, req.Month, req.Year)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	period, err := parseOptionalPeriod(req.Period)
	if err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidPeriod)
		return
	}

	items := make([]invoicedomain.InvoiceItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, invoicedomain.InvoiceItemInput{
			Description: strings.TrimSpace(item.Description),
			UnitAmount:  item.UnitAmount.Minor,
			Quantity:    item.Quantity,
		})
	}

	customerID := strings.TrimSpace(req.CustomerID)
	c.Set("customer_id", customerID)

	resp, err := s.invoiceSvc.CreateManual(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		CustomerID: customerID,
		Period:     period,
		Items:      items,
		Total:      req.Total.ptr(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	page, err := parsePageQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	period, err := parseOptionalPeriod(c.Query("period"))
	if err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidPeriod)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		PageToken:  page.PageToken,
		PageSize:   page.PageSize,
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
		Status:     strings.TrimSpace(c.Query("status")),
		Period:     period,

		InvoiceNumber: strings.TrimSpace(c.Query("invoice_number")),
		PhoneNumber:   strings.TrimSpace(c.Query("phone_number")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Invoices,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()

	inv, err := s.invoiceSvc.GetByID(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.invoiceSvc.ListItems(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("customer_id", inv.CustomerID.String())
	c.JSON(http.StatusOK, gin.H{"data": invoiceDetail{Invoice: inv, Items: items}})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("customer_id", resp.CustomerID.String())
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelLatestSystemInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.CancelLatestSystemGenerated(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	doc, err := s.reportSvc.RenderInvoice(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeDocument(c, doc)
}

func writeDocument(c *gin.Context, doc reportdomain.Document) {
	if doc.Content == nil {
		AbortWithError(c, reportdomain.ErrEmptyDocument)
		return
	}
	if closer, ok := doc.Content.(io.Closer); ok {
		defer closer.Close()
	}
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc.Content, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.Filename),
	})
}
