package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	mpesadomain "github.com/smallbiznis/wastebill/internal/mpesa/domain"
	"github.com/smallbiznis/wastebill/internal/observability/logger"
	"go.uber.org/zap"
)

const maxCallbackBytes = 64 << 10

// callbackAck is the body the provider expects from confirmation and
// validation URLs.
type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var acceptedAck = callbackAck{ResultCode: 0, ResultDesc: "Accepted"}

// MpesaConfirmation records a paybill confirmation and settles it against
// the paying customer. Redelivery of a settled TransID answers 409.
func (s *Server) MpesaConfirmation(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBytes)
	payload, err := c.GetRawData()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var cb mpesadomain.Callback
	if err := binding.JSON.BindBody(payload, &cb); err != nil {
		AbortWithError(c, mpesadomain.ErrInvalidPayload)
		return
	}

	transID := strings.TrimSpace(cb.TransID)
	c.Set("trans_id", transID)

	ctx := c.Request.Context()
	res, err := s.mpesaSvc.Ingest(ctx, cb, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if res.Payment != nil && res.Payment.CustomerID != nil {
		c.Set("customer_id", res.Payment.CustomerID.String())
	}

	logger.WithContext(ctx, s.log).Info("mpesa confirmation handled",
		zap.String("trans_id", transID),
		zap.String("outcome", string(res.Outcome)),
	)
	c.JSON(http.StatusOK, acceptedAck)
}

// MpesaValidation accepts every transaction; settlement happens on confirmation.
func (s *Server) MpesaValidation(c *gin.Context) {
	c.JSON(http.StatusOK, acceptedAck)
}

func (s *Server) ListMpesaTransactions(c *gin.Context) {
	page, err := parsePageQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	processed, err := parseOptionalBool(c.Query("processed"))
	if err != nil {
		AbortWithError(c, newValidationError("processed", "invalid_processed", "invalid processed"))
		return
	}

	resp, err := s.mpesaSvc.List(c.Request.Context(), mpesadomain.ListRequest{
		PageToken: page.PageToken,
		PageSize:  page.PageSize,
		Processed: processed,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Transactions,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetMpesaTransaction(c *gin.Context) {
	transID := strings.TrimSpace(c.Param("trans_id"))
	c.Set("trans_id", transID)

	resp, err := s.mpesaSvc.Get(c.Request.Context(), transID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
