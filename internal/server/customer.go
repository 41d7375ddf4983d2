package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
)

type createCustomerRequest struct {
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	Email          string      `json:"email"`
	PhoneNumber    string      `json:"phone_number"`
	Gender         string      `json:"gender"`
	County         string      `json:"county"`
	Town           string      `json:"town"`
	Location       string      `json:"location"`
	EstateName     string      `json:"estate_name"`
	Building       string      `json:"building"`
	HouseNumber    string      `json:"house_number"`
	Category       string      `json:"category"`
	MonthlyCharge  amountParam `json:"monthly_charge"`
	CollectionDay  string      `json:"collection_day"`
	OpeningBalance amountParam `json:"opening_balance"`
}

type updateCustomerRequest struct {
	FirstName     *string     `json:"first_name"`
	LastName      *string     `json:"last_name"`
	Email         *string     `json:"email"`
	PhoneNumber   *string     `json:"phone_number"`
	Gender        *string     `json:"gender"`
	County        *string     `json:"county"`
	Town          *string     `json:"town"`
	Location      *string     `json:"location"`
	EstateName    *string     `json:"estate_name"`
	Building      *string     `json:"building"`
	HouseNumber   *string     `json:"house_number"`
	Category      *string     `json:"category"`
	MonthlyCharge amountParam `json:"monthly_charge"`
	CollectionDay *string     `json:"collection_day"`
}

type setCustomerStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Create(c.Request.Context(), customerdomain.CreateCustomerRequest{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.TrimSpace(req.Email),
		PhoneNumber:    strings.TrimSpace(req.PhoneNumber),
		Gender:         strings.TrimSpace(req.Gender),
		County:         strings.TrimSpace(req.County),
		Town:           strings.TrimSpace(req.Town),
		Location:       strings.TrimSpace(req.Location),
		EstateName:     strings.TrimSpace(req.EstateName),
		Building:       strings.TrimSpace(req.Building),
		HouseNumber:    strings.TrimSpace(req.HouseNumber),
		Category:       strings.TrimSpace(req.Category),
		MonthlyCharge:  req.MonthlyCharge.Minor,
		CollectionDay:  strings.TrimSpace(req.CollectionDay),
		OpeningBalance: req.OpeningBalance.Minor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("customer_id", resp.ID.String())
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateCustomer(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("customer_id", id)

	var req updateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Update(c.Request.Context(), id, customerdomain.UpdateCustomerRequest{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PhoneNumber:   req.PhoneNumber,
		Gender:        req.Gender,
		County:        req.County,
		Town:          req.Town,
		Location:      req.Location,
		EstateName:    req.EstateName,
		Building:      req.Building,
		HouseNumber:   req.HouseNumber,
		Category:      req.Category,
		MonthlyCharge: req.MonthlyCharge.ptr(),
		CollectionDay: req.CollectionDay,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCustomers(c *gin.Context) {
	page, err := parsePageQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	collected, err := parseOptionalBool(c.Query("collected"))
	if err != nil {
		AbortWithError(c, newValidationError("collected", "invalid_collected", "invalid collected flag"))
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken:     page.PageToken,
		PageSize:      page.PageSize,
		Status:        strings.TrimSpace(c.Query("status")),
		CollectionDay: strings.TrimSpace(c.Query("collection_day")),
		EstateName:    strings.TrimSpace(c.Query("estate_name")),
		PhoneNumber:   strings.TrimSpace(c.Query("phone_number")),
		Name:          strings.TrimSpace(c.Query("name")),
		Collected:     collected,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Customers,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("customer_id", id)

	resp, err := s.customerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetCustomerStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("customer_id", id)

	var req setCustomerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.SetStatus(c.Request.Context(), id, customerdomain.Status(strings.ToUpper(strings.TrimSpace(req.Status))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkCustomerCollected(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("customer_id", id)

	resp, err := s.customerSvc.MarkCollected(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCustomerCollections(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("customer_id", id)

	size, err := parsePageSize(c.Query("page_size"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.customerSvc.ListCollections(c.Request.Context(), id, int(size))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CustomerStatement(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("customer_id", id)

	resp, err := s.reportSvc.CustomerStatement(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
