package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ListUsersRequest represents query parameters for listing users
type ListUsersRequest struct {
	Role      string `form:"role"`
	ManagerID string `form:"manager_id"`
}

// CompanyRequest is the body of PUT /api/company
type CompanyRequest struct {
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(c *gin.Context) {
	var req ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	filter := entity.UserFilter{Role: entity.Role(req.Role), ManagerID: req.ManagerID}
	if filter.Role != "" && !filter.Role.IsValid() {
		fail(c, http.StatusBadRequest, "unknown role "+req.Role)
		return
	}

	users, err := h.services.Users.ListUsers(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, users)
}

// GetUser handles GET /api/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	user, err := h.services.Users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, user)
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var input service.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.services.Users.CreateUser(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	created(c, user)
}

// UpdateUser handles PUT /api/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	var input service.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.services.Users.UpdateUser(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, user)
}

// GetCompany handles GET /api/company
func (h *Handlers) GetCompany(c *gin.Context) {
	company, err := h.services.Company.GetCompany(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, company)
}

// UpdateCompany handles PUT /api/company
func (h *Handlers) UpdateCompany(c *gin.Context) {
	var req CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	company, err := h.services.Company.Configure(c.Request.Context(), entity.Company{
		Name:         req.Name,
		BaseCurrency: req.BaseCurrency,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Company updated", "actor_id", currentActor(c).ID, "base_currency", company.BaseCurrency)
	ok(c, company)
}
