package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/repo"
	"github.com/tbourn/lead-qualifier/internal/services"
	"github.com/tbourn/lead-qualifier/internal/utils"
)

// LeadPage is one page of the lead listing.
type LeadPage struct {
	Leads  []domain.Lead `json:"leads"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// UpdateLeadRequest changes a lead's informational status.
type UpdateLeadRequest struct {
	Status string `json:"status" example:"contacted"`
}

// ListLeads godoc
// @ID          listLeads
// @Summary     List leads
// @Description Most recently contacted first.
// @Tags        Leads
// @Produce     json
// @Security    BearerAuth
//
// @Param       status     query  string  false  "new, contacted, qualified, converted or lost"
// @Param       qualified  query  bool    false  "Filter by qualification"
// @Param       limit      query  int     false  "Page size (default 50, max 100)"
// @Param       offset     query  int     false  "Offset"
//
// @Success     200  {object}  handlers.LeadPage
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /leads [get]
func (h *Handlers) ListLeads(c *gin.Context) {
	f := repo.LeadFilter{
		Status:    strings.ToLower(strings.TrimSpace(c.Query("status"))),
		Qualified: utils.OptionalBool(c.Query("qualified")),
		Limit:     utils.AtoiDefault(c.Query("limit"), services.DefaultLeadPageSize),
		Offset:    utils.AtoiDefault(c.Query("offset"), 0),
	}
	leads, total, err := h.d.Leads.List(c.Request.Context(), f)
	if errors.Is(err, services.ErrInvalidStatus) {
		fail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid status")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list leads", err)
		return
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	limit, offset := utils.Window(f.Limit, f.Offset, services.DefaultLeadPageSize, services.MaxLeadPageSize)
	ok(c, http.StatusOK, LeadPage{Leads: leads, Total: total, Limit: limit, Offset: offset})
}

// UpdateLead godoc
// @ID          updateLead
// @Summary     Update lead status
// @Tags        Leads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                      true  "Lead ID"
// @Param       body  body  handlers.UpdateLeadRequest  true  "New status"
//
// @Success     200  {object}  domain.Lead
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /leads/{id} [patch]
func (h *Handlers) UpdateLead(c *gin.Context) {
	var req UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid body")
		return
	}
	lead, err := h.d.Leads.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	switch {
	case errors.Is(err, services.ErrInvalidStatus), errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid status")
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "lead not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update lead", err)
	default:
		ok(c, http.StatusOK, lead)
	}
}
