package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/lead-qualifier/internal/crm"
)

// FormRequest is a landing-page contact form.
type FormRequest struct {
	Nome     string `json:"nome" example:"Maria Santos"`
	Email    string `json:"email" example:"maria@example.com"`
	Telefone string `json:"telefone" example:"+5511987654321"`
}

// FormResponse reports the submission. Warning carries the CRM status when
// it answered with anything but 200; the contact is still accepted.
type FormResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}

// FormError lists the required fields on a 400.
type FormError struct {
	ErrorResponse
	Required []string `json:"required"`
}

var formRequired = []string{"nome", "email", "telefone"}

// SubmitForm godoc
// @ID          submitCrmForm
// @Summary     Forward a contact form to the CRM
// @Tags        CRM
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.FormRequest  true  "Contact"
//
// @Success     200  {object}  handlers.FormResponse
// @Failure     400  {object}  handlers.FormError
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /crm/forms [post]
func (h *Handlers) SubmitForm(c *gin.Context) {
	var req FormRequest
	_ = c.ShouldBindJSON(&req)
	name := strings.TrimSpace(req.Nome)
	email := strings.TrimSpace(req.Email)
	phone := strings.TrimSpace(req.Telefone)

	err := h.d.CRM.SubmitLead(c.Request.Context(), name, email, phone)
	var se *crm.StatusError
	switch {
	case err == nil:
		ok(c, http.StatusOK, FormResponse{Success: true, Message: "Dados enviados com sucesso para o Mautic"})
	case errors.Is(err, crm.ErrMissingFields):
		c.AbortWithStatusJSON(http.StatusBadRequest, FormError{
			ErrorResponse: ErrorResponse{
				RequestID: c.Writer.Header().Get("X-Request-ID"),
				Code:      ErrCodeInvalidRequest,
				Message:   "Campos obrigatórios faltando",
			},
			Required: formRequired,
		})
	case errors.As(err, &se):
		ok(c, http.StatusOK, FormResponse{
			Success: true,
			Message: "Dados processados",
			Warning: fmt.Sprintf("Status: %d", se.Status),
		})
	default:
		fail(c, http.StatusBadGateway, ErrCodeUpstream, "Erro ao processar dados", err)
	}
}
