package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studypay/duebell/internal/services"
	apperrors "github.com/studypay/duebell/pkg/errors"
	"github.com/studypay/duebell/pkg/response"
)

// SettingsHandler exposes tenant engine settings, notification rules and
// message templates to the admin-facing collaborator.
type SettingsHandler struct {
	svc *services.SettingsService
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(svc *services.SettingsService) (*SettingsHandler, error) {
	if svc == nil {
		return nil, errors.New("settings handler: service is required")
	}
	return &SettingsHandler{svc: svc}, nil
}

// GetEngineSettings returns the agency's engine configuration.
func (h *SettingsHandler) GetEngineSettings(c *gin.Context) {
	settings, err := h.svc.GetEngineSettings(requestContext(c), agencyID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// UpdateEngineSettings validates and stores engine configuration.
func (h *SettingsHandler) UpdateEngineSettings(c *gin.Context) {
	var input services.UpdateEngineSettingsInput
	if !bindAndValidate(c, &input) {
		return
	}

	settings, err := h.svc.UpdateEngineSettings(requestContext(c), agencyID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// ListRules returns the agency's full notification rule matrix.
func (h *SettingsHandler) ListRules(c *gin.Context) {
	rules, err := h.svc.ListRules(requestContext(c), agencyID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rules)
}

// UpsertRule toggles one (recipient, event) rule.
func (h *SettingsHandler) UpsertRule(c *gin.Context) {
	var input services.UpsertRuleInput
	if !bindAndValidate(c, &input) {
		return
	}

	rule, err := h.svc.UpsertRule(requestContext(c), agencyID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rule)
}

// ListTemplates returns the agency's message templates.
func (h *SettingsHandler) ListTemplates(c *gin.Context) {
	templates, err := h.svc.ListTemplates(requestContext(c), agencyID(c))
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to list templates"))
		return
	}
	response.Success(c, http.StatusOK, templates)
}

// CreateTemplate validates, sanitizes and stores a template (inactive).
func (h *SettingsHandler) CreateTemplate(c *gin.Context) {
	var input services.TemplateInput
	if !bindAndValidate(c, &input) {
		return
	}

	tmpl, err := h.svc.CreateTemplate(requestContext(c), agencyID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, tmpl)
}

// UpdateTemplate re-validates and stores template changes.
func (h *SettingsHandler) UpdateTemplate(c *gin.Context) {
	var input services.TemplateInput
	if !bindAndValidate(c, &input) {
		return
	}

	tmpl, err := h.svc.UpdateTemplate(requestContext(c), agencyID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tmpl)
}

// ActivateTemplate marks a template live after a final validation pass.
func (h *SettingsHandler) ActivateTemplate(c *gin.Context) {
	tmpl, err := h.svc.ActivateTemplate(requestContext(c), agencyID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tmpl)
}
