package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/pkg/response"
)

type ConfigurationHandler struct {
	service   ConfigurationService
	validator *validator.Validate
}

func NewConfigurationHandler(service ConfigurationService) *ConfigurationHandler {
	return &ConfigurationHandler{
		service:   service,
		validator: newValidator(),
	}
}

func (h *ConfigurationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request domain.ConfigurationRequest
	if err := decode(w, r, h.validator, &request); err != nil {
		response.FromError(w, err)
		return
	}

	cfg, err := h.service.CreateConfiguration(r.Context(), &request)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, cfg)
}

func (h *ConfigurationHandler) List(w http.ResponseWriter, r *http.Request) {
	cfgs, err := h.service.ListConfigurations(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, cfgs)
}

func (h *ConfigurationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	cfg, err := h.service.GetConfiguration(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, cfg)
}

func (h *ConfigurationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var request domain.ConfigurationRequest
	if err := decode(w, r, h.validator, &request); err != nil {
		response.FromError(w, err)
		return
	}

	cfg, err := h.service.UpdateConfiguration(r.Context(), id, &request)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, cfg)
}
