// Copyright 2026 The Congregreat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jwbwvf/congregreat-server/internal/congregation"
)

// CreateCongregationRequest represents congregation creation data
type CreateCongregationRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

// UpdateCongregationRequest carries the congregation fields to change
type UpdateCongregationRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

// CreateEventRequest represents event creation data
type CreateEventRequest struct {
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"startsAt" validate:"required"`
}

// UpdateEventRequest carries the event fields to change
type UpdateEventRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
}

// CreateCongregation handles congregation creation
// @Summary Create Congregation
// @Tags Congregation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCongregationRequest true "Congregation"
// @Success 201 {object} congregation.Congregation
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /congregations [post]
func (h *Handler) CreateCongregation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateCongregationRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "Not all required fields were provided.")
		return
	}

	c, err := h.congregationService.Create(ctx, GetUserID(ctx), req.Name, req.Phone, req.Email)
	if err != nil {
		h.congregationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// ListCongregations returns every active congregation
func (h *Handler) ListCongregations(w http.ResponseWriter, r *http.Request) {
	list, err := h.congregationService.List(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetCongregation returns one congregation
func (h *Handler) GetCongregation(w http.ResponseWriter, r *http.Request) {
	c, err := h.congregationService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.congregationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// UpdateCongregation changes a congregation
// @Summary Update Congregation
// @Tags Congregation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Congregation ID"
// @Param request body UpdateCongregationRequest true "Changes"
// @Success 200 {object} congregation.Congregation
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /congregations/{id} [patch]
func (h *Handler) UpdateCongregation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateCongregationRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "Not all required fields were provided.")
		return
	}

	c, err := h.congregationService.Update(ctx, GetUserID(ctx), chi.URLParam(r, "id"), congregation.CongregationUpdate{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		h.congregationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DeleteCongregation soft deletes a congregation
func (h *Handler) DeleteCongregation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.congregationService.Delete(ctx, GetUserID(ctx), chi.URLParam(r, "id")); err != nil {
		h.congregationError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Congregation was deleted.")
}

// ListEvents returns the events of a congregation
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.congregationService.ListEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.congregationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// CreateEvent schedules an event
// @Summary Create Event
// @Tags Event
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Congregation ID"
// @Param request body CreateEventRequest true "Event"
// @Success 201 {object} congregation.Event
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /congregations/{id}/events [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateEventRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "Not all required fields were provided.")
		return
	}

	e, err := h.congregationService.CreateEvent(ctx, GetUserID(ctx), chi.URLParam(r, "id"),
		req.Name, req.Description, req.StartsAt)
	if err != nil {
		h.congregationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

// GetEvent returns one event of a congregation
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.congregationService.GetEvent(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "eventID"))
	if err != nil {
		h.congregationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// UpdateEvent changes an event of a congregation
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateEventRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "Not all required fields were provided.")
		return
	}

	e, err := h.congregationService.UpdateEvent(ctx, GetUserID(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "eventID"),
		congregation.EventUpdate{
			Name:        req.Name,
			Description: req.Description,
			StartsAt:    req.StartsAt,
		})
	if err != nil {
		h.congregationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// DeleteEvent soft deletes an event of a congregation
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.congregationService.DeleteEvent(ctx, GetUserID(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "eventID"))
	if err != nil {
		h.congregationError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Event was deleted.")
}

func (h *Handler) congregationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, congregation.ErrInvalidInput):
		respondMessage(w, http.StatusBadRequest, "Not all required fields were provided.")
	case errors.Is(err, congregation.ErrAlreadyExists):
		respondMessage(w, http.StatusConflict, "A congregation with that name already exists.")
	case errors.Is(err, congregation.ErrNotFound):
		respondMessage(w, http.StatusNotFound, "Unable to find congregation by id.")
	case errors.Is(err, congregation.ErrEventNotFound):
		respondMessage(w, http.StatusNotFound, "Unable to find event by id.")
	default:
		h.internalError(w, r, err)
	}
}
