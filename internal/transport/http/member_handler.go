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
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jwbwvf/congregreat-server/internal/congregation"
	"github.com/jwbwvf/congregreat-server/internal/member"
)

// CreateMemberRequest represents member creation data
type CreateMemberRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// UpdateMemberRequest carries the member fields to change
type UpdateMemberRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// RecordAttendanceRequest names the member who attended
type RecordAttendanceRequest struct {
	MemberID string `json:"memberId" validate:"required"`
}

// MemberCreatedResponse is returned when a member is added
type MemberCreatedResponse struct {
	Message string         `json:"message"`
	Member  *member.Member `json:"member"`
}

// CreateMember adds a member to a congregation
// @Summary Create Member
// @Tags Member
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Congregation ID"
// @Param request body CreateMemberRequest true "Member"
// @Success 201 {object} MemberCreatedResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /congregations/{id}/members [post]
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateMemberRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "All fields are required.")
		return
	}

	m, err := h.memberService.Create(ctx, GetUserID(ctx), chi.URLParam(r, "id"), member.NewMember{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		h.memberError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, MemberCreatedResponse{
		Message: fmt.Sprintf("Member %s %s was added.", m.FirstName, m.LastName),
		Member:  m,
	})
}

// ListMembers returns the active members of a congregation
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.memberService.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.memberError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// GetMember returns one member of a congregation
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.memberService.Get(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "memberID"))
	if err != nil {
		h.memberError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// UpdateMember changes a member of a congregation
// @Summary Update Member
// @Tags Member
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Congregation ID"
// @Param memberID path string true "Member ID"
// @Param request body UpdateMemberRequest true "Changes"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /congregations/{id}/members/{memberID} [patch]
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateMemberRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "No modifiable member property was provided.")
		return
	}

	_, err := h.memberService.Update(ctx, GetUserID(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "memberID"),
		member.Update{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
		})
	if err != nil {
		h.memberError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Member was updated.")
}

// DeleteMember soft deletes a member of a congregation
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.memberService.Delete(ctx, GetUserID(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "memberID"))
	if err != nil {
		h.memberError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Member was deleted.")
}

// ListAttendance returns the attendance records of an event
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	records, err := h.memberService.ListAttendance(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "eventID"))
	if err != nil {
		h.memberError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// RecordAttendance records that a member attended an event
// @Summary Record Attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Congregation ID"
// @Param eventID path string true "Event ID"
// @Param request body RecordAttendanceRequest true "Attendance"
// @Success 201 {object} member.Attendance
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /congregations/{id}/events/{eventID}/attendance [post]
func (h *Handler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RecordAttendanceRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "All fields are required.")
		return
	}

	a, err := h.memberService.RecordAttendance(ctx, GetUserID(ctx), chi.URLParam(r, "id"),
		chi.URLParam(r, "eventID"), req.MemberID)
	if err != nil {
		h.memberError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

// DeleteAttendance removes an attendance record of an event
func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.memberService.DeleteAttendance(ctx, GetUserID(ctx), chi.URLParam(r, "id"),
		chi.URLParam(r, "eventID"), chi.URLParam(r, "attendanceID"))
	if err != nil {
		h.memberError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Attendance record was deleted.")
}

// memberError maps member and attendance errors to responses. Congregation
// and event lookups fail through congregationError.
func (h *Handler) memberError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, member.ErrInvalidInput):
		respondMessage(w, http.StatusBadRequest, "All fields are required.")
	case errors.Is(err, member.ErrNothingToUpdate):
		respondMessage(w, http.StatusBadRequest, "No modifiable member property was provided.")
	case errors.Is(err, member.ErrAlreadyExists):
		respondMessage(w, http.StatusConflict, "A member already exists with this email.")
	case errors.Is(err, member.ErrNotFound):
		respondMessage(w, http.StatusNotFound, "Unable to find member by id.")
	case errors.Is(err, member.ErrAttendanceNotFound):
		respondMessage(w, http.StatusNotFound, "Unable to find attendance record by id.")
	case errors.Is(err, member.ErrAlreadyRecorded):
		respondMessage(w, http.StatusConflict, "Attendance was already recorded for this member.")
	case errors.Is(err, congregation.ErrNotFound), errors.Is(err, congregation.ErrEventNotFound):
		h.congregationError(w, r, err)
	default:
		h.internalError(w, r, err)
	}
}
