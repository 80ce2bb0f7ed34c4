package handlers

import (
	"errors"
	"net/http"

	"github.com/contest-lab/competition-system/middleware"
	"github.com/contest-lab/competition-system/services"
)

type PrizeHandler struct {
	prizeService services.PrizeService
}

func NewPrizeHandler(prizeService services.PrizeService) *PrizeHandler {
	return &PrizeHandler{prizeService: prizeService}
}

func (h *PrizeHandler) Create(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CreatePrizeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	prize, err := h.prizeService.CreatePrize(r.Context(), organizerID, competitionID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"prize": prize}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PrizeHandler) ListByCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	prizes, err := h.prizeService.ListPrizes(r.Context(), competitionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"prizes": prizes}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PrizeHandler) Assign(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	prizeID, err := getIDFromURL(r, "prizeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		SubmissionID int `json:"submission_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.SubmissionID <= 0 {
		badRequestResponse(w, r, errors.New("submission_id is required"))
		return
	}

	prize, err := h.prizeService.AssignPrize(r.Context(), organizerID, competitionID, prizeID, input.SubmissionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"prize": prize}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PrizeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	prizeID, err := getIDFromURL(r, "prizeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.prizeService.DeletePrize(r.Context(), organizerID, prizeID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
