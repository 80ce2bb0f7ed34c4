package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/contest-lab/competition-system/middleware"
	"github.com/contest-lab/competition-system/models"
	"github.com/contest-lab/competition-system/services"
	"github.com/contest-lab/competition-system/storage"
	"github.com/google/uuid"
)

type SubmissionHandler struct {
	submissionService  services.SubmissionService
	roundService       services.RoundService
	competitionService services.CompetitionService
	userService        services.UserService
	emailService       *services.EmailService
	uploader           storage.FileUploader
}

func NewSubmissionHandler(
	submissionService services.SubmissionService,
	roundService services.RoundService,
	competitionService services.CompetitionService,
	userService services.UserService,
	emailService *services.EmailService,
	uploader storage.FileUploader,
) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService:  submissionService,
		roundService:       roundService,
		competitionService: competitionService,
		userService:        userService,
		emailService:       emailService,
		uploader:           uploader,
	}
}

func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var content models.SubmissionContent
	if err := readJSON(w, r, &content); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	submission, err := h.submissionService.Submit(r.Context(), userID, roundID, competitionID, content)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"submission": submission}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadFile stores a file in object storage ahead of a submission. The caller
// references the returned descriptor in the submission content.
func (h *SubmissionHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	round, err := h.roundService.GetRoundByID(r.Context(), roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if !round.Rules.AllowFileUpload {
		mapServiceErrorToHTTP(w, r, services.ErrFilesNotAllowed)
		return
	}

	maxSize := int64(round.Rules.MaxFileSizeMB) << 20
	if err := r.ParseMultipartForm(maxSize); err != nil {
		badRequestResponse(w, r, fmt.Errorf("failed to parse multipart form, file must be at most %dMB", round.Rules.MaxFileSizeMB))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, errors.New("file is required"))
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		badRequestResponse(w, r, fmt.Errorf("file exceeds the %dMB limit for this round", round.Rules.MaxFileSizeMB))
		return
	}
	ext := filepath.Ext(header.Filename)
	if !round.Rules.AllowsFileType(ext) {
		badRequestResponse(w, r, fmt.Errorf("file type %q is not accepted in this round", ext))
		return
	}

	key := fmt.Sprintf("submissions/%d/%d/%s%s", roundID, userID, uuid.NewString(), ext)
	result, err := h.uploader.Upload(r.Context(), key, header.Header.Get("Content-Type"), file)
	if err != nil {
		serverErrorResponse(w, r, fmt.Errorf("failed to upload submission file: %w", err))
		return
	}

	uploaded := models.SubmissionFile{
		Name: header.Filename,
		Key:  result.Key,
		URL:  result.Location,
		Size: header.Size,
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"file": uploaded}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SubmissionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	submission, err := h.submissionService.GetSubmissionByID(r.Context(), submissionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"submission": submission}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SubmissionHandler) ListByRound(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	submissions, err := h.submissionService.ListByRound(r.Context(), organizerID, roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"submissions": submissions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SubmissionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	submissions, err := h.submissionService.ListMine(r.Context(), userID, competitionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"submissions": submissions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SubmissionHandler) Review(w http.ResponseWriter, r *http.Request) {
	reviewerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Status   models.SubmissionStatus `json:"status"`
		Feedback string                  `json:"feedback"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	submission, err := h.submissionService.Review(r.Context(), reviewerID, submissionID, input.Status, input.Feedback)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.notifyReviewed(r, submission)

	if err := writeJSON(w, http.StatusOK, jsonResponse{"submission": submission}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// notifyReviewed emails the submitter their verdict, best effort.
func (h *SubmissionHandler) notifyReviewed(r *http.Request, submission *models.Submission) {
	user, err := h.userService.GetUserByID(r.Context(), submission.UserID)
	if err != nil {
		slog.Warn("failed to load submitter for review email", "submission_id", submission.ID, "error", err)
		return
	}
	competition, err := h.competitionService.GetCompetitionByID(r.Context(), submission.CompetitionID)
	if err != nil {
		slog.Warn("failed to load competition for review email", "submission_id", submission.ID, "error", err)
		return
	}
	feedback := ""
	if submission.Feedback != nil {
		feedback = *submission.Feedback
	}
	if err := h.emailService.SendSubmissionReviewedEmail(user.Email, competition.Name, string(submission.Status), feedback); err != nil {
		slog.Warn("failed to send review email", "email", user.Email, "error", err)
	}
}

func (h *SubmissionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	submission, err := h.submissionService.Advance(r.Context(), organizerID, submissionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"submission": submission}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SubmissionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	submission, err := h.submissionService.Withdraw(r.Context(), organizerID, submissionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"submission": submission}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
