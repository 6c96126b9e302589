// internal/dashboard/api.go
package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	apperrors "forgevision/internal/common/errors"
	"forgevision/internal/models"
	collectrequest "forgevision/internal/workers/design/collect-request"
)

const maxRequestBody = 64 << 10

type synthesizeRequest struct {
	Concept  string `json:"concept"`
	Industry string `json:"industry"`
	Style    string `json:"style"`
}

type resultResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Philosophy  string               `json:"philosophy"`
	Innovations []string             `json:"innovations"`
	Specs       models.Specs         `json:"specs"`
	ImagePrompt string               `json:"image_prompt"`
	ImageURL    string               `json:"imageUrl"`
	Width       int                  `json:"width"`
	Height      int                  `json:"height"`
	Request     models.DesignRequest `json:"request"`
	CreatedAt   time.Time            `json:"createdAt"`
}

type errorBody struct {
	Code        apperrors.ErrorCode `json:"code"`
	Message     string              `json:"message"`
	Details     string              `json:"details,omitempty"`
	UserMessage string              `json:"userMessage"`
	Category    string              `json:"category"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func newResultResponse(r *models.RenderResult) resultResponse {
	return resultResponse{
		ID:          r.ID,
		Name:        r.Brief.Name,
		Philosophy:  r.Brief.Philosophy,
		Innovations: r.Brief.Innovations,
		Specs:       r.Brief.Specs.Resolved(),
		ImagePrompt: r.Brief.ImagePrompt,
		ImageURL:    imageURL(r),
		Width:       r.Width,
		Height:      r.Height,
		Request:     r.Request,
		CreatedAt:   r.CreatedAt,
	}
}

func writeError(w http.ResponseWriter, stdErr *apperrors.StandardError) {
	writeJSON(w, apperrors.HTTPStatus(stdErr.Code), errorResponse{Error: errorBody{
		Code:        stdErr.Code,
		Message:     stdErr.Message,
		Details:     stdErr.Details,
		UserMessage: stdErr.UserMessage(),
		Category:    apperrors.GetErrorCategory(stdErr.Code),
	}})
}

func (s *Server) handleAPIResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrFail(w, r)
	if !ok {
		return
	}

	result, err := s.runner.Current(r.Context(), sess)
	if err != nil {
		writeError(w, apperrors.Normalize(err))
		return
	}
	if result == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "no_result"})
		return
	}

	writeJSON(w, http.StatusOK, newResultResponse(result))
}

func (s *Server) handleAPISynthesize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrFail(w, r)
	if !ok {
		return
	}

	var req synthesizeRequest
	body := io.LimitReader(r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, apperrors.NewInvalidRequestError("request body must be a JSON object: "+err.Error()))
		return
	}

	result, err := s.runner.Run(r.Context(), sess, &collectrequest.Input{
		Concept:   req.Concept,
		Industry:  req.Industry,
		Style:     req.Style,
		Submitted: true,
	})
	if err != nil {
		writeError(w, apperrors.Normalize(err))
		return
	}

	writeJSON(w, http.StatusOK, newResultResponse(result))
}
