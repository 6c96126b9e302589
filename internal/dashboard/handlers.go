// internal/dashboard/handlers.go
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	apperrors "forgevision/internal/common/errors"
	"forgevision/internal/models"
	collectrequest "forgevision/internal/workers/design/collect-request"
	"forgevision/pkg/registry"
)

type formValues struct {
	Concept  string
	Industry string
	Style    string
}

type errorView struct {
	Code    string
	Message string
}

type resultView struct {
	ID          string
	Name        string
	Philosophy  template.HTML
	Innovations []string
	Materials   string
	Dimensions  string
	Power       string
	Cost        string
	ImageURL    string
	Width       int
	Height      int
	Concept     string
	Industry    string
	Style       string
}

type pageData struct {
	Title           string
	AppName         string
	Version         string
	Engine          EngineStatus
	Industries      []string
	Styles          []string
	Form            formValues
	Result          *resultView
	Error           *errorView
	Landing         bool
	Stages          []registry.Stage
	RegistryVersion string
}

func (s *Server) newPage(title string) pageData {
	return pageData{
		Title:      title,
		AppName:    s.config.AppName,
		Version:    s.config.Version,
		Engine:     s.config.Engine,
		Industries: models.Industries,
		Styles:     models.Styles,
		Form: formValues{
			Industry: models.Industries[0],
			Style:    models.Styles[0],
		},
	}
}

func newResultView(r *models.RenderResult) *resultView {
	return &resultView{
		ID:          r.ID,
		Name:        r.Brief.Name,
		Philosophy:  renderText(r.Brief.Philosophy),
		Innovations: r.Brief.Innovations,
		Materials:   r.Brief.Specs.Materials(),
		Dimensions:  r.Brief.Specs.Dimensions(),
		Power:       r.Brief.Specs.Power(),
		Cost:        r.Brief.Specs.Cost(),
		ImageURL:    imageURL(r),
		Width:       r.Width,
		Height:      r.Height,
		Concept:     r.Request.Concept,
		Industry:    r.Request.Industry,
		Style:       r.Request.Style,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrFail(w, r)
	if !ok {
		return
	}

	page := s.newPage("Dashboard")

	result, err := s.runner.Current(r.Context(), sess)
	if err != nil {
		stdErr := apperrors.Normalize(err)
		page.Error = &errorView{Code: string(stdErr.Code), Message: stdErr.UserMessage()}
	}
	if result != nil {
		page.Result = newResultView(result)
		page.Form = formValues{
			Concept:  result.Request.Concept,
			Industry: result.Request.Industry,
			Style:    result.Request.Style,
		}
	} else if page.Error == nil {
		page.Landing = true
	}

	s.writePage(w, http.StatusOK, "index.html", page)
}

// handleSynthesize runs the pipeline for a form post. Success redirects to
// the dashboard; failure re-renders it with the message and the submitted
// values.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrFail(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	input := &collectrequest.Input{
		Concept:   r.PostFormValue("concept"),
		Industry:  r.PostFormValue("industry"),
		Style:     r.PostFormValue("style"),
		Submitted: true,
	}

	if _, err := s.runner.Run(r.Context(), sess, input); err != nil {
		stdErr := apperrors.Normalize(err)

		page := s.newPage("Dashboard")
		page.Form = formValues{Concept: input.Concept, Industry: input.Industry, Style: input.Style}
		page.Error = &errorView{Code: string(stdErr.Code), Message: stdErr.UserMessage()}

		s.writePage(w, apperrors.HTTPStatus(stdErr.Code), "index.html", page)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrFail(w, r)
	if !ok {
		return
	}

	result, err := s.runner.Current(r.Context(), sess)
	if err != nil {
		http.Error(w, "failed to load result", http.StatusInternalServerError)
		return
	}
	if result == nil || len(result.Image) == 0 {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Image)))
	w.Header().Set("Content-Disposition", `inline; filename="prototype.png"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Image)
}

func (s *Server) handleBlueprint(w http.ResponseWriter, r *http.Request) {
	page := s.newPage("System Blueprint")
	if s.registry != nil {
		page.Stages = s.registry.Stages
		page.RegistryVersion = s.registry.Version
	}
	s.writePage(w, http.StatusOK, "blueprint.html", page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.config.AppName,
		"version": s.config.Version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failures := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"failures": failures})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not_ready",
			"failures": failures,
			"time":     time.Now().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) writePage(w http.ResponseWriter, status int, page string, data pageData) {
	var buf bytes.Buffer
	if err := s.views.render(&buf, page, data); err != nil {
		s.logger.Error("template render failed", map[string]interface{}{
			"page":  page,
			"error": err.Error(),
		})
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
