package ui

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/label-scan/internal/imagesource"
	"github.com/zombor/label-scan/internal/scanning"
	"github.com/zombor/label-scan/internal/workflow"
)

// Phone photos can be large
const maxUploadSize = int64(50 << 20)

// statePayload is what the view renders: the view name plus its data
type statePayload struct {
	View  string         `json:"view"`
	State workflow.State `json:"state"`
}

func newStatePayload(state workflow.State) statePayload {
	return statePayload{View: state.Name(), State: state}
}

type categoryPayload struct {
	ID    scanning.Category `json:"id"`
	Label string            `json:"label"`
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

type cameraRequest struct {
	// Granted carries the permission result the view got from the browser, if any
	Granted *bool `json:"granted"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// respond writes the current state, or the HTTP form of err. A *workflow.Failure
// is part of the state and is not an HTTP error.
func (s *Server) respond(w http.ResponseWriter, err error, code int) {
	var failure *workflow.Failure
	switch {
	case err == nil, errors.As(err, &failure):
		writeJSON(w, code, newStatePayload(s.workflow.State()))
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrAnalysisPending),
		errors.Is(err, workflow.ErrNoImage):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.respond(w, nil, http.StatusOK)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories := scanning.Categories()
	payload := make([]categoryPayload, 0, len(categories))
	for _, c := range categories {
		payload = append(payload, categoryPayload{ID: c, Label: c.Label()})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.workflow.GoToDashboard()
	s.respond(w, nil, http.StatusOK)
}

func (s *Server) handleSelectCategory(w http.ResponseWriter, r *http.Request) {
	category, err := scanning.ParseCategory(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respond(w, s.workflow.SelectCategory(category), http.StatusOK)
}

// handlePickImage accepts the gallery pick as a multipart "file" part
func (s *Server) handlePickImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 50MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	picker := imagesource.UploadPicker{}
	f, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// nothing chosen; the pick counts as cancelled
	case err != nil:
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "Error reading form file")
		return
	default:
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			writeError(w, http.StatusBadRequest, "Error reading file. Please try again.")
			return
		}
		picker = imagesource.UploadPicker{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}

	s.respond(w, s.workflow.PickFromGallery(r.Context(), picker), http.StatusOK)
}

func (s *Server) handleStartCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Granted != nil && s.feed != nil {
		s.feed.SetAvailable(*req.Granted)
	}
	s.respond(w, s.workflow.StartCamera(r.Context()), http.StatusOK)
}

func (s *Server) handleStopCamera(w http.ResponseWriter, r *http.Request) {
	s.workflow.StopCamera()
	s.respond(w, nil, http.StatusOK)
}

// handleCameraFrame receives the latest live frame from the view as a multipart "frame" part
func (s *Server) handleCameraFrame(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		writeError(w, http.StatusNotFound, "Camera is disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	f, _, err := r.FormFile("frame")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No frame provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error reading frame")
		return
	}

	accepted, err := s.feed.PushEncoded(data)
	if err != nil {
		slog.Debug("Rejected camera frame", "error", err)
		writeError(w, http.StatusBadRequest, "Frame is not a JPEG or PNG image")
		return
	}
	if !accepted {
		writeError(w, http.StatusConflict, "Camera is not open")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.workflow.CaptureFrame(), http.StatusOK)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.workflow.Submit(r.Context()), http.StatusAccepted)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.workflow.DismissFailure(), http.StatusOK)
}

func (s *Server) handleScanAnother(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.workflow.ScanAnother(), http.StatusOK)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Question is empty")
		return
	}

	reply, err := s.workflow.Ask(r.Context(), req.Query)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, askResponse{Reply: reply})
	case errors.Is(err, workflow.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrAssistantUnavailable):
		writeError(w, http.StatusServiceUnavailable, "The assistant is not available")
	default:
		slog.Error("Assistant request failed", "error", err)
		writeError(w, http.StatusBadGateway, "Sorry, I couldn't answer that right now. Please try again.")
	}
}

func (s *Server) handleOpenHistory(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.workflow.OpenHistory(), http.StatusOK)
}

func (s *Server) handleViewEntry(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.workflow.ViewEntry(r.PathValue("id")), http.StatusOK)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.workflow.ClearHistory(), http.StatusOK)
}
