package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/audiolibrelab/loopcap/internal/audio"
	"github.com/audiolibrelab/loopcap/internal/flagstore"
	"github.com/audiolibrelab/loopcap/internal/service"
	"github.com/audiolibrelab/loopcap/internal/transcripts"
)

// Server is the control API the GUI talks to
type Server struct {
	service service.Service
	hub     *Hub
	port    int
	mux     *http.ServeMux
	httpSrv *http.Server
}

// StatusResponse represents the JSON response for the status endpoint
type StatusResponse struct {
	Status      string                   `json:"status"`
	Message     string                   `json:"message,omitempty"`
	Continuous  service.ContinuousStatus `json:"continuous"`
	OutputDir   string                   `json:"output_dir,omitempty"`
	LastError   string                   `json:"last_error,omitempty"`
	Subscribers int                      `json:"subscribers"`
}

// DevicesResponse represents the JSON response for the devices endpoint
type DevicesResponse struct {
	Devices []audio.AudioDevice `json:"devices"`
}

// RecordingsResponse represents the JSON response for the recordings endpoint
type RecordingsResponse struct {
	Recordings []service.RecordingInfo `json:"recordings"`
	TotalCount int                     `json:"total_count"`
}

// TranscriptsResponse represents the JSON response for the transcripts endpoint
type TranscriptsResponse struct {
	Transcripts []transcripts.File `json:"transcripts"`
	Directory   string             `json:"directory"`
}

// New creates the control API over svc. hub may be nil when no event stream
// is wanted.
func New(svc service.Service, hub *Hub, port int) *Server {
	s := &Server{
		service: svc,
		hub:     hub,
		port:    port,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/api/devices", s.handleDevices)
	s.mux.HandleFunc("/api/record", s.handleRecord)
	s.mux.HandleFunc("/api/recordings", s.handleRecordings)
	s.mux.HandleFunc("/api/play", s.handlePlay)
	s.mux.HandleFunc("/api/continuous/start", s.handleContinuousStart)
	s.mux.HandleFunc("/api/continuous/stop", s.handleContinuousStop)
	s.mux.HandleFunc("/api/continuous/status", s.handleContinuousStatus)
	s.mux.HandleFunc("/api/output-dir", s.handleOutputDir)
	s.mux.HandleFunc("/api/transcripts", s.handleTranscripts)
	s.mux.HandleFunc("/api/transcripts/read", s.handleReadTranscript)
	if hub != nil {
		s.mux.Handle("/events", hub)
	}
	return s
}

// Handler exposes the routes, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	localIP := getLocalIP()
	slog.Info("Starting loopcap control API",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%d", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%d", s.port))

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control API failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and disconnects event subscribers
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// handleStatus returns the controller state, output directory and last error
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	continuous := s.service.GetContinuousStatus()
	response := StatusResponse{
		Status:     string(continuous.State),
		Continuous: continuous,
		LastError:  s.service.GetLastError(),
	}
	if dir, err := s.service.GetOutputDir(); err == nil {
		response.OutputDir = dir
	} else {
		response.Message = "No output directory set"
	}
	if s.hub != nil {
		response.Subscribers = s.hub.Clients()
	}

	s.sendJSON(w, http.StatusOK, response)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	devices, err := s.service.ListDevices()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list devices: %v", err), "operation", "list_devices")
		return
	}
	if devices == nil {
		devices = []audio.AudioDevice{}
	}
	s.sendJSON(w, http.StatusOK, DevicesResponse{Devices: devices})
}

// handleRecord starts a one-shot recording; progress arrives on /events
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "record")
		return
	}

	deviceID := r.FormValue("device_id")
	if deviceID == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "device_id is required", "operation", "record")
		return
	}

	slog.Info("Server: one-shot recording requested", "device_id", deviceID)
	s.service.Record(deviceID)

	s.sendJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":   true,
		"message":   "Recording started",
		"device_id": deviceID,
	})
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	recordings, err := s.service.ListRecordings()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list recordings: %v", err), "operation", "list_recordings")
		return
	}
	if recordings == nil {
		recordings = []service.RecordingInfo{}
	}
	s.sendJSON(w, http.StatusOK, RecordingsResponse{Recordings: recordings, TotalCount: len(recordings)})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "play")
		return
	}

	file := r.FormValue("file")
	if file == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "file is required", "operation", "play")
		return
	}
	if err := s.service.Play(file); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Playback failed: %v", err), "file", file, "operation", "play")
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Playback started",
	})
}

func (s *Server) handleContinuousStart(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "continuous_start")
		return
	}

	deviceID := r.FormValue("device_id")
	if deviceID == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "device_id is required", "operation", "continuous_start")
		return
	}

	h, err := s.service.StartContinuous(deviceID)
	if err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to start continuous recording: %v", err),
			"device_id", deviceID, "operation", "continuous_start")
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Continuous recording started",
		"handle_id": h.ID,
		"device_id": h.DeviceID,
	})
}

// handleContinuousStop requests a stop; the loop ends after the session in
// flight and reports continuous_recording_stopped on /events.
func (s *Server) handleContinuousStop(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "continuous_stop")
		return
	}

	handleID := r.FormValue("handle_id")
	if err := s.service.StopContinuous(handleID); err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to stop continuous recording: %v", err),
			"handle_id", handleID, "operation", "continuous_stop")
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Stop requested",
	})
}

func (s *Server) handleContinuousStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, http.StatusOK, s.service.GetContinuousStatus())
}

// handleOutputDir reads (GET) or replaces (POST dir=...) the session flag
func (s *Server) handleOutputDir(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		dir, err := s.service.GetOutputDir()
		if err != nil {
			s.sendErrorResponse(w, statusFor(err),
				fmt.Sprintf("Failed to read output directory: %v", err), "operation", "get_output_dir")
			return
		}
		s.sendJSON(w, http.StatusOK, map[string]interface{}{"output_dir": dir})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "set_output_dir")
			return
		}
		dir := r.FormValue("dir")
		if strings.TrimSpace(dir) == "" {
			s.sendErrorResponse(w, http.StatusBadRequest, "dir is required", "operation", "set_output_dir")
			return
		}
		if err := s.service.SetOutputDir(dir); err != nil {
			s.sendErrorResponse(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to set output directory: %v", err), "dir", dir, "operation", "set_output_dir")
			return
		}
		stored, _ := s.service.GetOutputDir()
		s.sendJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"output_dir": stored,
		})

	default:
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	dir, err := s.service.GetOutputDir()
	if err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to read output directory: %v", err), "operation", "list_transcripts")
		return
	}
	files, err := s.service.ListTranscripts()
	if err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to list transcripts: %v", err), "operation", "list_transcripts")
		return
	}
	if files == nil {
		files = []transcripts.File{}
	}
	s.sendJSON(w, http.StatusOK, TranscriptsResponse{Transcripts: files, Directory: dir})
}

func (s *Server) handleReadTranscript(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "name is required", "operation", "read_transcript")
		return
	}
	text, err := s.service.ReadTranscript(name)
	if err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to read transcript: %v", err), "name", name, "operation", "read_transcript")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(text))
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, audio.ErrAlreadyRunning), errors.Is(err, audio.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, audio.ErrDeviceNotFound), errors.Is(err, flagstore.ErrFlagNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, transcripts.ErrOutsideDir):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	s.sendJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
		"success": false,
		"error":   "Method not allowed",
	})
	return false
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write JSON response", "error", err)
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	if statusCode >= http.StatusInternalServerError {
		slog.Error("Sending error response to client", logFields...)
	} else {
		slog.Warn("Sending error response to client", logFields...)
	}

	s.sendJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Dialing UDP sends nothing; it only picks the outbound interface.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
