package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/arjvr/landmarkfp/pkg/landmarkfp"
	"github.com/arjvr/landmarkfp/pkg/landmarkfp/matcher"
	"github.com/arjvr/landmarkfp/pkg/logger"
	"github.com/arjvr/landmarkfp/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies.
type Server struct {
	service landmarkfp.Service
	config  *ServerConfig
	log     landmarkfp.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	SampleRate     int
	AllowedOrigins []string
}

// NewServer creates a new server instance.
func NewServer(service landmarkfp.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "landmarkfp API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":       "GET /health",
			"metrics":      "GET /api/health/metrics",
			"tracks":       "GET /api/tracks",
			"addTrackFile": "POST /api/tracks",
			"getTrack":     "GET /api/tracks/{id}",
			"deleteTrack":  "DELETE /api/tracks/{id}",
			"matchFile":    "POST /api/match",
		},
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.log.Errorf("Failed to get track count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		TrackCount:   len(tracks),
		SampleRate:   s.config.SampleRate,
	})
}

// handleListTracks handles GET /api/tracks.
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.log.Errorf("Failed to list tracks: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}

	dtos := make([]TrackDTO, len(tracks))
	for i, t := range tracks {
		dtos[i] = trackToDTO(t)
	}

	s.respondJSON(w, http.StatusOK, ListTracksResponse{
		Tracks: dtos,
		Count:  len(dtos),
	})
}

// handleGetTrack handles GET /api/tracks/{id}.
func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request, trackID uint32) {
	track, err := s.service.GetTrack(trackID)
	if err != nil {
		s.log.Warnf("Track not found: %d", trackID)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %d not found", trackID))
		return
	}

	s.respondJSON(w, http.StatusOK, trackToDTO(*track))
}

// handleDeleteTrack handles DELETE /api/tracks/{id}.
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request, trackID uint32) {
	track, err := s.service.GetTrack(trackID)
	if err != nil {
		s.log.Warnf("Track not found for deletion: %d", trackID)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %d not found", trackID))
		return
	}

	if err := s.service.DeleteTrack(trackID); err != nil {
		s.log.Errorf("Failed to delete track %d: %v", trackID, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	s.log.Infof("Deleted track: %s by %s (ID: %d)", track.Title, track.Artist, trackID)
	s.respondJSON(w, http.StatusOK, DeleteTrackResponse{
		Message: "Track deleted successfully",
		ID:      trackID,
	})
}

// handleAddTrackFile handles POST /api/tracks (multipart file upload).
func (s *Server) handleAddTrackFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	title := r.FormValue("title")
	artist := r.FormValue("artist")
	sourceRef := r.FormValue("source_ref")

	if title == "" || artist == "" {
		s.respondError(w, http.StatusBadRequest, "title and artist are required")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.log.Errorf("Failed to get audio file: %v", err)
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("upload_%d_%s", time.Now().UnixNano(), header.Filename))
	out, err := os.Create(tempFile)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	defer out.Close()
	defer utils.DeleteFile(tempFile)

	if _, err := io.Copy(out, file); err != nil {
		s.log.Errorf("Failed to save file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	out.Close()

	if sourceRef == "" {
		sourceRef = header.Filename
	}

	s.log.Infof("Adding track from file: %s by %s", title, artist)
	trackID, err := s.service.AddTrack(ctx, tempFile, title, artist, sourceRef)
	if err != nil {
		s.log.Errorf("Failed to add track: %v", err)
		if errors.Is(err, landmarkfp.ErrCorruptInput) {
			s.respondError(w, http.StatusUnprocessableEntity, "Uploaded audio is corrupt or unreadable")
			return
		}
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to add track: %v", err))
		return
	}

	s.log.Infof("Successfully added track: %s by %s (ID: %d)", title, artist, trackID)
	s.respondJSON(w, http.StatusCreated, AddTrackResponse{
		Message: "Track added successfully",
		ID:      trackID,
		Title:   title,
		Artist:  artist,
	})
}

// handleMatchFile handles POST /api/match (multipart file upload).
func (s *Server) handleMatchFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.log.Errorf("Failed to get audio file: %v", err)
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	minSupport := 5
	if v := r.FormValue("min_support"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			minSupport = n
		}
	}
	topK := 5
	if v := r.FormValue("topk"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			topK = n
		}
	}

	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("query_%d_%s", time.Now().UnixNano(), header.Filename))
	out, err := os.Create(tempFile)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	defer out.Close()
	defer utils.DeleteFile(tempFile)

	if _, err := io.Copy(out, file); err != nil {
		s.log.Errorf("Failed to save file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	out.Close()

	s.log.Infof("Matching uploaded file: %s", header.Filename)
	matches, status, err := s.service.Recognize(ctx, tempFile, matcher.Options{MinSupport: minSupport, TopK: topK})
	if err != nil {
		s.log.Errorf("Failed to match audio: %v", err)
		if errors.Is(err, landmarkfp.ErrCorruptInput) {
			s.respondError(w, http.StatusUnprocessableEntity, "Uploaded audio is corrupt or unreadable")
			return
		}
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to match audio: %v", err))
		return
	}

	dtos := make([]MatchResultDTO, len(matches))
	for i, m := range matches {
		dtos[i] = MatchResultDTO{
			TrackID:       m.TrackID,
			Title:         m.Title,
			Artist:        m.Artist,
			SourceRef:     m.SourceRef,
			Score:         m.Score,
			OffsetSeconds: m.OffsetSeconds,
			Confidence:    m.Confidence,
		}
	}

	s.log.Infof("Match complete: found %d matches", len(dtos))
	s.respondJSON(w, http.StatusOK, MatchResponse{
		Matches: dtos,
		Count:   len(dtos),
		Partial: status == matcher.Partial,
	})
}

// handleTracks routes requests to /api/tracks.
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTracks(w, r)
	case http.MethodPost:
		s.handleAddTrackFile(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTrack routes requests to /api/tracks/{id}.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Path[len("/api/tracks/"):]
	if idStr == "" {
		s.respondError(w, http.StatusBadRequest, "Track ID required")
		return
	}

	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetTrack(w, r, uint32(id))
	case http.MethodDelete:
		s.handleDeleteTrack(w, r, uint32(id))
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleMatchRoute routes requests to /api/match.
func (s *Server) handleMatchRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleMatchFile(w, r)
}

func trackToDTO(t landmarkfp.Track) TrackDTO {
	return TrackDTO{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		SourceRef:  t.SourceRef,
		FrameCount: t.FrameCount,
		IngestedAt: t.IngestedAt.Format(time.RFC3339),
	}
}
