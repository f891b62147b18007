package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func (s *server) setupRoutes(router *mux.Router) {
	// Stateless LRC tools
	router.HandleFunc("/lrc/parse", s.parseLRC).Methods(http.MethodPost)
	router.HandleFunc("/lrc/format", s.formatLRC).Methods(http.MethodPost)

	// Session lifecycle
	router.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	sr := router.PathPrefix("/sessions/{id}").Subrouter()
	sr.HandleFunc("", s.getSession).Methods(http.MethodGet)
	sr.HandleFunc("", s.deleteSession).Methods(http.MethodDelete)
	sr.HandleFunc("/reset", s.resetSession).Methods(http.MethodPost)

	// Ingestion
	sr.HandleFunc("/files", s.uploadFiles).Methods(http.MethodPost)
	sr.HandleFunc("/lyrics", s.loadLyrics).Methods(http.MethodPost)
	sr.HandleFunc("/import", s.importLRC).Methods(http.MethodPost)

	// Line editing
	sr.HandleFunc("/lines", s.addLine).Methods(http.MethodPost)
	sr.HandleFunc("/lines/{lineID}", s.updateLine).Methods(http.MethodPatch)
	sr.HandleFunc("/lines/{lineID}", s.deleteLine).Methods(http.MethodDelete)
	sr.HandleFunc("/lines/{lineID}/time", s.setLineTime).Methods(http.MethodPut)
	sr.HandleFunc("/lines/{lineID}/time/{kind}", s.clearLineTime).Methods(http.MethodDelete)
	sr.HandleFunc("/lines/{lineID}/adjust", s.adjustLineTime).Methods(http.MethodPost)
	sr.HandleFunc("/metadata", s.updateMetadata).Methods(http.MethodPut)

	// Playback and sources
	sr.HandleFunc("/playback", s.updatePlayback).Methods(http.MethodPost)
	sr.HandleFunc("/pause", s.pause).Methods(http.MethodPost)
	sr.HandleFunc("/source", s.switchSource).Methods(http.MethodPost)
	sr.HandleFunc("/source/loaded", s.sourceLoaded).Methods(http.MethodPost)
	sr.HandleFunc("/mixdown", s.retryMixdown).Methods(http.MethodPost)
	sr.HandleFunc("/audio/{source}", s.getAudio).Methods(http.MethodGet)

	// Export
	sr.HandleFunc("/export.lrc", s.exportLRC).Methods(http.MethodGet)
	sr.HandleFunc("/export.zip", s.exportZIP).Methods(http.MethodGet)

	// Render cache management endpoints
	router.HandleFunc("/cache", s.getCacheDump).Methods(http.MethodGet)
	router.HandleFunc("/cache/backup", s.backupCache).Methods(http.MethodPost)
	router.HandleFunc("/cache/backups", s.listBackups).Methods(http.MethodGet)
	router.HandleFunc("/cache/restore", s.restoreCache).Methods(http.MethodPost)
	router.HandleFunc("/cache/clear", s.clearCache).Methods(http.MethodPost)

	// Health and stats endpoints
	router.HandleFunc("/health", s.getHealthStatus).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatus).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreaker).Methods(http.MethodPost)

	// Help endpoint
	router.HandleFunc("/", helpHandler).Methods(http.MethodGet)
}
