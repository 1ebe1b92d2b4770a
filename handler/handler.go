// Package handler provides the local JSON API the UI layer calls.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stevemurr/bizstore/collection"
	"github.com/stevemurr/bizstore/common"
	"github.com/stevemurr/bizstore/entity"
	"github.com/stevemurr/bizstore/facade"
	"github.com/stevemurr/bizstore/identity"
	"github.com/stevemurr/bizstore/logging"
)

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store *facade.Store
	log   logging.Logger
	mux   *http.ServeMux
}

// New creates a Handler and wires up all routes.
func New(s *facade.Store, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	h := &Handler{store: s, log: log, mux: http.NewServeMux()}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /", h.root)
	h.mux.HandleFunc("GET /health", h.health)

	// --- Records ---
	h.mux.HandleFunc("GET /collections", h.listCollections)
	h.mux.HandleFunc("GET /collections/{collection}/items", h.getAllItems)
	h.mux.HandleFunc("GET /collections/{collection}/items/since/{timestamp}", h.getItemsSince)
	h.mux.HandleFunc("GET /collections/{collection}/items/{id}", h.getItem)
	h.mux.HandleFunc("POST /collections/{collection}/items", h.addItem)
	h.mux.HandleFunc("PUT /collections/{collection}/items/{id}", h.putItem)
	h.mux.HandleFunc("PATCH /collections/{collection}/items/{id}", h.patchItem)
	h.mux.HandleFunc("DELETE /collections/{collection}/items/{id}", h.deleteItem)

	// --- Master data ---
	h.mux.HandleFunc("GET /masters", h.masterTypes)
	h.mux.HandleFunc("GET /masters/{type}", h.mastersByType)
	h.mux.HandleFunc("POST /masters", h.addMaster)

	// --- Identifiers ---
	h.mux.HandleFunc("POST /ids/{prefix}", h.generateID)

	// --- Schema endpoints ---
	h.mux.HandleFunc("GET /schemas", h.listSchemas)
	h.mux.HandleFunc("GET /schemas/{collection}", h.getSchema)
	h.mux.HandleFunc("PUT /schemas/{collection}", h.putSchema)
	h.mux.HandleFunc("DELETE /schemas/{collection}", h.deleteSchema)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// statusFor maps the store's error categories onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidationFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrUnauthorizedAccess):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func parseISO(s string) (time.Time, error) {
	s = strings.Replace(s, "Z", "+00:00", 1)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// Try without timezone
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %s", s)
}

func (h *Handler) session(r *http.Request) *facade.Session {
	return h.store.SessionFor(r.Context(), identity.ContextProvider{})
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	// Only match exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "bizstore",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- records ----------

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	names, err := h.session(r).Collections(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) getAllItems(w http.ResponseWriter, r *http.Request) {
	docs, err := h.session(r).GetAll(r.Context(), r.PathValue("collection"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// getItemsSince returns records whose updatedAt is after the given time,
// letting a view refresh incrementally.
func (h *Handler) getItemsSince(w http.ResponseWriter, r *http.Request) {
	since, err := parseISO(r.PathValue("timestamp"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp format")
		return
	}
	docs, err := h.session(r).GetAll(r.Context(), r.PathValue("collection"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result := []collection.Document{}
	for _, doc := range docs {
		if doc.UpdatedAt().After(since) {
			result = append(result, doc)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	doc, err := h.session(r).Get(r.Context(), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var doc collection.Document
	if err := readJSON(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	saved, err := h.session(r).Add(r.Context(), r.PathValue("collection"), doc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// bodyWithPathID decodes the request record and reconciles its id with the URL.
func bodyWithPathID(w http.ResponseWriter, r *http.Request) (collection.Document, bool) {
	var doc collection.Document
	if err := readJSON(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return nil, false
	}
	if doc == nil {
		writeError(w, http.StatusBadRequest, "expected a JSON object")
		return nil, false
	}
	id := r.PathValue("id")
	if bodyID, ok := doc[collection.FieldID]; ok && bodyID != id {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("body id %v does not match path id %q", bodyID, id))
		return nil, false
	}
	doc[collection.FieldID] = id
	return doc, true
}

func (h *Handler) putItem(w http.ResponseWriter, r *http.Request) {
	doc, ok := bodyWithPathID(w, r)
	if !ok {
		return
	}
	saved, err := h.session(r).Add(r.Context(), r.PathValue("collection"), doc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) patchItem(w http.ResponseWriter, r *http.Request) {
	patch, ok := bodyWithPathID(w, r)
	if !ok {
		return
	}
	saved, err := h.session(r).Update(r.Context(), r.PathValue("collection"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.session(r).Remove(r.Context(), r.PathValue("collection"), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// ---------- master data ----------

func (h *Handler) masterTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.session(r).MasterTypes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *Handler) mastersByType(w http.ResponseWriter, r *http.Request) {
	entries, err := h.session(r).GetMastersByType(r.Context(), r.PathValue("type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) addMaster(w http.ResponseWriter, r *http.Request) {
	var e entity.MasterEntry
	if err := readJSON(r, &e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	saved, err := h.session(r).AddMaster(r.Context(), e)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// ---------- identifiers ----------

func (h *Handler) generateID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"id": h.store.GenerateID(r.PathValue("prefix"))})
}

// ---------- schema endpoints ----------

func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.store.Records().Schemas(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas)
}

// getSchema returns the schema in effect for a collection, stored or built in.
func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("collection")
	s, err := h.store.Records().SchemaFor(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no schema for collection %q", name))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) putSchema(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("collection")
	var s map[string]any
	if err := readJSON(r, &s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.store.Records().PutSchema(r.Context(), name, s); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) deleteSchema(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("collection")
	if err := h.store.Records().DeleteSchema(r.Context(), name); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "collection": name})
}
