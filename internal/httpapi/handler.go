package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/entityhistory/internal/domain"
	"github.com/rpattn/entityhistory/internal/entityloader"
	"github.com/rpattn/entityhistory/internal/export"
	"github.com/rpattn/entityhistory/internal/history"
	"github.com/rpattn/entityhistory/internal/middleware"
	"github.com/rpattn/entityhistory/internal/repository"
	"github.com/rpattn/entityhistory/internal/schema/validator"

	"github.com/google/uuid"
	"github.com/goto/salt/log"
)

const maxBodyBytes = 8 << 20

// Handler exposes the version service over HTTP.
type Handler struct {
	service *history.Service
	repo    repository.VersionRepository
	logger  log.Logger
}

// NewHandler returns the routed handler for every endpoint.
func NewHandler(service *history.Service, repo repository.VersionRepository, logger log.Logger) http.Handler {
	h := &Handler{service: service, repo: repo, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /entities/{entityType}/{entityID}", h.putEntity)
	mux.HandleFunc("GET /entities/{entityType}/{entityID}/versions", h.listVersions)
	mux.HandleFunc("GET /entities/{entityType}/{entityID}/versions/latest", h.getLatest)
	mux.HandleFunc("GET /entities/{entityType}/{entityID}/versions/export", h.exportVersions)
	mux.HandleFunc("GET /entities/{entityType}/{entityID}/versions/{version}", h.getVersion)
	mux.HandleFunc("GET /entities/{entityType}/{entityID}/versions/{version}/diff", h.diffVersion)
	mux.HandleFunc("POST /versions/latest", h.latestBatch)
	mux.HandleFunc("POST /validate/{kind}", h.validate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

type putEntityBody struct {
	Snapshot          map[string]any            `json:"snapshot"`
	UpdatedBy         string                    `json:"updatedBy,omitempty"`
	ChangeDescription *domain.ChangeDescription `json:"changeDescription,omitempty"`
}

func (h *Handler) putEntity(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := h.entityPath(w, r)
	if !ok {
		return
	}

	var body putEntityBody
	if err := decodeStrict(r, &body); err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.service.Update(r.Context(), history.UpdateRequest{
		EntityID:   entityID,
		EntityType: entityType,
		Snapshot:   body.Snapshot,
		UpdatedBy:  body.UpdatedBy,
		Change:     body.ChangeDescription,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusOK
	if result.UpdateType == domain.UpdateCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := h.entityPath(w, r)
	if !ok {
		return
	}

	versions, err := h.service.History(r.Context(), entityType, entityID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) getLatest(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := h.entityPath(w, r)
	if !ok {
		return
	}

	record, err := h.service.Latest(r.Context(), entityType, entityID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) getVersion(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := h.entityPath(w, r)
	if !ok {
		return
	}
	version, err := domain.ParseEntityVersion(r.PathValue("version"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	record, err := h.service.Version(r.Context(), entityType, entityID, version)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// diffVersion compares a version against ?base=, defaulting to the version it replaced.
func (h *Handler) diffVersion(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := h.entityPath(w, r)
	if !ok {
		return
	}
	target, err := domain.ParseEntityVersion(r.PathValue("version"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var base domain.EntityVersion
	if raw := strings.TrimSpace(r.URL.Query().Get("base")); raw != "" {
		base, err = domain.ParseEntityVersion(raw)
		if err != nil {
			h.writeError(w, err)
			return
		}
	} else {
		record, err := h.service.Version(r.Context(), entityType, entityID, target)
		if err != nil {
			h.writeError(w, err)
			return
		}
		previous, hasPrevious := domain.EntityVersion{}, false
		if record.ChangeDescription != nil {
			previous, hasPrevious = record.ChangeDescription.PreviousVersion()
		}
		if !hasPrevious {
			h.writeError(w, fmt.Errorf("%w: version %s has no previous version, pass ?base=", history.ErrInvalidRequest, target))
			return
		}
		base = previous
	}

	diff, err := h.service.Diff(r.Context(), entityType, entityID, base, target)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, diff)
}

func (h *Handler) exportVersions(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := h.entityPath(w, r)
	if !ok {
		return
	}

	records, err := h.service.Records(r.Context(), entityType, entityID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistoryXLSX(&buf, entityType, records); err != nil {
		h.writeError(w, fmt.Errorf("failed to export versions of %s: %w", entityID, err))
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-versions.xlsx", entityID)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type latestBatchBody struct {
	EntityIDs []uuid.UUID `json:"entityIds"`
}

type latestBatchResponse struct {
	Records []domain.VersionRecord `json:"records"`
	Missing []uuid.UUID            `json:"missing"`
}

func (h *Handler) latestBatch(w http.ResponseWriter, r *http.Request) {
	var body latestBatchBody
	if err := decodeStrict(r, &body); err != nil {
		h.writeError(w, err)
		return
	}

	loader := middleware.LatestVersionLoaderFromContext(r.Context())
	if loader == nil {
		loader = entityloader.NewLatestVersionLoader(h.repo)
	}

	resp := latestBatchResponse{Records: []domain.VersionRecord{}, Missing: []uuid.UUID{}}
	if len(body.EntityIDs) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	records, errs := loader.LoadMany(r.Context(), body.EntityIDs)
	for i, id := range body.EntityIDs {
		var err error
		if i < len(errs) {
			err = errs[i]
		}
		switch {
		case err == nil && i < len(records):
			resp.Records = append(resp.Records, records[i])
		case errors.Is(err, repository.ErrNotFound):
			resp.Missing = append(resp.Missing, id)
		default:
			h.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type validateResponse struct {
	Valid      bool                  `json:"valid"`
	Violations []validator.Violation `json:"violations"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	kind, err := validator.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("failed to read body: %v", err)})
		return
	}

	v, err := validator.Default()
	if err != nil {
		h.writeError(w, err)
		return
	}
	violations, err := v.Validate(kind, data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if violations == nil {
		violations = []validator.Violation{}
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: len(violations) == 0, Violations: violations})
}

func (h *Handler) entityPath(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	entityType := strings.TrimSpace(r.PathValue("entityType"))
	entityID, err := uuid.Parse(r.PathValue("entityID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid entity id: %v", err)})
		return "", uuid.Nil, false
	}
	return entityType, entityID, true
}

func decodeStrict(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			return validationErr
		}
		return fmt.Errorf("%w: %v", history.ErrInvalidRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: request body must contain a single JSON object", history.ErrInvalidRequest)
	}
	return nil
}
