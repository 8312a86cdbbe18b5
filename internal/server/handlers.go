package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/fastcalorie/nutridb/constants"
	"github.com/fastcalorie/nutridb/internal/common"
	"github.com/fastcalorie/nutridb/internal/export"
	"github.com/fastcalorie/nutridb/internal/ingest"
	"github.com/fastcalorie/nutridb/internal/repository"
	"github.com/fastcalorie/nutridb/internal/review"
)

type handlers struct {
	intake *ingest.Service
	review *review.Service
	export *export.Service
	jobs   repository.JobRepository
	health func(ctx context.Context) error
	logger *slog.Logger
}

// actorID reads the admin identity from the X-Admin-ID header. Auth proper
// sits in front of this service; the header carries the already
// authenticated principal.
func actorID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Admin-ID")
	if raw == "" {
		return uuid.Nil, common.InvalidInputf("missing X-Admin-ID header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.InvalidInputf("invalid X-Admin-ID header")
	}
	return id, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, common.InvalidInputf("invalid %s", name)
	}
	return id, nil
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	admin, err := actorID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// MaxBytesReader bounds the whole multipart body so an oversized
	// upload is rejected before it is fully buffered.
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, common.InvalidInputf("malformed multipart body"))
		return
	}

	restaurantID, err := uuid.Parse(r.FormValue("restaurant_id"))
	if err != nil {
		writeError(w, common.InvalidInputf("invalid restaurant_id"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, common.InvalidInputf("missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}

	jobID, err := h.intake.AcceptUpload(r.Context(), ingest.UploadRequest{
		RestaurantID: restaurantID,
		AdminID:      admin,
		ContentType:  header.Header.Get("Content-Type"),
		Data:         data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"job_id": jobID.String()})
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	var restaurantID *uuid.UUID
	if raw := r.URL.Query().Get("restaurant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, common.InvalidInputf("invalid restaurant_id"))
			return
		}
		restaurantID = &id
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, common.InvalidInputf("invalid limit"))
			return
		}
		limit = n
	}

	jobs, err := h.jobs.List(r.Context(), restaurantID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type approveRequest struct {
	ItemIndexes []int `json:"item_indexes"`
}

func (h *handlers) approveItems(w http.ResponseWriter, r *http.Request) {
	admin, err := actorID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.InvalidInputf("malformed request body"))
		return
	}

	result, err := h.review.ApproveItems(r.Context(), jobID, admin, req.ItemIndexes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) editItem(w http.ResponseWriter, r *http.Request) {
	admin, err := actorID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, common.InvalidInputf("invalid item index"))
		return
	}

	patch, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, fmt.Errorf("read body: %w", err))
		return
	}
	if !json.Valid(patch) {
		writeError(w, common.InvalidInputf("malformed request body"))
		return
	}

	result, err := h.review.EditItem(r.Context(), jobID, admin, index, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) exportMenu(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	data, filename, err := h.export.ExportMenuXLSX(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("export write failed", "error", err)
	}
}
