package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	knowledged "github.com/voxhive/knowledged"
	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/search"
	"github.com/voxhive/knowledged/storage"
)

// maxUploadBytes caps multipart uploads.
const maxUploadBytes = 32 << 20 // 32 MB

type handler struct {
	svc    *knowledged.Service
	logger *slog.Logger
}

func newHandler(svc *knowledged.Service, logger *slog.Logger) *handler {
	return &handler{svc: svc, logger: logger}
}

type documentResponse struct {
	Id          string            `json:"id"`
	CompanyId   string            `json:"companyId"`
	AgentId     string            `json:"agentId,omitempty"`
	Name        string            `json:"name"`
	FileName    string            `json:"fileName"`
	SizeBytes   int64             `json:"sizeBytes"`
	MimeType    string            `json:"mimeType"`
	Status      string            `json:"status"`
	ChunkCount  int               `json:"chunkCount"`
	VectorCount int               `json:"vectorCount"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	LastError   string            `json:"lastError,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	ProcessedAt *time.Time        `json:"processedAt,omitempty"`
}

func toDocumentResponse(doc *core.Document) documentResponse {
	resp := documentResponse{
		Id:          doc.Id,
		CompanyId:   doc.CompanyId,
		AgentId:     doc.AgentId,
		Name:        doc.Name,
		FileName:    doc.FileName,
		SizeBytes:   doc.SizeBytes,
		MimeType:    doc.MimeType,
		Status:      string(doc.Status),
		ChunkCount:  doc.ChunkCount,
		VectorCount: doc.VectorCount,
		Metadata:    doc.Metadata,
		LastError:   doc.LastError,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if !doc.ProcessedAt.IsZero() {
		processedAt := doc.ProcessedAt
		resp.ProcessedAt = &processedAt
	}
	return resp
}

type searchRequest struct {
	Query   string `json:"query"`
	AgentId string `json:"agentId"`
	TopK    int    `json:"topK"`
}

// searchResultResponse flattens a hit into an id, a score and a metadata
// bag; consumers read the chunk text from metadata.text.
type searchResultResponse struct {
	Id       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

func toSearchResultResponse(res *search.Result) searchResultResponse {
	return searchResultResponse{
		Id:    fmt.Sprintf("%s:%d", res.DocumentId, res.ChunkIndex),
		Score: res.Score,
		Metadata: map[string]any{
			"documentId": res.DocumentId,
			"chunkIndex": res.ChunkIndex,
			"text":       res.Text,
			"fileName":   res.FileName,
			"start":      res.Start,
			"end":        res.End,
		},
	}
}

type searchResponse struct {
	Query   string                 `json:"query"`
	Results []searchResultResponse `json:"results"`
	Count   int                    `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// tenant pulls the company and agent ids off the request headers.
func tenant(r *http.Request) (companyId, agentId string) {
	return r.Header.Get("X-Company-ID"), r.Header.Get("X-Agent-ID")
}

func (h *handler) submitDocument(w http.ResponseWriter, r *http.Request) {
	companyId, agentId := tenant(r)
	if companyId == "" {
		h.writeError(w, core.ErrMissingCompany)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, core.ErrPayloadTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file field"})
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if formType := r.FormValue("mimeType"); formType != "" {
		mimeType = formType
	}
	if formAgent := r.FormValue("agent_id"); formAgent != "" {
		agentId = formAgent
	}

	doc, err := h.svc.SubmitDocument(r.Context(), knowledged.SubmitRequest{
		CompanyId: companyId,
		AgentId:   agentId,
		Name:      r.FormValue("name"),
		FileName:  header.Filename,
		MimeType:  mimeType,
		Payload:   payload,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]documentResponse{"document": toDocumentResponse(doc)})
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	companyId, agentId := tenant(r)
	if qa := r.URL.Query().Get("agent_id"); qa != "" {
		agentId = qa
	}

	docs, err := h.svc.ListDocuments(r.Context(), companyId, agentId)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]documentResponse, len(docs))
	for i, doc := range docs {
		resp[i] = toDocumentResponse(doc)
	}
	writeJSON(w, http.StatusOK, map[string][]documentResponse{"documents": resp})
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	companyId, _ := tenant(r)
	if companyId == "" {
		h.writeError(w, core.ErrMissingCompany)
		return
	}

	doc, err := h.svc.GetDocument(r.Context(), companyId, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	companyId, _ := tenant(r)
	if companyId == "" {
		h.writeError(w, core.ErrMissingCompany)
		return
	}

	if err := h.svc.DeleteDocument(r.Context(), companyId, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	companyId, agentId := tenant(r)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.AgentId != "" {
		agentId = req.AgentId
	}

	results, err := h.svc.Search(r.Context(), companyId, agentId, req.Query, req.TopK)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := searchResponse{Query: req.Query, Results: make([]searchResultResponse, len(results))}
	for i, res := range results {
		resp.Results[i] = toSearchResultResponse(res)
	}
	resp.Count = len(resp.Results)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps domain errors onto status codes.
func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrMissingCompany),
		errors.Is(err, core.ErrEmptyQuery),
		errors.Is(err, core.ErrEmptyDocument),
		errors.Is(err, core.ErrInvalidDocument):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrJobInFlight):
		status = http.StatusConflict
	case errors.Is(err, core.ErrEmbedderUnconfigured):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
