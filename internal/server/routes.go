// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/toolsearch/toolsearch/internal/catalog"
	"github.com/toolsearch/toolsearch/internal/embedding"
	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

func (s *Server) registerRoutes() {
	p := s.cfg.APIPrefix

	for _, path := range []string{"/health", p + "/health"} {
		id := "health"
		if path != "/health" {
			id = "api-health"
		}
		huma.Register(s.api, huma.Operation{
			OperationID: id,
			Method:      http.MethodGet,
			Path:        path,
			Summary:     "Health check",
			Tags:        []string{"system"},
		}, s.handleHealth)
	}

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-tool",
		Method:        http.MethodPost,
		Path:          p + "/tools",
		Summary:       "Create a tool",
		Tags:          []string{"tools"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTool)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-tools",
		Method:      http.MethodGet,
		Path:        p + "/tools",
		Summary:     "List tools",
		Tags:        []string{"tools"},
	}, s.handleListTools)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-tool",
		Method:      http.MethodGet,
		Path:        p + "/tools/{id}",
		Summary:     "Get a tool",
		Tags:        []string{"tools"},
	}, s.handleGetTool)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-tool",
		Method:      http.MethodPut,
		Path:        p + "/tools/{id}",
		Summary:     "Replace a tool",
		Tags:        []string{"tools"},
	}, s.handleUpdateTool)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-tool",
		Method:      http.MethodDelete,
		Path:        p + "/tools/{id}",
		Summary:     "Delete a tool",
		Tags:        []string{"tools"},
	}, s.handleDeleteTool)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-tools",
		Method:      http.MethodPost,
		Path:        p + "/search",
		Summary:     "Semantic search over tools",
		Tags:        []string{"search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-search-history",
		Method:      http.MethodGet,
		Path:        p + "/search/history",
		Summary:     "List past searches, newest first",
		Tags:        []string{"search"},
	}, s.handleListHistory)
}

// --- Request/Response types for huma ---

// HealthBody is the JSON body of the health endpoint.
type HealthBody struct {
	Status    string           `json:"status" example:"ok" doc:"ok, or degraded while the embedding provider is failing"`
	Embedding *EmbeddingHealth `json:"embedding,omitempty"`
}

type EmbeddingHealth struct {
	Provider string `json:"provider"`
	embedding.HealthStatus
}

type HealthResponse struct {
	Body HealthBody
}

type toolBody struct {
	Name        string         `json:"name" minLength:"1" maxLength:"255" doc:"Unique tool name"`
	Description string         `json:"description" minLength:"1" doc:"What the tool does; embedded for search"`
	Tags        []string       `json:"tags,omitempty" doc:"Free-form labels, also embedded"`
	Metadata    map[string]any `json:"tool_metadata,omitempty" doc:"Opaque metadata stored with the tool"`
}

func (b toolBody) fields() store.ToolFields {
	return store.ToolFields{
		Name:        b.Name,
		Description: b.Description,
		Tags:        b.Tags,
		Metadata:    b.Metadata,
	}
}

type createToolInput struct {
	Body toolBody
}

type toolIDInput struct {
	ID int64 `path:"id" minimum:"1"`
}

type updateToolInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body toolBody
}

type toolOutput struct {
	Body store.Tool
}

type listToolsInput struct {
	Skip  int `query:"skip" minimum:"0" default:"0"`
	Limit int `query:"limit" minimum:"1" maximum:"1000" default:"100"`
}

type listToolsOutput struct {
	Body []*store.Tool
}

type deleteToolOutput struct {
	Body struct {
		Message string `json:"message" example:"Tool deleted successfully"`
	}
}

type searchInput struct {
	Body struct {
		Query string `json:"query" minLength:"1" doc:"Natural-language description of the tool you need"`
		Limit int    `json:"limit,omitempty" minimum:"1" maximum:"100" default:"10" doc:"Upper bound on results"`
	}
}

type searchOutput struct {
	Body catalog.SearchResponse
}

type listHistoryInput struct {
	Skip  int `query:"skip" minimum:"0" default:"0"`
	Limit int `query:"limit" minimum:"1" maximum:"100" default:"10"`
}

type listHistoryOutput struct {
	Body []*store.SearchHistoryRecord
}

// --- Handlers ---

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*HealthResponse, error) {
	out := &HealthResponse{Body: HealthBody{Status: "ok"}}
	if h := s.services.Health(); h != nil {
		st := h.Health().Status()
		out.Body.Embedding = &EmbeddingHealth{Provider: h.Name(), HealthStatus: st}
		if !st.Available {
			out.Body.Status = "degraded"
		}
	}
	return out, nil
}

func (s *Server) handleCreateTool(ctx context.Context, input *createToolInput) (*toolOutput, error) {
	tool, err := s.services.Catalog().Create(ctx, input.Body.fields())
	if err != nil {
		return nil, s.apiError(ctx, err, "creating tool")
	}
	return &toolOutput{Body: *tool}, nil
}

func (s *Server) handleListTools(ctx context.Context, input *listToolsInput) (*listToolsOutput, error) {
	tools, err := s.services.Catalog().List(ctx, store.ListOpts{Offset: input.Skip, Limit: input.Limit})
	if err != nil {
		return nil, s.apiError(ctx, err, "listing tools")
	}
	return &listToolsOutput{Body: tools}, nil
}

func (s *Server) handleGetTool(ctx context.Context, input *toolIDInput) (*toolOutput, error) {
	tool, err := s.services.Catalog().Get(ctx, input.ID)
	if err != nil {
		return nil, s.apiError(ctx, err, "getting tool")
	}
	return &toolOutput{Body: *tool}, nil
}

func (s *Server) handleUpdateTool(ctx context.Context, input *updateToolInput) (*toolOutput, error) {
	tool, err := s.services.Catalog().Update(ctx, input.ID, input.Body.fields())
	if err != nil {
		return nil, s.apiError(ctx, err, "updating tool")
	}
	return &toolOutput{Body: *tool}, nil
}

func (s *Server) handleDeleteTool(ctx context.Context, input *toolIDInput) (*deleteToolOutput, error) {
	if err := s.services.Catalog().Delete(ctx, input.ID); err != nil {
		return nil, s.apiError(ctx, err, "deleting tool")
	}
	out := &deleteToolOutput{}
	out.Body.Message = "Tool deleted successfully"
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	resp, err := s.services.Catalog().Search(ctx, input.Body.Query, input.Body.Limit)
	if err != nil {
		return nil, s.apiError(ctx, err, "searching tools")
	}
	return &searchOutput{Body: *resp}, nil
}

func (s *Server) handleListHistory(ctx context.Context, input *listHistoryInput) (*listHistoryOutput, error) {
	history, err := s.services.Catalog().ListHistory(ctx, store.ListOpts{Offset: input.Skip, Limit: input.Limit})
	if err != nil {
		return nil, s.apiError(ctx, err, "listing search history")
	}
	return &listHistoryOutput{Body: history}, nil
}

// apiError maps err onto an HTTP problem. Client errors carry the error
// text; server errors are logged and answered with msg alone.
func (s *Server) apiError(ctx context.Context, err error, msg string) error {
	status := tserr.HTTPStatus(err)
	if status < http.StatusInternalServerError {
		return huma.NewError(status, err.Error())
	}

	s.logger.ErrorContext(ctx, msg+" failed",
		"code", tserr.CodeOf(err),
		"status", status,
		"request_id", middleware.GetReqID(ctx),
		"error", err,
	)
	if status == http.StatusServiceUnavailable {
		return huma.NewError(status, msg+": embedding provider unavailable")
	}
	return huma.NewError(status, msg+": internal error")
}
