// Package http serves the catalog admin endpoints.
package http

import (
	"errors"
	"net/http"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/service"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

type Handler struct {
	Catalog *service.Catalog
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux, authn httpx.Middleware, limits httpx.RateLimitProfiles) {
	mux.Handle("PUT /v1/admin/series/{slug}",
		httpx.Chain(http.HandlerFunc(h.HandleUpsertSeries),
			authn,
			httpx.RequireAnyRole("admin"),
			httpx.RateLimitByUser(limits.Moderate),
		),
	)
}

// HandleUpsertSeries godoc
//
//	@Summary		Create or update a series
//	@Description	Upserts the series named by slug through the same contract the crawler uses. An omitted description or cover keeps its stored value. A missing status means draft.
//	@Tags			Catalog
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string						true	"Series slug"
//	@Param			request	body		authsdk.UpsertSeriesRequest	true	"Series fields"
//	@Success		200		{object}	authsdk.SeriesResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		403		{object}	authsdk.ErrorResponse	"forbidden"
//	@Router			/v1/admin/series/{slug} [put].
func (h *Handler) HandleUpsertSeries(w http.ResponseWriter, r *http.Request) {
	var req authsdk.UpsertSeriesRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ValidationError(err.Error()).WriteError(w)
		return
	}

	s, err := h.Catalog.UpsertSeries(r.Context(), service.SeriesInput{
		Slug:        r.PathValue("slug"),
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.SeriesStatus(req.Status),
		CoverURL:    req.CoverURL,
	})
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		authsdk.ValidationError(err.Error()).WriteError(w)
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("upsert series failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	slogx.FromContext(r.Context()).Info("series upserted", "slug", s.Slug, "series_id", s.ID)
	httpx.WriteJSON(w, http.StatusOK, authsdk.SeriesResponse{
		ID:          s.ID,
		Slug:        s.Slug,
		Title:       s.Title,
		Description: s.Description,
		Status:      string(s.Status),
		CoverURL:    s.CoverURL,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	})
}
