package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"webhook-ingest/internal/ingest"
	"webhook-ingest/internal/query"
)

// maxBodySize bounds webhook request bodies well above the message schema's
// 4096-character text limit.
const maxBodySize = 64 * 1024

// @Summary Ingest a signed webhook message
// @Tags Webhook
// @Accept json
// @Produce json
// @Param X-Signature header string true "HMAC-SHA256 of the raw body, hex or base64"
// @Success 200 {object} map[string]string
// @Router /webhook [post]
func (a *API) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		a.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	res := a.Pipeline.Ingest(r.Context(), body, r.Header.Get("X-Signature"))

	extras := Extras(r.Context())
	extras.Result = string(res.Outcome)
	extras.MessageID = res.MessageID

	switch res.Outcome {
	case ingest.OutcomeCreated:
		extras.Dup, extras.HasDup = false, true
		a.JSON(w, http.StatusOK, map[string]string{"status": "ok", "result": "created"})
	case ingest.OutcomeDuplicate:
		extras.Dup, extras.HasDup = true, true
		a.JSON(w, http.StatusOK, map[string]string{"status": "ok", "result": "duplicate"})
	case ingest.OutcomeInvalidSignature:
		a.Error(w, http.StatusUnauthorized, "invalid signature")
	case ingest.OutcomeValidationError:
		a.Error(w, http.StatusBadRequest, res.Err.Error())
	default:
		a.Error(w, http.StatusServiceUnavailable, "storage unavailable")
	}
}

// @Summary List stored messages
// @Tags Messages
// @Produce json
// @Param limit query int false "Page size, 1..max_limit"
// @Param offset query int false "Page offset"
// @Param from query string false "Sender msisdn filter"
// @Param since query string false "Minimum ts filter"
// @Param q query string false "Free-text filter"
// @Success 200 {object} query.Page
// @Router /messages [get]
func (a *API) ListMessages(w http.ResponseWriter, r *http.Request) {
	params, err := a.Query.ParseListParams(r.URL.Query())
	if err != nil {
		var verr *query.ValidationError
		if errors.As(err, &verr) {
			a.Error(w, http.StatusBadRequest, verr.Error())
			return
		}
		a.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := a.Query.List(r.Context(), params)
	if err != nil {
		a.Error(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	a.JSON(w, http.StatusOK, page)
}

// @Summary Aggregate message statistics
// @Tags Messages
// @Produce json
// @Success 200 {object} storage.Stats
// @Router /stats [get]
func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Query.Stats(r.Context())
	if err != nil {
		a.Error(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	a.JSON(w, http.StatusOK, stats)
}

// @Summary Liveness probe
// @Tags Health
// @Success 200
// @Router /health/live [get]
func (a *API) HealthLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// @Summary Readiness probe
// @Tags Health
// @Success 200
// @Failure 503
// @Router /health/ready [get]
func (a *API) HealthReady(w http.ResponseWriter, r *http.Request) {
	if a.Cfg.Webhook.Secret == "" {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := a.Store.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
