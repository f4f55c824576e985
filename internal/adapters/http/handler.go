package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront-service/internal/core/domain"
	"storefront-service/internal/core/ports"
	"storefront-service/internal/observability"
)

// PurchaseHandler exposes the purchase engine over HTTP.
type PurchaseHandler struct {
	service ports.PurchaseService
	logger  *slog.Logger
}

func NewPurchaseHandler(service ports.PurchaseService, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		service: service,
		logger:  logger,
	}
}

// HandlePurchase runs one purchase attempt for the item in the URL. The
// request stays open for the whole orchestration, authorization wait
// included.
func (h *PurchaseHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || itemID <= 0 {
		writeJSONError(w, "invalid item id", http.StatusBadRequest, h.logger)
		return
	}

	start := time.Now()
	ok, err := h.service.Purchase(r.Context(), itemID)
	observability.RecordPurchase(purchaseOutcome(ok, err), time.Since(start))

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrItemNotFound):
			writeJSONError(w, "unknown item", http.StatusNotFound, h.logger)

		case errors.Is(err, domain.ErrAlreadyProcessing),
			errors.Is(err, domain.ErrAlreadyPurchased),
			errors.Is(err, domain.ErrPurchaseLimitReached):
			writeJSONError(w, err.Error(), http.StatusConflict, h.logger)

		case errors.Is(err, domain.ErrAuthorizationDenied):
			writeJSONError(w, "platform denied the purchase", http.StatusPaymentRequired, h.logger)

		case errors.Is(err, domain.ErrAuthorizationTimeout):
			writeJSONError(w, "platform authorization timed out", http.StatusGatewayTimeout, h.logger)

		case errors.Is(err, domain.ErrCatalogNotLoaded),
			errors.Is(err, domain.ErrGatewayUnavailable),
			errors.Is(err, domain.ErrStorageUnavailable),
			errors.Is(err, domain.ErrRewardFailed):
			h.logger.Warn("temporary failure in external dependency", "error", err)
			writeJSONError(w, "service temporarily unavailable", http.StatusServiceUnavailable, h.logger)

		default:
			h.logger.Error("unexpected error during purchase", "item_id", itemID, "error", err)
			writeJSONError(w, "internal server error", http.StatusInternalServerError, h.logger)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "purchased": ok}, h.logger)
}

// HandleListItems returns the catalog snapshot, sorted by item id.
func (h *PurchaseHandler) HandleListItems(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.service.AvailableItems()
	if snapshot == nil {
		writeJSONError(w, "item catalog is not loaded", http.StatusServiceUnavailable, h.logger)
		return
	}

	items := make([]domain.Item, 0, len(snapshot))
	for _, item := range snapshot {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.Item) int { return a.ID - b.ID })

	writeJSON(w, http.StatusOK, map[string]any{"items": items}, h.logger)
}

// HandleEligibility answers the advisory CanPurchase query.
func (h *PurchaseHandler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || itemID <= 0 {
		writeJSONError(w, "invalid item id", http.StatusBadRequest, h.logger)
		return
	}

	eligible := h.service.CanPurchase(r.Context(), itemID)
	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "eligible": eligible}, h.logger)
}

// HandleState reports the engine's coarse payment state.
func (h *PurchaseHandler) HandleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"state": h.service.CurrentState()}, h.logger)
}

type authorizationCallback struct {
	ItemID     int  `json:"item_id"`
	Authorized bool `json:"authorized"`
}

// HandleAuthorizationCallback receives the platform's out-of-band
// accept/deny decision and feeds it to the waiting purchase attempt.
func (h *PurchaseHandler) HandleAuthorizationCallback(w http.ResponseWriter, r *http.Request) {
	var cb authorizationCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest, h.logger)
		return
	}

	matched := h.service.ResolveAuthorization(cb.ItemID, cb.Authorized)
	if !matched {
		// Late or unknown decision; discarded by design.
		h.logger.Warn("authorization decision had no pending attempt", "item_id", cb.ItemID)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"matched": matched}, h.logger)
}

func purchaseOutcome(ok bool, err error) string {
	switch {
	case ok:
		return "completed"
	case errors.Is(err, domain.ErrAuthorizationDenied):
		return "denied"
	case errors.Is(err, domain.ErrAuthorizationTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrAlreadyProcessing),
		errors.Is(err, domain.ErrAlreadyPurchased),
		errors.Is(err, domain.ErrPurchaseLimitReached),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrCatalogNotLoaded):
		return "rejected"
	default:
		return "error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to write json response", "error", err)
	}
}
