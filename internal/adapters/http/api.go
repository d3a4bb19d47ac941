package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dialoq/hotline/internal/domain"
	"github.com/dialoq/hotline/internal/store"
)

// APIHandlers serves the narrow REST surface around the relay: roster
// lookups, the login stub and durable call history. None of it feeds
// live routing.
type APIHandlers struct {
	Store store.Store
}

func (h *APIHandlers) ListParties(c *gin.Context) {
	parties, err := h.Store.ListParties(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.api").Msg("list parties")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch parties"})
		return
	}
	c.JSON(http.StatusOK, parties)
}

func (h *APIHandlers) ListCustomers(c *gin.Context) {
	customers, err := h.Store.ListCustomers(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.api").Msg("list customers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch customers"})
		return
	}
	c.JSON(http.StatusOK, customers)
}

type loginRequest struct {
	CustomerID domain.CustomerID `json:"customer_id"`
}

// Login is an identifier-lookup stub: no credential is verified.
func (h *APIHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CustomerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid customer_id"})
		return
	}

	party, err := h.Store.FindParty(c.Request.Context(), req.CustomerID)
	if errors.Is(err, store.ErrPartyNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid customer id"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.api").Msg("login lookup")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	party, err = h.Store.SetStatus(c.Request.Context(), req.CustomerID, domain.StatusAvailable)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.api").Msg("login status update")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	sess := sessions.Default(c)
	sess.Set("party_id", string(party.CustomerID))
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.api").Msg("session save")
	}

	c.JSON(http.StatusOK, party)
}

type createCallRequest struct {
	CallerID   domain.CustomerID `json:"caller_id"`
	ReceiverID domain.CustomerID `json:"receiver_id"`
}

func (h *APIHandlers) CreateCall(c *gin.Context) {
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallerID == "" || req.ReceiverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing caller_id or receiver_id"})
		return
	}

	rec, err := h.Store.CreateCall(c.Request.Context(), req.CallerID, req.ReceiverID, domain.CallInitiated)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.api").Msg("create call")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create call"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type updateCallRequest struct {
	Status   domain.CallStatus `json:"status"`
	Duration int               `json:"duration"`
}

func (h *APIHandlers) UpdateCall(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}
	var req updateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid status"})
		return
	}

	var endedAt *time.Time
	if req.Status == domain.CallEnded {
		now := time.Now()
		endedAt = &now
	}

	rec, err := h.Store.UpdateCall(c.Request.Context(), id, req.Status, endedAt, req.Duration)
	if errors.Is(err, store.ErrCallNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.api").Msg("update call")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update call"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *APIHandlers) PartyCalls(c *gin.Context) {
	id := domain.CustomerID(c.Param("id"))
	calls, err := h.Store.ListCallsForParty(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.api").Msg("party calls")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch party calls"})
		return
	}
	c.JSON(http.StatusOK, calls)
}
