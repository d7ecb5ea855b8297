package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coffee_roaster/internal/service"
)

const maxRoastListLimit = 500

// logAndJSONError logs the failure (if a logger is set) and writes a JSON error.
func (h *Handler) logAndJSONError(c *gin.Context, status int, op string, err error, msg string) {
	if h.log != nil {
		h.log.Errorw(op, "err", err, "path", c.FullPath())
	}
	c.JSON(status, gin.H{"error": msg})
}

// @Summary      Current roaster state
// @Description  Latest recorded tick, or an idle reading when nothing was recorded yet.
// @Tags         roaster
// @Produce      json
// @Success      200  {object}  models.Tick
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/roaster/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "roaster_get_state_failed", err, "failed to read state")
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      List roasts
// @Tags         roasts
// @Produce      json
// @Param        limit  query  int  false  "Maximum number of roasts, newest first"  default(50)
// @Success      200  {object}  map[string]interface{}  "count, roasts"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/roasts [get]
// @Security     BearerAuth
func (h *Handler) listRoasts(c *gin.Context) {
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		v, err := strconv.Atoi(qs)
		if err != nil || v <= 0 || v > maxRoastListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit'; use 1.." + strconv.Itoa(maxRoastListLimit)})
			return
		}
		limit = v
	}
	roasts, err := h.services.Recording.List(c.Request.Context(), limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "roasts_list_failed", err, "failed to load roasts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(roasts), "roasts": roasts})
}

// @Summary      Get roast
// @Tags         roasts
// @Produce      json
// @Param        id   path  string  true  "Roast id"
// @Success      200  {object}  models.Roast
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/roasts/{id} [get]
// @Security     BearerAuth
func (h *Handler) getRoast(c *gin.Context) {
	id := c.Param("id")
	roast, err := h.services.Recording.Get(c.Request.Context(), id)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "roast_get_failed", err, "failed to load roast")
		return
	}
	if roast == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "roast not found"})
		return
	}
	c.JSON(http.StatusOK, roast)
}

// @Summary      Roast ticks
// @Description  Recorded telemetry of one roast, oldest first.
// @Tags         roasts
// @Produce      json
// @Param        id   path  string  true  "Roast id"
// @Success      200  {object}  map[string]interface{}  "count, ticks"
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/roasts/{id}/ticks [get]
// @Security     BearerAuth
func (h *Handler) getRoastTicks(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	roast, err := h.services.Recording.Get(ctx, id)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "roast_get_failed", err, "failed to load roast")
		return
	}
	if roast == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "roast not found"})
		return
	}
	ticks, err := h.services.Recording.Ticks(ctx, id)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "roast_ticks_failed", err, "failed to load ticks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ticks), "ticks": ticks})
}

// @Summary      Drain relay messages
// @Description  Removes and returns the oldest buffered relay messages.
// @Tags         roaster
// @Produce      json
// @Param        max  query  int  false  "At most this many messages (1..30)"  default(30)
// @Success      200  {array}   telemetry.Message
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/messages [get]
// @Security     BearerAuth
func (h *Handler) getMessages(c *gin.Context) {
	limit := service.MaxDrain
	if qs := c.Query("max"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil {
			limit = v
		}
	}
	msgs := h.services.Relay.Drain(limit)
	if msgs == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// @Summary  Liveness check
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
