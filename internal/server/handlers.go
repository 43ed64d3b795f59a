package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/ticker-relay/internal/relay"
	"github.com/rickgao/ticker-relay/internal/version"
)

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

func (s *Server) getHealth(c *gin.Context) {
	state := s.relay.State()

	status, code := StatusDown, http.StatusServiceUnavailable
	switch state {
	case relay.StateConnected:
		status, code = StatusOK, http.StatusOK
	case relay.StateConnecting:
		status, code = StatusDegraded, http.StatusOK
	}

	c.JSON(code, gin.H{
		"status":  status,
		"version": version.Info(),
		"components": gin.H{
			"upstream": state.String(),
			"hub": gin.H{
				"connections": s.hub.Stats().Connections,
			},
		},
	})
}

func (s *Server) getSubscriptions(c *gin.Context) {
	subs := s.relay.Subscriptions()
	c.JSON(http.StatusOK, gin.H{
		"symbols":       len(subs),
		"subscriptions": subs,
	})
}

func (s *Server) getStats(c *gin.Context) {
	body := gin.H{
		"relay": s.relay.Stats(),
		"hub":   s.hub.Stats(),
	}
	if s.notify != nil {
		body["notify"] = s.notify.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// pushHandler forwards the raw JSON body to the user's room as event.
func (s *Server) pushHandler(event string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")

		body, err := c.GetRawData()
		if err != nil || !json.Valid(body) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must be valid JSON"})
			return
		}
		payload := json.RawMessage(body)

		switch event {
		case relay.EventOrderUpdate:
			s.relay.PushOrderUpdate(userID, payload)
		case relay.EventBalanceUpdate:
			s.relay.PushBalanceUpdate(userID, payload)
		}

		c.JSON(http.StatusAccepted, gin.H{
			"event":   event,
			"user_id": userID,
		})
	}
}
