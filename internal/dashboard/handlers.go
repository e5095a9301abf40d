package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"salesflow/logger"
	"salesflow/models"
)

func (s *Server) currentView(ctx context.Context) snapshotView {
	snap, ok, err := s.deps.Store.Latest(ctx)
	if err != nil {
		s.log.WithComponent("dashboard").WithError(err).Warn("failed to read snapshot")
	}
	v := buildView(snap, ok, s.now(), s.recentLimit)
	v.Refreshing = s.deps.Poller.InFlight()
	return v
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"AppName":           s.appName,
		"Collection":        s.collection,
		"RefreshIntervalMs": s.refreshIntervalMs,
		"Snapshot":          s.currentView(c.Request.Context()),
		"Slideshow":         s.deps.Slides != nil,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Store.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "refreshing": s.deps.Poller.InFlight(), "ws_clients": s.hub.count()})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.currentView(c.Request.Context()))
}

func (s *Server) handleRefresh(c *gin.Context) {
	if !s.deps.Poller.Refresh(c.Request.Context()) {
		c.JSON(http.StatusConflict, gin.H{"status": "already_running"})
		return
	}
	s.log.WithComponent("dashboard").WithFields(logger.Fields{"remote": c.ClientIP()}).Info("manual refresh started")
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) handleLogs(c *gin.Context) {
	level := strings.ToLower(c.Query("level"))
	records := s.logStore.snapshot(level)
	payload := make([]gin.H, 0, len(records))
	for _, l := range records {
		payload = append(payload, gin.H{
			"timestamp": l.Timestamp.Format(time.RFC3339Nano),
			"level":     l.Level,
			"component": l.Component,
			"message":   l.Message,
			"fields":    l.Fields,
		})
	}
	c.JSON(http.StatusOK, gin.H{"logs": payload})
}

func (s *Server) handleMetrics(c *gin.Context) {
	items := s.metricStore.snapshot(c.Query("component"))
	c.JSON(http.StatusOK, gin.H{"metrics": items})
}

func (s *Server) handleResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"resources": s.resourceSampler.snapshot()})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	client, err := s.hub.serve(c.Writer, c.Request)
	if err != nil {
		s.log.WithComponent("dashboard").WithError(err).Warn("websocket upgrade failed")
		return
	}
	if payload, err := encodeEvent("snapshot", s.currentView(c.Request.Context())); err == nil {
		client.enqueue(payload)
	}
}

// broadcastSnapshot pushes every published snapshot to websocket clients.
func (s *Server) broadcastSnapshot(snap models.Snapshot) {
	view := buildView(snap, true, s.now(), s.recentLimit)
	view.Refreshing = snap.State == models.StateLoading
	payload, err := encodeEvent("snapshot", view)
	if err != nil {
		s.log.WithComponent("dashboard").WithError(err).Warn("failed to encode snapshot event")
		return
	}
	s.hub.broadcast(payload)
}

func encodeEvent(kind string, data interface{}) ([]byte, error) {
	return json.Marshal(gin.H{"type": kind, "data": data})
}

func (s *Server) slidesOr404(c *gin.Context) Slides {
	if s.deps.Slides == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "slideshow disabled"})
		return nil
	}
	return s.deps.Slides
}

func (s *Server) handleSlides(c *gin.Context) {
	if sl := s.slidesOr404(c); sl != nil {
		c.JSON(http.StatusOK, sl.State())
	}
}

func (s *Server) handleSlideNext(c *gin.Context) {
	if sl := s.slidesOr404(c); sl != nil {
		c.JSON(http.StatusOK, sl.Next())
	}
}

func (s *Server) handleSlidePrev(c *gin.Context) {
	if sl := s.slidesOr404(c); sl != nil {
		c.JSON(http.StatusOK, sl.Prev())
	}
}

func (s *Server) handleSlideGoto(c *gin.Context) {
	sl := s.slidesOr404(c)
	if sl == nil {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}
	state, ok := sl.GoTo(index)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index out of range", "state": state})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleSlidePause(c *gin.Context) {
	if sl := s.slidesOr404(c); sl != nil {
		c.JSON(http.StatusOK, sl.Pause())
	}
}

func (s *Server) handleSlideResume(c *gin.Context) {
	if sl := s.slidesOr404(c); sl != nil {
		c.JSON(http.StatusOK, sl.Resume())
	}
}
