package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/logging"
	"github.com/breeze-rmm/snapshot-agent/internal/queue"
)

// viewParam reads ?view=, defaulting to the manager's current view.
func (s *Server) viewParam(c *gin.Context) (queue.View, bool) {
	raw, ok := c.GetQuery("view")
	if !ok {
		return s.deps.Manager.View(), true
	}
	view, err := queue.ParseView(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return view, true
}

func (s *Server) takeScreenshot(c *gin.Context) {
	view, ok := s.viewParam(c)
	if !ok {
		return
	}
	shot, err := s.deps.Manager.TakeScreenshot(c.Request.Context(), view, s.deps.Hooks)
	if err != nil {
		reqLog(c).Error("take screenshot failed", logging.KeyView, string(view), logging.Err(err))
		body := gin.H{"error": err.Error()}
		if shot.Path != "" {
			body["path"] = shot.Path
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	c.JSON(http.StatusOK, shot)
}

func (s *Server) listScreenshots(c *gin.Context) {
	view, ok := s.viewParam(c)
	if !ok {
		return
	}
	previews, err := s.deps.Manager.ListPreviews(view)
	if err != nil {
		reqLog(c).Error("list screenshots failed", logging.KeyView, string(view), logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, previews)
}

type deleteRequest struct {
	Path string `json:"path" binding:"required"`
}

func (s *Server) deleteScreenshot(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	c.JSON(http.StatusOK, s.deps.Manager.Delete(req.Path))
}

func (s *Server) resetQueues(c *gin.Context) {
	s.deps.Manager.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) listMonitors(c *gin.Context) {
	if s.deps.Monitors == nil {
		c.JSON(http.StatusOK, []desktop.Monitor{})
		return
	}
	c.JSON(http.StatusOK, s.deps.Monitors.ListMonitors(c.Request.Context()))
}

type screenshotConfig struct {
	SelectedMonitor any `json:"selectedMonitor"`
}

func (s *Server) getScreenshotConfig(c *gin.Context) {
	var sel desktop.Selector
	if s.deps.Settings != nil {
		sel = s.deps.Settings.SelectedMonitor()
	}
	c.JSON(http.StatusOK, screenshotConfig{SelectedMonitor: sel.Value()})
}

func (s *Server) putScreenshotConfig(c *gin.Context) {
	if s.deps.Settings == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "settings are read-only"})
		return
	}
	var req screenshotConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sel, err := desktop.SelectorFromValue(req.SelectedMonitor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Settings.SetSelectedMonitor(sel); err != nil {
		reqLog(c).Error("save screenshot config failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, screenshotConfig{SelectedMonitor: sel.Value()})
}

type viewBody struct {
	View string `json:"view" binding:"required"`
}

func (s *Server) getView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"view": s.deps.Manager.View()})
}

func (s *Server) putView(c *gin.Context) {
	var req viewBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "view is required"})
		return
	}
	if err := s.deps.Manager.SetView(queue.View(req.View)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrUnknownView) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": req.View})
}
