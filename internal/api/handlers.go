package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/efebarandurmaz/impactgraph/internal/graph"
	"github.com/efebarandurmaz/impactgraph/internal/impact"
	"github.com/efebarandurmaz/impactgraph/internal/query"
	"github.com/gin-gonic/gin"
)

// handleSystems handles GET /api/graph/systems
func (s *Server) handleSystems(c *gin.Context) {
	res, err := s.queries.ListSystems(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleFull handles GET /api/graph/full
func (s *Server) handleFull(c *gin.Context) {
	format, ok := formatParam(c)
	if !ok {
		return
	}
	g, err := s.queries.FullGraph(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondGraph(c, g, format, "")
}

// handleAffected handles GET /api/graph/affected/:systemId
func (s *Server) handleAffected(c *gin.Context) {
	depth, ok := depthParam(c)
	if !ok {
		return
	}
	res, err := s.queries.Affected(c.Request.Context(), c.Param("systemId"), depth)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleDownstream handles GET /api/graph/downstream/:systemId
func (s *Server) handleDownstream(c *gin.Context) {
	depth, ok := depthParam(c)
	if !ok {
		return
	}
	format, ok := formatParam(c)
	if !ok {
		return
	}
	id := c.Param("systemId")
	g, err := s.queries.Downstream(c.Request.Context(), id, depth)
	if err != nil {
		respondError(c, err)
		return
	}
	respondGraph(c, g, format, id)
}

// depthParam reads ?depth=. Absent means 0, which the service treats as the
// default depth; range checks are left to the service.
func depthParam(c *gin.Context) (int, bool) {
	raw, present := c.GetQuery("depth")
	if !present || raw == "" {
		return 0, true
	}
	depth, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be an integer"})
		return 0, false
	}
	return depth, true
}

func formatParam(c *gin.Context) (impact.Format, bool) {
	f, err := impact.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return f, true
}

func respondGraph(c *gin.Context, g *graph.Graph, f impact.Format, root string) {
	switch f {
	case impact.FormatDOT:
		c.Data(http.StatusOK, "text/vnd.graphviz; charset=utf-8", []byte(impact.ExportDOT(g, root)))
	case impact.FormatMermaid:
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(impact.ExportMermaid(g, root)))
	default:
		c.JSON(http.StatusOK, g)
	}
}

// respondError maps query errors onto status codes. Data source details are
// logged, not returned.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, query.ErrDataSourceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": query.ErrDataSourceUnavailable.Error()})
	default:
		slog.Error("Unhandled query error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
