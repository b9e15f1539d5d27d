// Package api serves a read-only HTTP view of the catalog and the asset
// ledger.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/genlock/internal/engine"
	"github.com/roach88/genlock/internal/ir"
)

// Reader is the query surface of the engine.
type Reader interface {
	GenerationCount() int
	Generation(id ir.GenerationID) (ir.Generation, error)
	Generations() []ir.Generation
	Asset(asset ir.AssetID) (ir.Asset, error)
	GenerationBaseURI(asset ir.AssetID) (string, error)
	IsGenerationUnlocked(asset ir.AssetID, id ir.GenerationID) (bool, error)
	DefaultBaseURI() string
	AssetCount() int
	Seq() int64
}

var _ Reader = (*engine.Engine)(nil)

// AssetView is the JSON shape of an asset.
type AssetView struct {
	ID       string            `json:"id"`
	Active   ir.GenerationID   `json:"active"`
	Unlocked []ir.GenerationID `json:"unlocked"`
	BaseURI  string            `json:"base_uri"`
}

// Server holds the handler dependencies.
type Server struct {
	reader Reader
	logger *slog.Logger
}

// NewRouter builds the gin engine. A nil gatherer leaves /metrics
// unmounted.
func NewRouter(r Reader, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{reader: r, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog)

	router.GET("/health", s.health)
	router.GET("/generations", s.listGenerations)
	router.GET("/generations/count", s.countGenerations)
	router.GET("/generations/:id", s.getGeneration)
	router.GET("/assets/:id", s.getAsset)
	router.GET("/assets/:id/base-uri", s.getBaseURI)
	router.GET("/assets/:id/generations/:gen/unlocked", s.getUnlocked)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

func (s *Server) requestLog(c *gin.Context) {
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
	)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"seq":    s.reader.Seq(),
		"assets": s.reader.AssetCount(),
	})
}

func (s *Server) listGenerations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default_base_uri": s.reader.DefaultBaseURI(),
		"generations":      s.reader.Generations(),
	})
}

func (s *Server) countGenerations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": s.reader.GenerationCount()})
}

func (s *Server) getGeneration(c *gin.Context) {
	id, ok := generationParam(c, "id")
	if !ok {
		return
	}
	g, err := s.reader.Generation(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) getAsset(c *gin.Context) {
	id, ok := assetParam(c)
	if !ok {
		return
	}
	a, err := s.reader.Asset(id)
	if err != nil {
		writeError(c, err)
		return
	}
	uri, err := s.reader.GenerationBaseURI(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, AssetView{
		ID:       a.ID.String(),
		Active:   a.Active,
		Unlocked: a.UnlockedIDs(),
		BaseURI:  uri,
	})
}

func (s *Server) getBaseURI(c *gin.Context) {
	id, ok := assetParam(c)
	if !ok {
		return
	}
	uri, err := s.reader.GenerationBaseURI(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": id.String(), "base_uri": uri})
}

func (s *Server) getUnlocked(c *gin.Context) {
	asset, ok := assetParam(c)
	if !ok {
		return
	}
	gen, ok := generationParam(c, "gen")
	if !ok {
		return
	}
	unlocked, err := s.reader.IsGenerationUnlocked(asset, gen)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset":      asset.String(),
		"generation": gen,
		"unlocked":   unlocked,
	})
}

func assetParam(c *gin.Context) (ir.AssetID, bool) {
	id, err := ir.ParseAssetID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return id, true
}

func generationParam(c *gin.Context, name string) (ir.GenerationID, bool) {
	id, err := ir.ParseGenerationID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return id, true
}

// writeError maps lookup failures to 404 and anything else to 500.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrInvalidGeneration) || errors.Is(err, engine.ErrInvalidToken) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
