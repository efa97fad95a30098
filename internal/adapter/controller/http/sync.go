package httpctrl

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	syncuc "github.com/TheDarkKnight1989/archvd-sub000/internal/usecase/sync"
)

type SyncService interface {
	SyncItem(ctx context.Context, itemID int64, opts syncuc.Options) (catalog.SyncOutcome, error)
	SyncStale(ctx context.Context, limit int, opts syncuc.Options) (synced, failed int, err error)
}

type SyncController struct {
	UC         SyncService
	Volumes    bool
	StaleLimit int
	Admin      gin.HandlerFunc
}

func (c *SyncController) Register(r *gin.Engine) {
	r.POST("/sync/items/:id", c.syncItem)
	stale := r.Group("/", c.admin())
	stale.POST("/sync/stale", c.syncStale)
}

func (c *SyncController) admin() gin.HandlerFunc {
	if c.Admin != nil {
		return c.Admin
	}
	return func(*gin.Context) {}
}

func (c *SyncController) opts(ctx *gin.Context) syncuc.Options {
	o := syncuc.Options{Volumes: c.Volumes}
	if q := ctx.Query("volumes"); q != "" {
		o.Volumes = q == "1" || q == "true"
	}
	return o
}

func (c *SyncController) syncItem(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	out, err := c.UC.SyncItem(ctx.Request.Context(), id, c.opts(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out.Success = out.Succeeded()
	code := http.StatusOK
	if !out.Success {
		code = http.StatusBadGateway
	}
	ctx.JSON(code, out)
}

func (c *SyncController) syncStale(ctx *gin.Context) {
	limit := c.StaleLimit
	if q := ctx.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	synced, failed, err := c.UC.SyncStale(ctx.Request.Context(), limit, c.opts(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"synced": synced, "failed": failed})
}
