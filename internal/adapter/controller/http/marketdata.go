package httpctrl

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	marketdatauc "github.com/TheDarkKnight1989/archvd-sub000/internal/usecase/marketdata"
)

type MarketDataService interface {
	GetFresh(ctx context.Context, variantID int64, ttl time.Duration) (marketdatauc.Result, error)
}

type MarketDataController struct {
	UC MarketDataService
}

func (c *MarketDataController) Register(r *gin.Engine) {
	r.GET("/market/variants/:id", c.get)
}

func (c *MarketDataController) get(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid variant id"})
		return
	}

	var ttl time.Duration
	if q := ctx.Query("ttl"); q != "" {
		ttl, err = time.ParseDuration(q)
		if err != nil || ttl <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
	}

	res, err := c.UC.GetFresh(ctx.Request.Context(), id, ttl)
	if err != nil {
		if errors.Is(err, marketdatauc.ErrNoLiveMarket) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, res)
}
