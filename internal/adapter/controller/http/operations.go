package httpctrl

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
	reconcileuc "github.com/TheDarkKnight1989/archvd-sub000/internal/usecase/reconcile"
)

type SubmitService interface {
	Submit(ctx context.Context, in reconcileuc.SubmitInput) (ops.Operation, error)
}

type PollService interface {
	PollPending(ctx context.Context) (reconcileuc.PollStats, error)
}

type OperationReader interface {
	OperationByID(ctx context.Context, id uuid.UUID) (ops.Operation, error)
}

type OperationsController struct {
	Submit SubmitService
	Poll   PollService
	Ops    OperationReader
	Admin  gin.HandlerFunc
}

func (c *OperationsController) Register(r *gin.Engine) {
	r.POST("/operations", c.submit)
	r.GET("/operations/:id", c.get)
	admin := r.Group("/", c.adminMW())
	admin.POST("/operations/poll", c.poll)
}

func (c *OperationsController) adminMW() gin.HandlerFunc {
	if c.Admin != nil {
		return c.Admin
	}
	return func(*gin.Context) {}
}

type submitReq struct {
	CatalogItemID int64           `json:"catalog_item_id" binding:"required"`
	Provider      string          `json:"provider" binding:"required"`
	Kind          string          `json:"kind" binding:"required"`
	VariantID     int64           `json:"variant_id"`
	ListingID     string          `json:"listing_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

func (c *OperationsController) submit(ctx *gin.Context) {
	var req submitReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := c.Submit.Submit(ctx.Request.Context(), reconcileuc.SubmitInput{
		CatalogItemID: req.CatalogItemID,
		Provider:      req.Provider,
		Kind:          ops.Kind(req.Kind),
		VariantID:     req.VariantID,
		ListingID:     req.ListingID,
		Amount:        req.Amount,
		Currency:      req.Currency,
	})
	if err != nil {
		if errors.Is(err, ops.ErrActiveOperationExists) {
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, opResp(op))
}

func (c *OperationsController) get(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid operation id"})
		return
	}
	op, err := c.Ops.OperationByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "operation not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, opResp(op))
}

func opResp(op ops.Operation) gin.H {
	h := gin.H{
		"id":         op.ID,
		"provider":   op.Provider,
		"kind":       string(op.Kind),
		"status":     string(op.Status),
		"attempts":   op.Attempts,
		"created_at": op.CreatedAt,
	}
	if op.ProviderOperationID != "" {
		h["provider_operation_id"] = op.ProviderOperationID
	}
	if op.ListingID != nil {
		h["listing_id"] = *op.ListingID
	}
	if op.Amount.Valid {
		h["amount"] = op.Amount.Decimal
		h["currency"] = op.Currency
	}
	if op.FailureReason != "" {
		h["failure_reason"] = op.FailureReason
	}
	if op.CompletedAt != nil {
		h["completed_at"] = op.CompletedAt
	}
	return h
}

func (c *OperationsController) poll(ctx *gin.Context) {
	stats, err := c.Poll.PollPending(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}
