// Package api exposes the catalogue over HTTP with gin.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/listing"
	"github.com/goliatone/go-record-catalog/records"
	"github.com/rs/zerolog"
)

type RecordLister interface {
	List(ctx context.Context, params catalog.FilterParams, token string) (listing.Page, error)
}

type RecordWriter interface {
	Create(ctx context.Context, in records.CreateRecordInput) (catalog.Record, error)
	Update(ctx context.Context, id string, in records.UpdateRecordInput) (catalog.Record, error)
}

type OrderCreator interface {
	Create(ctx context.Context, in records.CreateOrderInput) (catalog.Order, error)
}

// Pinger checks a backing dependency for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Handler serves the record and order endpoints.
type Handler struct {
	lister RecordLister
	writer RecordWriter
	orders OrderCreator
	pinger Pinger
}

// NewHandler wires a Handler. pinger may be nil.
func NewHandler(lister RecordLister, writer RecordWriter, orders OrderCreator, pinger Pinger) *Handler {
	return &Handler{lister: lister, writer: writer, orders: orders, pinger: pinger}
}

// NewRouter builds an engine with the request id, access log and recovery
// middleware and the handler's routes mounted.
func NewRouter(h *Handler, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(logger), Recovery(logger))
	h.Register(r)
	return r
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)

	rec := r.Group("/records")
	{
		rec.GET("", h.listRecords)
		rec.POST("", h.createRecord)
		rec.PUT("/:id", h.updateRecord)
	}

	r.POST("/orders", h.createOrder)
}

type listRecordsQuery struct {
	Q        string `form:"q"`
	Artist   string `form:"artist"`
	Album    string `form:"album"`
	Format   string `form:"format"`
	Category string `form:"category"`
	Next     string `form:"next"`
}

func (h *Handler) listRecords(c *gin.Context) {
	var q listRecordsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, fmt.Errorf("%w: %v", catalog.ErrInvalid, err))
		return
	}

	params := catalog.FilterParams{
		Query:    q.Q,
		Artist:   q.Artist,
		Album:    q.Album,
		Format:   catalog.Format(q.Format),
		Category: catalog.Category(q.Category),
	}

	page, err := h.lister.List(c.Request.Context(), params, q.Next)
	if err != nil {
		writeError(c, err)
		return
	}
	if page.Records == nil {
		page.Records = []catalog.Record{}
	}

	body, err := json.Marshal(page)
	if err != nil {
		writeError(c, err)
		return
	}

	etag := pageETag(body)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// pageETag is a weak validator over the encoded page.
func pageETag(body []byte) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(body))
}

func (h *Handler) createRecord(c *gin.Context) {
	var in records.CreateRecordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, fmt.Errorf("%w: %v", catalog.ErrInvalid, err))
		return
	}

	record, err := h.writer.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handler) updateRecord(c *gin.Context) {
	var in records.UpdateRecordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, fmt.Errorf("%w: %v", catalog.ErrInvalid, err))
		return
	}

	record, err := h.writer.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) createOrder(c *gin.Context) {
	var in records.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, fmt.Errorf("%w: %v", catalog.ErrInvalid, err))
		return
	}

	order, err := h.orders.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) health(c *gin.Context) {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
