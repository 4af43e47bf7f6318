package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-client/internal/repositories"
	"chat-client/internal/telemetry"
)

// ResourceHandler serves the schemaless collections (users, contacts, groups,
// discussions) with list filters in the field=value and field_like=value forms.
type ResourceHandler struct {
	resources repositories.ResourceRepository
	audit     *telemetry.AuditEmitter
}

func NewResourceHandler(resources repositories.ResourceRepository, audit *telemetry.AuditEmitter) *ResourceHandler {
	return &ResourceHandler{resources: resources, audit: audit}
}

// Register mounts the CRUD routes for every known collection.
func (h *ResourceHandler) Register(r gin.IRouter) {
	for name := range repositories.Collections {
		r.GET("/"+name, h.List(name))
		r.POST("/"+name, h.Create(name))
		r.GET("/"+name+"/:id", h.Get(name))
		r.PUT("/"+name+"/:id", h.Replace(name))
		r.PATCH("/"+name+"/:id", h.Merge(name))
		r.DELETE("/"+name+"/:id", h.Delete(name))
	}
}

func (h *ResourceHandler) List(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := parsePage(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		f := repositories.ResourceFilter{Equals: map[string]string{}, Like: map[string]string{}, Page: page}
		for key, values := range c.Request.URL.Query() {
			if strings.HasPrefix(key, "_") || key == "user_id" || len(values) == 0 {
				continue
			}
			if field, ok := strings.CutSuffix(key, "_like"); ok {
				f.Like[field] = values[0]
				continue
			}
			f.Equals[key] = values[0]
		}

		list, err := h.resources.List(c.Request.Context(), collection, f)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]any, 0, len(list))
		for _, raw := range list {
			out = append(out, raw)
		}
		c.JSON(http.StatusOK, out)
	}
}

func (h *ResourceHandler) Get(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := h.resources.Get(c.Request.Context(), collection, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
	}
}

func (h *ResourceHandler) Create(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := bindObject(c)
		if !ok {
			return
		}
		raw, err := h.resources.Create(c.Request.Context(), collection, body)
		if err != nil {
			writeError(c, err)
			return
		}
		h.audit.Write(c.Request.Context(), collection, stringField(body, "id"), "created", requestIDFromContext(c), userIDFromContext(c))
		c.Data(http.StatusCreated, "application/json; charset=utf-8", raw)
	}
}

func (h *ResourceHandler) Replace(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := bindObject(c)
		if !ok {
			return
		}
		raw, err := h.resources.Replace(c.Request.Context(), collection, c.Param("id"), body)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
	}
}

func (h *ResourceHandler) Merge(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := bindObject(c)
		if !ok {
			return
		}
		raw, err := h.resources.Merge(c.Request.Context(), collection, c.Param("id"), body)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
	}
}

func (h *ResourceHandler) Delete(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := h.resources.Delete(c.Request.Context(), collection, id); err != nil {
			writeError(c, err)
			return
		}
		h.audit.Write(c.Request.Context(), collection, id, "deleted", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{})
	}
}

func bindObject(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		badRequest(c, "body must be a json object")
		return nil, false
	}
	return body, true
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}
