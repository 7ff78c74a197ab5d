package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/service"
)

// MaxBodyBytes bounds write bodies and the in-memory part of multipart
// uploads. Inline data URIs count against it.
const MaxBodyBytes = 16 << 20

// Data wraps single-object responses.
type Data struct {
	Data any `json:"data"`
}

// DescribeEntity handles GET /cms/:entity/schema.
func (s *Server) DescribeEntity(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	schema, err := s.engine.Describe(c.Request.Context(), p, c.Param("entity"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

// ListEntities handles GET /cms/:entity?page=N&filters={json}.
func (s *Server) ListEntities(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params, err := listParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	res, err := s.engine.List(c.Request.Context(), p, c.Param("entity"), params)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func listParams(c *gin.Context) (service.ListParams, error) {
	params := service.ListParams{Page: 1}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return params, apperrors.BadRequest(apperrors.CodeInvalidRequestField, "page must be an integer").
				WithParams(map[string]interface{}{"field": "page"})
		}
		params.Page = page
	}
	if raw := c.Query("filters"); raw != "" {
		filters, err := decodeObject(bytes.NewReader([]byte(raw)))
		if err != nil {
			return params, apperrors.BadRequest(apperrors.CodeInvalidRequestField, "filters must be a JSON object").
				WithParams(map[string]interface{}{"field": "filters"})
		}
		params.Filters = filters
	}
	return params, nil
}

// GetEntity handles GET /cms/:entity/:id.
func (s *Server) GetEntity(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	res, err := s.engine.Get(c.Request.Context(), p, c.Param("entity"), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateEntity handles POST /cms/:entity.
func (s *Server) CreateEntity(c *gin.Context) {
	s.write(c, "", http.StatusCreated)
}

// UpdateEntity handles PUT /cms/:entity/:id.
func (s *Server) UpdateEntity(c *gin.Context) {
	s.write(c, c.Param("id"), http.StatusOK)
}

func (s *Server) write(c *gin.Context, id string, status int) {
	p, ok := principal(c)
	if !ok {
		return
	}
	payload, err := decodeObject(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(apperrors.New(apperrors.CodePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge))
			return
		}
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "request body must be a JSON object"))
		return
	}
	res, err := s.engine.Write(c.Request.Context(), p, c.Param("entity"), payload, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(status, res)
}

// DeleteEntity handles DELETE /cms/:entity/:id.
func (s *Server) DeleteEntity(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := s.engine.Delete(c.Request.Context(), p, c.Param("entity"), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAuditTrail handles GET /cms/:entity/:id/audit.
func (s *Server) GetAuditTrail(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	entries, err := s.engine.AuditTrail(c.Request.Context(), p, c.Param("entity"), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, Data{Data: entries})
}

// UploadFile handles POST /cms/:entity/upload with a multipart "file" part.
func (s *Server) UploadFile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(apperrors.ErrMissingRequiredFieldf("file"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInvalidRequestField, "unreadable upload", http.StatusBadRequest))
		return
	}
	defer f.Close()

	res, err := s.engine.Upload(c.Request.Context(), p, c.Param("entity"), fh.Filename, f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Search handles GET /cms/search?model=type&q=text&id=id.
func (s *Server) Search(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	typ := c.Query("model")
	if typ == "" {
		_ = c.Error(apperrors.ErrMissingRequiredFieldf("model"))
		return
	}
	hits, err := s.engine.Search(c.Request.Context(), p, typ, c.Query("q"), c.Query("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, Data{Data: hits})
}

// GetPermissions handles GET /cms/permissions.
func (s *Server) GetPermissions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.engine.Permissions(p))
}

// GetDashboard handles GET /cms/dashboard.
func (s *Server) GetDashboard(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	dash, err := s.engine.Dashboard(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// decodeObject reads one JSON object keeping numbers exact.
func decodeObject(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
