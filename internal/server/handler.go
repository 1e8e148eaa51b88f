package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tomkat-cr/abstractgo/internal/apiclient"
	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/export"
)

type exportRequest struct {
	Sections  []string `json:"sections"`
	Format    string   `json:"format"`
	DateRange string   `json:"date_range"`
}

type errorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: status, Msg: msg})
}

func (s *Server) exportStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.exporter.Status())
}

func (s *Server) createExport(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sections, err := dashboard.ParseSections(req.Sections)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(sections) == 0 {
		fail(c, http.StatusBadRequest, (&export.Error{Reason: export.ReasonEmptySelection}).Error())
		return
	}
	format := s.defaultFormat
	if req.Format != "" {
		if format, err = export.ParseFormat(req.Format); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	art, err := s.exporter.FetchAndExport(c.Request.Context(), s.source, export.Selection{
		Sections:  sections,
		Format:    format,
		DateRange: req.DateRange,
	})
	if err != nil {
		status, msg := exportFailure(err)
		if status >= http.StatusInternalServerError {
			s.log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("export request failed")
		}
		fail(c, status, msg)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	c.Header("Content-Length", strconv.Itoa(len(art.Data)))
	c.Data(http.StatusOK, art.MIMEType, art.Data)
}

// exportFailure maps an export or fetch error to a status and message.
func exportFailure(err error) (int, string) {
	switch {
	case errors.Is(err, export.ErrExportInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, export.ErrEmptySelection), errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, export.ErrSerialization):
		return http.StatusInternalServerError, err.Error()
	}
	var netErr *apiclient.NetworkError
	var srvErr *apiclient.ServerError
	if errors.As(err, &netErr) || errors.As(err, &srvErr) {
		return http.StatusBadGateway, apiclient.Message(err)
	}
	return http.StatusBadGateway, err.Error()
}
