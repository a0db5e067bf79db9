package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/vetdiag/internal/export"
	"github.com/Skufu/vetdiag/internal/treatment"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) sendFile(c *gin.Context, name, contentType string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		s.log.Error("export failed", zap.String("file", name), zap.Error(err))
		abortWithError(c, errInternal)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) exportTopCSV(c *gin.Context) {
	n, ok := intQuery(c, "n", s.opts.TopN, 1, 100)
	if !ok {
		return
	}
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	top := treatment.TopDiagnoses(snap.Records, n)
	s.sendFile(c, "top_diagnoses.csv", "text/csv; charset=utf-8", func(w io.Writer) error {
		return export.WriteCountsCSV(w, "diagnosis", top)
	})
}

func (s *Server) exportTrendsCSV(c *gin.Context) {
	top, ok := intQuery(c, "top", s.opts.TopN, 0, 100)
	if !ok {
		return
	}
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	pivot := treatment.BuildPivot(snap.Records, top)
	s.sendFile(c, "trends.csv", "text/csv; charset=utf-8", func(w io.Writer) error {
		return export.WritePivotCSV(w, pivot)
	})
}

func (s *Server) exportWorkbook(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	report := export.BuildReport(snap.Records, snap.Report, s.opts.TopN)
	s.sendFile(c, "report.xlsx", xlsxContentType, func(w io.Writer) error {
		return export.WriteWorkbook(w, report)
	})
}
