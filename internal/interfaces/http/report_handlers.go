package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportQuery represents query parameters for reports
type ReportQuery struct {
	Scope    string `form:"scope"`
	Currency string `form:"currency"`
}

// RateResponse is the result of a single rate lookup
type RateResponse struct {
	Source    string           `json:"source"`
	Target    string           `json:"target"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
	Available bool             `json:"available"`
}

// ReceiptResponse is a draft seeded from a receipt
type ReceiptResponse struct {
	Draft     entity.ExpenseDraft  `json:"draft"`
	Extracted *entity.ReceiptDraft `json:"extracted,omitempty"`
	Warning   string               `json:"warning,omitempty"`
}

// GetReport handles GET /api/reports
func (h *Handlers) GetReport(c *gin.Context) {
	req, err := h.reportRequest(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	report, err := h.services.Reports.Generate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, report)
}

// ExportReport handles GET /api/reports/export and returns an xlsx workbook
func (h *Handlers) ExportReport(c *gin.Context) {
	req, err := h.reportRequest(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// render fully before writing headers so failures still get a JSON body
	var buf bytes.Buffer
	report, err := h.services.Reports.Export(c.Request.Context(), req, &buf)
	if err != nil {
		h.respondError(c, err)
		return
	}

	name := fmt.Sprintf("expense_report_%s_%s.xlsx", report.Currency, report.GeneratedAt.Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handlers) reportRequest(c *gin.Context) (service.ReportRequest, error) {
	var q ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return service.ReportRequest{}, fmt.Errorf("%w: invalid query parameters", service.ErrValidation)
	}
	scope, err := service.ParseScope(q.Scope)
	if err != nil {
		return service.ReportRequest{}, err
	}
	return service.ReportRequest{
		ActorID:  currentActor(c).ID,
		Scope:    scope,
		Currency: q.Currency,
	}, nil
}

// GetRate handles GET /api/rates/:source/:target
func (h *Handlers) GetRate(c *gin.Context) {
	source := currency.NormalizeCode(c.Param("source"))
	target := currency.NormalizeCode(c.Param("target"))
	if !currency.ValidCode(source) || !currency.ValidCode(target) {
		fail(c, http.StatusBadRequest, "currency codes must be three letters")
		return
	}

	resp := RateResponse{Source: source, Target: target}
	if rate, found := h.services.Rates.GetRate(c.Request.Context(), source, target); found {
		resp.Rate = &rate
		resp.Available = true
	}
	ok(c, resp)
}

// CurrencyListResponse is the body of GET /api/currencies
type CurrencyListResponse struct {
	Available  bool                `json:"available"`
	Currencies []currency.Currency `json:"currencies"`
}

// ListCurrencies handles GET /api/currencies. An unavailable list is not an
// error: clients fall back to free-form codes.
func (h *Handlers) ListCurrencies(c *gin.Context) {
	resp := CurrencyListResponse{Currencies: []currency.Currency{}}
	if h.services.Currencies != nil {
		if list, found := h.services.Currencies.List(c.Request.Context()); found {
			resp.Available = true
			resp.Currencies = list
		}
	}
	ok(c, resp)
}

// ClearRateCache handles DELETE /api/rates/cache. With ?source= only that
// currency's table is dropped.
func (h *Handlers) ClearRateCache(c *gin.Context) {
	source := currency.NormalizeCode(c.Query("source"))
	if source == "" {
		h.services.RateCache.Clear()
		h.logger.Info("Rate cache cleared")
		ok(c, gin.H{"cleared": "all"})
		return
	}

	h.services.RateCache.Invalidate(source)
	h.logger.Info("Rate cache entry invalidated", "source", source)
	ok(c, gin.H{"cleared": source})
}

// ExtractReceipt handles POST /api/receipts/extract. The multipart form
// carries the receipt file plus optional manual fields used as fallback.
func (h *Handlers) ExtractReceipt(c *gin.Context) {
	file, header, err := c.Request.FormFile("receipt")
	if err != nil {
		fail(c, http.StatusBadRequest, "receipt file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, "failed to read receipt")
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, "receipt is too large")
		return
	}

	fallback, err := ExpenseRequest{
		Currency:    c.PostForm("currency"),
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
		Vendor:      c.PostForm("vendor"),
		Date:        c.PostForm("date"),
	}.draft()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if amount := c.PostForm("amount"); amount != "" {
		if fallback.Amount, err = decimal.NewFromString(amount); err != nil {
			fail(c, http.StatusBadRequest, "amount must be a number")
			return
		}
	}

	draft, extracted, warning := h.services.Receipts.SeedDraft(c.Request.Context(), data, receiptMimeType(header.Header.Get("Content-Type"), header.Filename, data), fallback)

	resp := ReceiptResponse{Draft: draft, Extracted: extracted}
	if warning {
		resp.Warning = "receipt could not be read, please enter the details manually"
	}
	ok(c, resp)
}

func receiptMimeType(declared, filename string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "application/pdf"
	}
	return http.DetectContentType(data)
}
