package handler

import (
	"fmt"
	"net/http"

	"github.com/fintrackhq/fintrack-go/internal/domain"
	"github.com/fintrackhq/fintrack-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Analytics
// ============================================================

func categoryRollupsHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/categories")
		defer span.End()

		f, err := parseRangeFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if v := r.URL.Query().Get("type"); v != "" {
			t := domain.CategoryType(v)
			if !t.Valid() {
				handleServiceError(w, &domain.ErrValidation{Field: "type", Message: "must be income or expense"}, logger)
				return
			}
			f.Type = t
		}

		rollups, err := svc.CategoryRollups(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rollups)
	}
}

func topExpensesHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/top-expenses")
		defer span.End()

		f, err := parseRangeFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		limit, err := parsePositiveIntParam(r, "limit", service.DefaultTopExpensesLimit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		top, err := svc.TopExpenses(ctx, f, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, top)
	}
}

func heatmapHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/heatmap")
		defer span.End()

		f, err := parseRangeFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cells, err := svc.Heatmap(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cells)
	}
}

func heatmapPeaksHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/heatmap/peaks")
		defer span.End()

		f, err := parseRangeFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		peaks, err := svc.HeatmapPeaks(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, peaks)
	}
}

func comparePeriodsHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/compare-periods")
		defer span.End()

		p1Start, err := parseRequiredDateParam(r, "period1Start")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		p1End, err := parseRequiredDateParam(r, "period1End")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		p2Start, err := parseRequiredDateParam(r, "period2Start")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		p2End, err := parseRequiredDateParam(r, "period2End")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		userID := UserIDFromContext(ctx)
		summaries, err := svc.ComparePeriods(ctx, userID, p1Start, p1End, p2Start, p2End)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func forecastHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/forecast")
		defer span.End()

		days, err := parsePositiveIntParam(r, "days", service.DefaultForecastDays)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		result, err := svc.Forecast(ctx, UserIDFromContext(ctx), days)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func trendsHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/trends")
		defer span.End()

		g := domain.Granularity(r.URL.Query().Get("period"))
		if g != "" && !g.Valid() {
			handleServiceError(w, &domain.ErrValidation{Field: "period", Message: "must be day, week or month"}, logger)
			return
		}

		buckets, err := svc.Trends(ctx, UserIDFromContext(ctx), g)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, buckets)
	}
}

func summaryHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/summary")
		defer span.End()

		f, err := parseRangeFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		totals, err := svc.Summary(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, totals)
	}
}

// ============================================================
// Exports
// ============================================================

func exportCSVHandler(svc *service.ExportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/export/csv")
		defer span.End()

		f, err := parseRangeFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		body, filename, err := svc.TransactionsCSV(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

func exportXLSXHandler(svc *service.ExportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/export/xlsx")
		defer span.End()

		f, err := parseRangeFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		body, filename, err := svc.TransactionsXLSX(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}
