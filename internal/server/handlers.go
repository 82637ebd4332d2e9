package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sbnpy/clubsight/internal/domain/auth"
	"github.com/sbnpy/clubsight/internal/domain/clients"
	"github.com/sbnpy/clubsight/internal/domain/ingest/numeric"
	"github.com/sbnpy/clubsight/internal/domain/ingest/prober"
	"github.com/sbnpy/clubsight/internal/domain/ingest/resolver"
	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/margin"
	"github.com/sbnpy/clubsight/internal/domain/recovery"
	"github.com/sbnpy/clubsight/internal/domain/report"
	"github.com/sbnpy/clubsight/internal/domain/subscriptions"
	"github.com/sbnpy/clubsight/internal/domain/vad"
	"github.com/sbnpy/clubsight/internal/session"
	"github.com/sbnpy/clubsight/pkg/export"
)

const maxUploadBytes = 32 << 20

var knownViews = map[string]table.Layout{
	"ventes":       table.LayoutFlat,
	"recouvrement": table.LayoutFlat,
	"charges":      table.LayoutStackedHeader,
	"tbo":          table.LayoutFlat,
	"vad":          table.LayoutFlat,
	"extraction":   table.LayoutFlat,
	"clients":      table.LayoutFlat,
	"catalogue":    table.LayoutFlat,
}

type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode login: %w", err))
		return
	}
	if err := s.creds.Authenticate(req.User, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials)
		return
	}

	sess := s.sessions.Create(req.User)
	cookie, _ := s.cookies.New(r, s.cfg.Auth.CookieName)
	cookie.Values[sessionIDKey] = sess.ID.String()
	if err := cookie.Save(r, w); err != nil {
		s.sessions.Delete(sess.ID)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user": sess.User})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess *session.Context) {
	s.sessions.Delete(sess.ID)
	cookie, _ := s.cookies.Get(r, s.cfg.Auth.CookieName)
	cookie.Options.MaxAge = -1
	_ = cookie.Save(r, w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, sess *session.Context) {
	view := r.PathValue("view")
	layout, ok := knownViews[view]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown view %q", view))
		return
	}

	name, data, err := readUpload(r, "file")
	if err != nil {
		s.metrics.UploadErrors.WithLabelValues(view).Inc()
		writeError(w, http.StatusBadRequest, err)
		return
	}

	t, err := table.Load(name, data, layout, s.logger)
	if err != nil {
		s.metrics.UploadErrors.WithLabelValues(view).Inc()
		var unreadable *prober.UnreadableFileError
		if errors.As(err, &unreadable) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":   unreadable.Error(),
				"preview": unreadable.Preview,
			})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	sess.PutTable(view, t)
	s.metrics.Uploads.WithLabelValues(view).Inc()
	s.serveReport(w, r, view, t, false)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, sess *session.Context) {
	view := r.PathValue("view")
	t, ok := sess.Table(view)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no upload for view %q", view))
		return
	}
	s.serveReport(w, r, view, t, false)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *session.Context) {
	view := r.PathValue("view")
	t, ok := sess.Table(view)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no upload for view %q", view))
		return
	}
	s.serveReport(w, r, view, t, true)
}

func (s *Server) serveReport(w http.ResponseWriter, r *http.Request,
	view string, t *table.RawTable, asWorkbook bool) {

	ctx, span := s.tracer.Start(r.Context(), "analyze",
		trace.WithAttributes(attribute.String("view", view)))
	defer span.End()

	start := time.Now()
	rep, excluded, err := s.analyze(ctx, view, r, t)
	s.metrics.AnalysisTimer.WithLabelValues(view).Observe(time.Since(start).Seconds())
	if err != nil {
		var unresolvedSet *resolver.UnresolvedRolesError
		if errors.As(err, &unresolvedSet) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      err.Error(),
				"unresolved": unresolvedSet.Roles,
			})
			return
		}
		var unresolved *resolver.UnresolvedColumnError
		if errors.As(err, &unresolved) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": err.Error(),
				"role":  string(unresolved.Role),
			})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.metrics.ExcludedRows.WithLabelValues(view).Add(float64(excluded))

	if asWorkbook {
		s.serveWorkbook(w, view, rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// viewOrder fixes the sheet order of the global export.
var viewOrder = []string{
	"ventes", "recouvrement", "charges", "tbo", "vad", "extraction", "clients", "catalogue",
}

// handleExportAll re-runs every analysis the session has an upload for and
// combines the resulting tables into a single workbook.
func (s *Server) handleExportAll(w http.ResponseWriter, r *http.Request, sess *session.Context) {
	combined := report.NewReport("export_global")
	for _, view := range viewOrder {
		t, ok := sess.Table(view)
		if !ok {
			continue
		}
		rep, _, err := s.analyze(r.Context(), view, r, t)
		if err != nil {
			s.logger.Warn("global export skips view",
				slog.String("view", view),
				slog.String("error", err.Error()),
			)
			continue
		}
		combined.Tables = append(combined.Tables, rep.Tables...)
		combined.Warnings = append(combined.Warnings, rep.Warnings...)
	}
	if len(combined.Tables) == 0 {
		writeError(w, http.StatusNotFound, errors.New("no analysis to export"))
		return
	}
	s.serveWorkbook(w, "export_global", combined)
}

func (s *Server) serveWorkbook(w http.ResponseWriter, view string, rep *report.Report) {
	var buf bytes.Buffer
	if err := export.Write(&buf, rep); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", view))
	_, _ = w.Write(buf.Bytes())
}

// analyze dispatches the cached table to the view's analyzer and returns the
// report plus the number of rows or cells excluded during cleaning.
func (s *Server) analyze(ctx context.Context, view string, r *http.Request, t *table.RawTable) (*report.Report, int, error) {
	switch view {
	case "ventes":
		roles, err := requireRoles(t, subscriptions.Roles)
		if err != nil {
			return nil, 0, err
		}
		res, err := s.services.Subscriptions.Analyze(t, roles, subscriptions.Filter{
			Offers:       queryList(r, "offres"),
			Salespersons: queryList(r, "commerciaux"),
		})
		if err != nil {
			return nil, 0, err
		}
		return res.Report(), res.UndatedRows, nil

	case "recouvrement":
		roles, err := requireRoles(t, recovery.Roles)
		if err != nil {
			return nil, 0, err
		}
		res, err := s.services.Recovery.Analyze(t, roles)
		if err != nil {
			return nil, 0, err
		}
		return res.Report(), res.CoercedAmounts, nil

	case "charges":
		res, err := s.services.Expenses.Analyze(t)
		if err != nil {
			return nil, 0, err
		}
		return res.Report(), res.ExcludedCells, nil

	case "tbo":
		res, err := s.services.TBO.Analyze(t)
		if err != nil {
			return nil, 0, err
		}
		return res.Report(), 0, nil

	case "vad":
		roles, err := requireRoles(t, vad.Roles)
		if err != nil {
			return nil, 0, err
		}
		res, err := s.services.VAD.Analyze(t, roles, vad.Options{
			ExcludePromo: r.URL.Query().Get("exclude_promo") == "true",
		})
		if err != nil {
			return nil, 0, err
		}
		return res.Report(), res.ExcludedAmounts, nil

	case "extraction":
		roles, err := requireRoles(t, vad.ExtractionRoles)
		if err != nil {
			return nil, 0, err
		}
		res, err := s.services.VAD.Extract(t, roles, time.Now())
		if err != nil {
			return nil, 0, err
		}
		return res.Report(), res.UnparseableBirthDates, nil

	case "clients":
		roles, err := requireRoles(t, clients.Roles)
		if err != nil {
			return nil, 0, err
		}
		threshold := s.cfg.Analysis.InactivityDays
		if v := r.URL.Query().Get("seuil"); v != "" {
			threshold, err = strconv.Atoi(v)
			if err != nil {
				return nil, 0, fmt.Errorf("invalid threshold %q", v)
			}
		}
		res, err := s.services.Clients.Analyze(t, roles, time.Now(), threshold)
		if err != nil {
			return nil, 0, err
		}
		return res.Report(), res.Inactivity.Unparseable, nil

	case "catalogue":
		res, err := s.services.Catalog.Analyze(ctx, t)
		if err != nil {
			return nil, 0, err
		}
		return res.Report(), res.DroppedRows, nil
	}
	return nil, 0, fmt.Errorf("unknown view %q", view)
}

// handleMargin takes its inputs directly: sold quantities, turnover and up to
// two price catalogs, all as CSV files in one multipart request.
func (s *Server) handleMargin(w http.ResponseWriter, r *http.Request, _ *session.Context) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}

	quantities, err := soldProducts(r, "quantites", s)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	turnover, err := soldProducts(r, "ca", s)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	var catalogs [][]margin.CatalogEntry
	for _, field := range []string{"catalogue1", "catalogue2"} {
		_, data, err := readUpload(r, field)
		if err != nil {
			continue // the second catalog is optional
		}
		cat, err := margin.LoadCatalog(bytes.NewReader(data))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		catalogs = append(catalogs, cat)
	}
	if len(catalogs) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("at least one price catalog is required"))
		return
	}

	res, err := s.services.Margin.Analyze(quantities, turnover, catalogs...)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Report())
}

// soldProducts reads a two-column product/value CSV field.
func soldProducts(r *http.Request, field string, s *Server) ([]margin.SoldProduct, error) {
	name, data, err := readUpload(r, field)
	if err != nil {
		return nil, err
	}
	t, err := table.Load(name, data, table.LayoutFlat, s.logger)
	if err != nil {
		return nil, err
	}
	if len(t.Columns) < 2 {
		return nil, fmt.Errorf("%s: need product and value columns", field)
	}
	var out []margin.SoldProduct
	for i := range t.Rows {
		v := numeric.Normalize(t.Cell(i, 1))
		if !v.Valid {
			continue
		}
		out = append(out, margin.SoldProduct{Product: t.Cell(i, 0), Value: v.Float64})
	}
	return out, nil
}

func readUpload(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("missing file field %q", field)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

func requireRoles(t *table.RawTable, specs []resolver.Spec) (*resolver.RoleMap, error) {
	res := resolver.Resolve(t.Columns, specs)
	missing := res.MissingRequired(specs)
	if len(missing) == 0 {
		return res.Roles, nil
	}
	required := make(map[resolver.Role]struct{}, len(missing))
	for _, role := range missing {
		required[role] = struct{}{}
	}
	err := &resolver.UnresolvedRolesError{}
	for _, u := range res.Unresolved {
		if _, ok := required[u.Role]; ok {
			err.Roles = append(err.Roles, u)
		}
	}
	return nil, err
}

func queryList(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
