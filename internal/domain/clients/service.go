package clients

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sbnpy/clubsight/internal/domain/ingest/dates"
	"github.com/sbnpy/clubsight/internal/domain/ingest/resolver"
	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/report"
)

// Roles are the columns the client engine needs. The name roles are exact
// matches: "nom" as a substring would also hit "Prénom".
var Roles = []resolver.Spec{
	{Role: resolver.RoleClientLastName, Aliases: []string{"nom"}, Exact: true, Required: true},
	{Role: resolver.RoleClientFirstName, Aliases: []string{"prénom", "prenom"}, Exact: true, Required: true},
	{Role: resolver.RoleCreationDate, Aliases: []string{"date de création", "date creation"}, Required: true},
	{Role: resolver.RoleSalesperson, Aliases: []string{"commercial"}, Required: true},
}

// Result carries the deduplicated client base and its activity split.
type Result struct {
	Records    []Record
	Inactivity *InactivityReport
}

// Report renders the active and inactive client tables.
func (r *Result) Report() *report.Report {
	rep := report.NewReport("clients")
	rep.Add(clientTable("Clients actifs", r.Inactivity.Active))
	rep.Add(clientTable("Clients inactifs", r.Inactivity.Inactive))
	if r.Inactivity.Unparseable > 0 {
		rep.Warnf("%d lignes sans date exploitable", r.Inactivity.Unparseable)
	}
	return rep
}

func clientTable(name string, records []Record) *report.Table {
	sorted := append([]Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastSeen.After(sorted[j].LastSeen)
	})
	tbl := report.NewTable(name, "Client", "Dernière visite", "Commercial", "Transactions")
	for _, r := range sorted {
		tbl.AddRow(
			report.Str(r.Key),
			report.Str(r.LastSeen.Format("02/01/2006")),
			report.Str(r.Salesperson),
			report.Num(float64(r.Transactions)),
		)
	}
	return tbl
}

// Service turns a transaction table into unique client records.
type Service struct {
	logger *slog.Logger
}

// NewService wires the client engine.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Analyze collapses the table to one record per client and classifies
// activity against the reference date. Rows whose date cannot be parsed are
// excluded from dedupe and surfaced in the unparseable count.
func (s *Service) Analyze(t *table.RawTable, roles *resolver.RoleMap, reference time.Time, threshold int) (*Result, error) {
	cols, err := columnIndexes(t, roles,
		resolver.RoleClientLastName,
		resolver.RoleClientFirstName,
		resolver.RoleCreationDate,
		resolver.RoleSalesperson,
	)
	if err != nil {
		return nil, err
	}
	lastCol, firstCol, dateCol, sellerCol := cols[0], cols[1], cols[2], cols[3]

	var rows []TxRow
	var unparseable int
	for i := range t.Rows {
		ts, err := dates.Parse(t.Cell(i, dateCol))
		if err != nil {
			unparseable++
			continue
		}
		rows = append(rows, TxRow{
			Key:         NormalizeKey(t.Cell(i, lastCol), t.Cell(i, firstCol)),
			Timestamp:   ts,
			Salesperson: t.Cell(i, sellerCol),
			Index:       i,
		})
	}

	records := DedupeLatest(rows)
	inactivity, err := Inactivity(records, reference, threshold, unparseable)
	if err != nil {
		return nil, err
	}

	s.logger.Info("client base deduplicated",
		slog.Int("rows", len(t.Rows)),
		slog.Int("clients", len(records)),
		slog.Int("inactive", len(inactivity.Inactive)),
		slog.Int("unparseable", unparseable),
	)
	return &Result{Records: records, Inactivity: inactivity}, nil
}

func columnIndexes(t *table.RawTable, roles *resolver.RoleMap, want ...resolver.Role) ([]int, error) {
	out := make([]int, len(want))
	for i, role := range want {
		label, err := roles.Column(role)
		if err != nil {
			return nil, err
		}
		idx := t.ColumnIndex(label)
		if idx < 0 {
			return nil, fmt.Errorf("resolved column %q missing from table", label)
		}
		out[i] = idx
	}
	return out, nil
}
