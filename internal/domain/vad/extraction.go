package vad

import (
	"log/slog"
	"strings"
	"time"

	"github.com/sbnpy/clubsight/internal/domain/ingest/dates"
	"github.com/sbnpy/clubsight/internal/domain/ingest/resolver"
	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/report"
)

// ExtractionRoles the client-list export must resolve. The name role matches
// exactly: the export carries a single client-name column.
var ExtractionRoles = []resolver.Spec{
	{Role: resolver.RoleClientLastName, Aliases: []string{"nom du client", "nom"}, Exact: true, Required: true},
	{Role: resolver.RoleSubscription, Aliases: []string{"abonnement"}, Required: true},
	{Role: resolver.RoleBirthDate, Aliases: []string{"date de naissance", "naissance"}, Required: true},
}

// Subscription-label fragments identifying clients who already hold an
// option; matching is on the uppercased label.
const (
	accessFragment = "ACCESS+"
	waterFragment  = "WATERSTATION"
)

// youthAgeLimit bounds the prospection target of the third view: clients
// strictly younger than this many years.
const youthAgeLimit = 25

// ExtractionResult lists clients still missing an option, unique per client
// name, first occurrence wins.
type ExtractionResult struct {
	NoAccess     *report.Table // clients without Access+
	NoOptions    *report.Table // without Access+ nor Waterstation
	YoungNoWater *report.Table // without Waterstation and under the age limit

	NoAccessCount         int
	NoOptionsCount        int
	YoungNoWaterCount     int
	UnparseableBirthDates int
}

// Report flattens the extraction into exportable tables.
func (r *ExtractionResult) Report() *report.Report {
	rep := report.NewReport("extraction")
	rep.Add(r.NoAccess)
	rep.Add(r.NoOptions)
	rep.Add(r.YoungNoWater)
	if r.UnparseableBirthDates > 0 {
		rep.Warnf("%d lignes sans date de naissance exploitable", r.UnparseableBirthDates)
	}
	return rep
}

// Extract builds the three prospection views from a client list: clients
// without Access+, clients without any option, and clients under the age
// limit without Waterstation. Each view is unique per client name. Rows
// without a parseable birth date stay in the first two views but cannot
// qualify for the age-filtered one.
func (s *Service) Extract(t *table.RawTable, roles *resolver.RoleMap, reference time.Time) (*ExtractionResult, error) {
	nameLabel, err := roles.Column(resolver.RoleClientLastName)
	if err != nil {
		return nil, err
	}
	subLabel, err := roles.Column(resolver.RoleSubscription)
	if err != nil {
		return nil, err
	}
	birthLabel, err := roles.Column(resolver.RoleBirthDate)
	if err != nil {
		return nil, err
	}
	nameCol := t.ColumnIndex(nameLabel)
	subCol := t.ColumnIndex(subLabel)
	birthCol := t.ColumnIndex(birthLabel)

	res := &ExtractionResult{
		NoAccess:     report.NewTable("Sans Access+", "Client", "Abonnement"),
		NoOptions:    report.NewTable("Sans Access+ ni Waterstation", "Client", "Abonnement"),
		YoungNoWater: report.NewTable("Sans Waterstation -25 ans", "Client", "Abonnement", "Âge"),
	}
	noAccessSeen := make(map[string]struct{})
	noOptionsSeen := make(map[string]struct{})
	youngSeen := make(map[string]struct{})

	for row := range t.Rows {
		name := strings.TrimSpace(t.Cell(row, nameCol))
		if name == "" {
			continue
		}
		key := strings.ToUpper(name)
		sub := strings.TrimSpace(t.Cell(row, subCol))
		subUpper := strings.ToUpper(sub)
		hasAccess := strings.Contains(subUpper, accessFragment)
		hasWater := strings.Contains(subUpper, waterFragment)

		age := -1
		if birth, err := dates.Parse(t.Cell(row, birthCol)); err == nil {
			age = int(reference.Sub(birth).Hours()/24) / 365
		} else {
			res.UnparseableBirthDates++
		}

		if !hasAccess {
			if _, dup := noAccessSeen[key]; !dup {
				noAccessSeen[key] = struct{}{}
				res.NoAccess.AddRow(report.Str(name), report.Str(sub))
			}
			if !hasWater {
				if _, dup := noOptionsSeen[key]; !dup {
					noOptionsSeen[key] = struct{}{}
					res.NoOptions.AddRow(report.Str(name), report.Str(sub))
				}
			}
		}
		if !hasWater && age >= 0 && age < youthAgeLimit {
			if _, dup := youngSeen[key]; !dup {
				youngSeen[key] = struct{}{}
				res.YoungNoWater.AddRow(report.Str(name), report.Str(sub), report.Num(float64(age)))
			}
		}
	}

	res.NoAccessCount = len(noAccessSeen)
	res.NoOptionsCount = len(noOptionsSeen)
	res.YoungNoWaterCount = len(youngSeen)

	s.logger.Info("client extraction built",
		slog.Int("no_access", res.NoAccessCount),
		slog.Int("no_options", res.NoOptionsCount),
		slog.Int("young_no_waterstation", res.YoungNoWaterCount),
		slog.Int("unparseable_birth_dates", res.UnparseableBirthDates),
	)
	return res, nil
}
