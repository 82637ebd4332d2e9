package table

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/sbnpy/clubsight/internal/domain/ingest/prober"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestMakeUnique(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{"no duplicates untouched", []string{"Nom", "Prénom"}, []string{"Nom", "Prénom"}},
		{"repeats get positional suffixes", []string{"Solde", "Solde", "Solde"}, []string{"Solde", "Solde_1", "Solde_2"}},
		{"first occurrence keeps its label", []string{"A", "B", "A"}, []string{"A", "B", "A_1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MakeUnique(tt.labels))
		})
	}
}

func TestLoadCSV_Flat(t *testing.T) {
	t.Run("semicolon file with accents", func(t *testing.T) {
		data := []byte("Nom;Prénom;Montant\nBenali;Aïcha;100\nTazi;Omar;200\n")
		tbl, err := LoadCSV(data, LayoutFlat, testLogger())
		require.NoError(t, err)
		assert.Equal(t, []string{"Nom", "Prénom", "Montant"}, tbl.Columns)
		require.Len(t, tbl.Rows, 2)
		assert.Equal(t, "Aïcha", tbl.Cell(0, 1))
	})

	t.Run("short rows are padded not dropped", func(t *testing.T) {
		data := []byte("A;B;C\n1;2\n1;2;3;4\n")
		tbl, err := LoadCSV(data, LayoutFlat, testLogger())
		require.NoError(t, err)
		require.Len(t, tbl.Rows, 2)
		assert.Equal(t, []string{"1", "2", ""}, tbl.Rows[0])
		assert.Equal(t, []string{"1", "2", "3"}, tbl.Rows[1])
		assert.Equal(t, 2, tbl.PaddedRows)
	})

	t.Run("windows-1252 bytes load", func(t *testing.T) {
		raw, err := charmap.Windows1252.NewEncoder().Bytes([]byte("Nom;Prénom\nX;Y\n"))
		require.NoError(t, err)
		tbl, loadErr := LoadCSV(raw, LayoutFlat, testLogger())
		require.NoError(t, loadErr)
		assert.Equal(t, "Prénom", tbl.Columns[1])
	})

	t.Run("utf-8 byte order mark is stripped from the header", func(t *testing.T) {
		data := append([]byte("\xef\xbb\xbf"), []byte("Nom;Prénom\nBenali;Aïcha\n")...)
		tbl, err := LoadCSV(data, LayoutFlat, testLogger())
		require.NoError(t, err)
		assert.Equal(t, []string{"Nom", "Prénom"}, tbl.Columns)
	})

	t.Run("single column header is unreadable", func(t *testing.T) {
		_, err := LoadCSV([]byte("justone\nvalue\n"), LayoutFlat, testLogger())
		var unreadable *prober.UnreadableFileError
		require.True(t, errors.As(err, &unreadable))
	})
}

func TestLoadCSV_Stacked(t *testing.T) {
	t.Run("header read from fourth and fifth line", func(t *testing.T) {
		data := []byte("Grand livre;\nExercice 2025;\n;\n" +
			"Libellé;Solde au 31/07/2025;Solde au 31/07/2025\n" +
			";Débit;Crédit\n" +
			"NETTOYAGE LOCAUX;100;0\n")
		tbl, err := LoadCSV(data, LayoutStackedHeader, testLogger())
		require.NoError(t, err)
		assert.Equal(t, []string{"Libellé", "Solde au 31/07/2025", "Solde au 31/07/2025_1"}, tbl.Columns)
		assert.Equal(t, []string{"", "Débit", "Crédit"}, tbl.SubHeader)
		require.Len(t, tbl.Rows, 1)
		assert.Equal(t, "NETTOYAGE LOCAUX", tbl.Cell(0, 0))
	})

	t.Run("too few rows is a shape error", func(t *testing.T) {
		_, err := LoadCSV([]byte("a;b\nc;d\ne;f\ng;h\n"), LayoutStackedHeader, testLogger())
		require.Error(t, err)
	})
}

func TestRawTable_Lookups(t *testing.T) {
	tbl := &RawTable{
		Columns: []string{"A", "B"},
		Rows:    [][]string{{"1", "2"}, {"3", "4"}},
	}

	assert.Equal(t, 1, tbl.ColumnIndex("B"))
	assert.Equal(t, -1, tbl.ColumnIndex("missing"))
	assert.Equal(t, "4", tbl.Cell(1, 1))
	assert.Equal(t, "", tbl.Cell(5, 0))
	assert.Equal(t, []string{"2", "4"}, tbl.Column(1))
}

func TestLoad_Dispatch(t *testing.T) {
	t.Run("txt goes through the csv path", func(t *testing.T) {
		tbl, err := Load("export.TXT", []byte("A;B\n1;2\n"), LayoutFlat, testLogger())
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, tbl.Columns)
	})

	t.Run("garbage xlsx is rejected", func(t *testing.T) {
		_, err := Load("export.xlsx", []byte("not a zip"), LayoutFlat, testLogger())
		require.Error(t, err)
	})
}
