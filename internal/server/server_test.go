package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sbnpy/clubsight/internal/domain/auth"
	"github.com/sbnpy/clubsight/internal/domain/catalog"
	"github.com/sbnpy/clubsight/internal/domain/clients"
	"github.com/sbnpy/clubsight/internal/domain/expenses"
	"github.com/sbnpy/clubsight/internal/domain/margin"
	"github.com/sbnpy/clubsight/internal/domain/recovery"
	"github.com/sbnpy/clubsight/internal/domain/subscriptions"
	"github.com/sbnpy/clubsight/internal/domain/tbo"
	"github.com/sbnpy/clubsight/internal/domain/vad"
	"github.com/sbnpy/clubsight/internal/session"
	"github.com/sbnpy/clubsight/pkg/config"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	cfg := &config.Config{
		Server: config.ServerConfig{
			RateLimitPerSecond: 1000,
			RateLimitBurst:     1000,
		},
		Auth: config.AuthConfig{
			CookieSecret: "test-secret",
			CookieName:   "clubsight_session",
		},
		Analysis: config.AnalysisConfig{InactivityDays: 30, ToleranceMAD: 1},
	}

	creds, err := auth.LoadStore(strings.NewReader("user,password\nfadwa,s3cret\n"), logger)
	require.NoError(t, err)

	svcs := Services{
		Subscriptions: subscriptions.NewService(logger),
		Recovery:      recovery.NewService(logger),
		Expenses:      expenses.NewService(logger),
		TBO:           tbo.NewService(logger),
		VAD:           vad.NewService(logger),
		Margin:        margin.NewService(logger),
		Catalog:       catalog.NewService(nil, logger),
		Clients:       clients.NewService(logger),
	}

	srv := New(cfg, creds, session.NewStore(time.Hour, logger), svcs, prometheus.NewRegistry(), logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return ts, &http.Client{Jar: jar}
}

func login(t *testing.T, ts *httptest.Server, client *http.Client, user, password string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{"user": user, "password": password})
	require.NoError(t, err)
	resp, err := client.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func uploadFile(t *testing.T, ts *httptest.Server, client *http.Client,
	path, field, filename string, content []byte) *http.Response {

	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := client.Post(ts.URL+path, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	ts, client := newTestServer(t)
	resp, err := client.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	ts, client := newTestServer(t)

	t.Run("wrong password", func(t *testing.T) {
		resp := login(t, ts, client, "fadwa", "wrong")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("success sets cookie", func(t *testing.T) {
		resp := login(t, ts, client, "fadwa", "s3cret")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "fadwa", body["user"])

		found := false
		for _, c := range resp.Cookies() {
			if c.Name == "clubsight_session" {
				found = true
				assert.True(t, c.HttpOnly)
				// The deployment is plain HTTP; a Secure cookie would never
				// come back and every later request would be rejected.
				assert.False(t, c.Secure)
			}
		}
		assert.True(t, found, "session cookie not set")
	})
}

func TestNew_SecureCookieFollowsBaseURL(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	creds, err := auth.LoadStore(strings.NewReader("user,password\nfadwa,s3cret\n"), logger)
	require.NoError(t, err)

	for baseURL, secure := range map[string]bool{
		"http://localhost:8080":   false,
		"https://bi.club.example": true,
	} {
		cfg := &config.Config{
			Server: config.ServerConfig{BaseURL: baseURL},
			Auth:   config.AuthConfig{CookieSecret: "test-secret", CookieName: "clubsight_session"},
		}
		srv := New(cfg, creds, session.NewStore(time.Hour, logger), Services{}, prometheus.NewRegistry(), logger)
		assert.Equal(t, secure, srv.cookies.Options.Secure, baseURL)
	}
}

func TestUpload_RequiresSession(t *testing.T) {
	ts, client := newTestServer(t)
	resp := uploadFile(t, ts, client, "/api/views/ventes/upload", "file", "ventes.csv",
		[]byte("Commercial;Date de création;Offre\n"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUploadReportExport(t *testing.T) {
	ts, client := newTestServer(t)
	login(t, ts, client, "fadwa", "s3cret").Body.Close()

	sales := []byte("Commercial;Date de création;Offre\n" +
		"Sara;01/07/2025;CDD12\n" +
		"Omar;02/07/2025;CDD12\n" +
		"Sara;03/07/2025;CDIAENG\n")

	t.Run("upload returns the report", func(t *testing.T) {
		resp := uploadFile(t, ts, client, "/api/views/ventes/upload", "file", "ventes.csv", sales)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rep struct {
			Name   string `json:"Name"`
			Tables []struct {
				Name string `json:"Name"`
			} `json:"Tables"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
		assert.Equal(t, "abonnements", rep.Name)
		require.NotEmpty(t, rep.Tables)
		assert.Equal(t, "Tableau Club", rep.Tables[0].Name)
	})

	t.Run("report replays the cached upload", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/views/ventes/report")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("export streams a workbook", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/views/ventes/export")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "ventes.xlsx")
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("report for a view without upload", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/views/tbo/report")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUpload_Errors(t *testing.T) {
	ts, client := newTestServer(t)
	login(t, ts, client, "fadwa", "s3cret").Body.Close()

	t.Run("unknown view", func(t *testing.T) {
		resp := uploadFile(t, ts, client, "/api/views/inconnu/upload", "file", "x.csv", []byte("a;b\n"))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unreadable file carries a preview", func(t *testing.T) {
		resp := uploadFile(t, ts, client, "/api/views/ventes/upload", "file", "vide.csv", nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Contains(t, body, "preview")
	})

	t.Run("missing required columns list every unresolved role", func(t *testing.T) {
		resp := uploadFile(t, ts, client, "/api/views/ventes/upload", "file", "ventes.csv",
			[]byte("Client;Montant\nBenali;100\n"))
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var body struct {
			Error      string `json:"error"`
			Unresolved []struct {
				Role        string   `json:"Role"`
				Suggestions []string `json:"Suggestions"`
			} `json:"unresolved"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.NotEmpty(t, body.Error)
		// All three sales roles are missing.
		require.Len(t, body.Unresolved, 3)
		roles := make([]string, 0, 3)
		for _, u := range body.Unresolved {
			roles = append(roles, u.Role)
		}
		assert.ElementsMatch(t, []string{"offer_name", "creation_date", "salesperson"}, roles)
	})
}

func TestExtractionUpload(t *testing.T) {
	ts, client := newTestServer(t)
	login(t, ts, client, "fadwa", "s3cret").Body.Close()

	extraction := []byte("Nom;Abonnement;Date de naissance\n" +
		"Benali Aïcha;Essential;12/03/2004\n" +
		"Tazi Omar;Essential Access+;05/11/1990\n" +
		"Alami Nadia;Ultimate Waterstation;20/06/2003\n")

	resp := uploadFile(t, ts, client, "/api/views/extraction/upload", "file", "clients.csv", extraction)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep struct {
		Name   string `json:"Name"`
		Tables []struct {
			Name string   `json:"Name"`
			Rows [][]struct {
				Text string `json:"Text"`
			} `json:"Rows"`
		} `json:"Tables"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, "extraction", rep.Name)
	require.Len(t, rep.Tables, 3)
	assert.Equal(t, "Sans Access+", rep.Tables[0].Name)
	// Benali and Alami miss Access+; Tazi holds it.
	require.Len(t, rep.Tables[0].Rows, 2)
	assert.Equal(t, "Benali Aïcha", rep.Tables[0].Rows[0][0].Text)
}

func TestExportAll(t *testing.T) {
	ts, client := newTestServer(t)
	login(t, ts, client, "fadwa", "s3cret").Body.Close()

	t.Run("nothing cached", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/export")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("combines every cached view", func(t *testing.T) {
		uploadFile(t, ts, client, "/api/views/ventes/upload", "file", "ventes.csv",
			[]byte("Commercial;Date de création;Offre\nSara;01/07/2025;CDD12\n")).Body.Close()
		uploadFile(t, ts, client, "/api/views/extraction/upload", "file", "clients.csv",
			[]byte("Nom;Abonnement;Date de naissance\nBenali Aïcha;Essential;12/03/2004\n")).Body.Close()

		resp, err := client.Get(ts.URL + "/api/export")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "export_global.xlsx")

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		wb, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer wb.Close()

		sheets := wb.GetSheetList()
		assert.Contains(t, sheets, "Tableau Club")
		assert.Contains(t, sheets, "Sans Access+")
	})
}

func TestMarginEndpoint(t *testing.T) {
	ts, client := newTestServer(t)
	login(t, ts, client, "fadwa", "s3cret").Body.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range map[string]string{
		"quantites":  "Produit;Quantité\nSHAKER;10\n",
		"ca":         "Produit;CA\nSHAKER;500\n",
		"catalogue1": "Produit,PrixAchat\nSHAKER,20\n",
	} {
		part, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := client.Post(ts.URL+"/api/views/marge/analyze", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep struct {
		Tables []struct {
			Name string `json:"Name"`
			Rows [][]struct {
				Number float64 `json:"Number"`
			} `json:"Rows"`
		} `json:"Tables"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	require.Len(t, rep.Tables, 1)
	assert.Equal(t, "Marge Produits", rep.Tables[0].Name)
	require.Len(t, rep.Tables[0].Rows, 1)
	// Last column is the total margin: (500/10 - 20) * 10.
	row := rep.Tables[0].Rows[0]
	assert.InDelta(t, 300, row[len(row)-1].Number, 1e-9)
}

func TestMargin_RequiresCatalog(t *testing.T) {
	ts, client := newTestServer(t)
	login(t, ts, client, "fadwa", "s3cret").Body.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, field := range []string{"quantites", "ca"} {
		part, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte("Produit;Valeur\nSHAKER;10\n"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := client.Post(ts.URL+"/api/views/marge/analyze", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	ts, client := newTestServer(t)
	login(t, ts, client, "fadwa", "s3cret").Body.Close()

	resp, err := client.Post(ts.URL+"/api/auth/logout", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The session is gone server-side.
	resp, err = client.Get(ts.URL + "/api/views/ventes/report")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
