package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energypulse/internal/config"
	apierrors "energypulse/internal/errors"
	"energypulse/internal/infrastructure"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Telemetry.MetricsEnabled = false
	cfg.Telemetry.TracingEnabled = false
	cfg.Security.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newTestApp(t *testing.T) (*Application, *httptest.Server) {
	t.Helper()
	app, err := New(testConfig(t), infrastructure.NewLogger(io.Discard, "error"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	app.JobQueue.Start(ctx)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		srv.Close()
		_ = app.JobQueue.Stop(5 * time.Second)
		cancel()
	})
	return app, srv
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func upload(t *testing.T, url, datasetType, name, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/api/datasets/import?type="+datasetType, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func waitForJob(t *testing.T, url, id string) map[string]interface{} {
	t.Helper()
	var job map[string]interface{}
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/api/jobs/" + id)
		if err != nil {
			return false
		}
		job = map[string]interface{}{}
		decode(t, resp, &job)
		switch job["status"] {
		case "completed", "failed", "cancelled":
			return true
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
	return job
}

func TestNew_CreatesDirectories(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg, infrastructure.NewLogger(io.Discard, "error"))
	require.NoError(t, err)

	assert.DirExists(t, app.Paths.UploadsDir)
	assert.DirExists(t, app.Paths.ExportsDir)
	assert.Equal(t, ":8080", app.Server.Addr)
	assert.Equal(t, cfg.Server.MaxHeaderBytes, app.Server.MaxHeaderBytes)
	assert.Len(t, app.Registry.Types(), 5)
}

func TestNew_RejectsBadMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Processing.Mode = "sloppy"

	_, err := New(cfg, infrastructure.NewLogger(io.Discard, "error"))
	assert.Error(t, err)
}

func TestRouter_Health(t *testing.T) {
	_, srv := newTestApp(t)

	for _, path := range []string{"/api/health", "/api/health/live", "/api/health/ready", "/api/version"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	_, srv := newTestApp(t)

	resp, err := http.Get(srv.URL + "/api/nope")
	require.NoError(t, err)

	var problem map[string]interface{}
	decode(t, resp, &problem)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apierrors.TypeNotFound, problem["type"])
	assert.NotEmpty(t, problem["trace_id"])
}

func TestRouter_MetricsDisabled(t *testing.T) {
	_, srv := newTestApp(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_CORSPreflight(t *testing.T) {
	_, srv := newTestApp(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/datasets", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestImportAndAnalyze(t *testing.T) {
	_, srv := newTestApp(t)

	csv := "data;consumo;classe;regiao\n" +
		"01/01/2024;100;Residencial;Sudeste\n" +
		"02/01/2024;110;Residencial;Sudeste\n" +
		"03/01/2024;90;Comercial;Sul\n" +
		"04/01/2024;100;Comercial;Sul\n"

	resp := upload(t, srv.URL, "epe", "consumo.csv", csv)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var accepted map[string]interface{}
	decode(t, resp, &accepted)

	id, _ := accepted["datasetId"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/jobs/"+id, resp.Header.Get("Location"))

	job := waitForJob(t, srv.URL, id)
	require.Equal(t, "completed", job["status"], "job error: %v", job["error"])

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/datasets/" + id + "/metrics")
		require.NoError(t, err)
		var metrics map[string]interface{}
		decode(t, resp, &metrics)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 4, metrics["count"])
		assert.InDelta(t, 100.0, metrics["average"], 1e-9)
		assert.InDelta(t, 90.0, metrics["min"], 1e-9)
		assert.InDelta(t, 110.0, metrics["max"], 1e-9)
	})

	t.Run("export csv", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/datasets/" + id + "/export?format=csv")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "dados_consumo.csv")
		assert.Len(t, strings.Split(strings.TrimSpace(string(body)), "\n"), 5)
	})

	t.Run("listed", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/datasets")
		require.NoError(t, err)
		var list struct {
			Items []map[string]interface{} `json:"items"`
			Count int                      `json:"count"`
		}
		decode(t, resp, &list)
		assert.Equal(t, 1, list.Count)
	})

	t.Run("delete", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/datasets/"+id, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, err = http.Get(srv.URL + "/api/datasets/" + id)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestImport_UnknownType(t *testing.T) {
	_, srv := newTestApp(t)

	resp := upload(t, srv.URL, "solar", "x.csv", "data;consumo\n01/01/2024;1\n")
	var problem map[string]interface{}
	decode(t, resp, &problem)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apierrors.TypeUnknownDatasetType, problem["type"])
}

func TestStop(t *testing.T) {
	app, err := New(testConfig(t), infrastructure.NewLogger(io.Discard, "error"))
	require.NoError(t, err)
	app.JobQueue.Start(context.Background())

	assert.NoError(t, app.Stop(context.Background()))
}
