package surveyhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pcm-survey/internal/eventing"
	"pcm-survey/internal/projection/echarts"
	"pcm-survey/internal/survey/application"
	survey "pcm-survey/internal/survey/domain"
)

const sampleCSV = "MEAS,SIGNAL,RID\n0,100,r1\n25,95,r1\n50,80,r1\n75,70,r1\n"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.New(&bytes.Buffer{}, "", 0)
	service, err := application.NewDatasetService(eventing.NewBus(), logger, survey.DefaultMetricConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewDatasetHandler(service, echarts.NewRenderer(), logger, 0)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/v1/datasets", handler)
	mux.Handle("/api/v1/datasets/", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func uploadCSV(t *testing.T, server *httptest.Server, body string) string {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/v1/datasets?filename=upload.csv", "text/csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status: want 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("upload response missing id")
	}
	return created.ID
}

func postCommand(t *testing.T, server *httptest.Server, id string, cmd application.Command) application.Result {
	t.Helper()
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	resp, err := http.Post(server.URL+"/api/v1/datasets/"+id+"/commands", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post command: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("command status: want 200, got %d", resp.StatusCode)
	}
	var res application.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return res
}

func TestUploadAndView(t *testing.T) {
	server := newTestServer(t)
	id := uploadCSV(t, server, sampleCSV)

	resp, err := http.Get(server.URL + "/api/v1/datasets/" + id + "/view")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view status: want 200, got %d", resp.StatusCode)
	}
	var view struct {
		ActiveRoute string `json:"activeRoute"`
		Points      []any  `json:"points"`
		Bars        []any  `json:"bars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.ActiveRoute != "r1" {
		t.Fatalf("active route: want r1, got %q", view.ActiveRoute)
	}
	if len(view.Points) != 4 || len(view.Bars) != 3 {
		t.Fatalf("view shape: %d points, %d bars", len(view.Points), len(view.Bars))
	}
}

func TestMultipartUpload(t *testing.T) {
	server := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(sampleCSV)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	resp, err := http.Post(server.URL+"/api/v1/datasets", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("multipart upload status: want 201, got %d", resp.StatusCode)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	server := newTestServer(t)
	id := uploadCSV(t, server, sampleCSV)

	res := postCommand(t, server, id, application.Command{
		Type: application.CmdSelectRectangle,
		Rect: &application.Rect{MinStation: 0, MaxStation: 100, MinValue: -100, MaxValue: 100},
	})
	if res.SelectedCount != 4 {
		t.Fatalf("expected 4 selected, got %d", res.SelectedCount)
	}

	res = postCommand(t, server, id, application.Command{Type: application.CmdCreateGroup, Name: "seg"})
	if res.Group == nil || res.Group.Name != "seg" {
		t.Fatalf("group creation failed: %+v", res)
	}
}

func TestValidationErrorsSurfaceAsWarnings(t *testing.T) {
	server := newTestServer(t)
	id := uploadCSV(t, server, sampleCSV)

	res := postCommand(t, server, id, application.Command{Type: application.CmdCreateGroup})
	if len(res.Warnings) == 0 {
		t.Fatalf("empty-selection group creation should warn, got %+v", res)
	}
}

func TestUploadErrors(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/v1/datasets?filename=upload.txt", "text/plain", strings.NewReader("MEAS\n0\n"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsupported extension: want 400, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/api/v1/datasets?filename=upload.csv", "text/csv", strings.NewReader("SIGNAL\n100\n"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing MEAS column: want 400, got %d", resp.StatusCode)
	}
}

func TestDatasetNotFound(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/v1/datasets/nope/view")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
}

func TestExportFormats(t *testing.T) {
	server := newTestServer(t)
	id := uploadCSV(t, server, sampleCSV)

	for format, wantType := range map[string]string{
		"csv":  "text/csv",
		"json": "application/json",
		"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"pdf":  "application/pdf",
	} {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/datasets/%s/export?format=%s", server.URL, id, format))
		if err != nil {
			t.Fatalf("export %s: %v", format, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("export %s status: want 200, got %d", format, resp.StatusCode)
		}
		if got := resp.Header.Get("Content-Type"); got != wantType {
			t.Fatalf("export %s content type: want %q, got %q", format, wantType, got)
		}
	}

	resp, err := http.Get(server.URL + "/api/v1/datasets/" + id + "/export?format=docx")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown format: want 400, got %d", resp.StatusCode)
	}
}

func TestChartPage(t *testing.T) {
	server := newTestServer(t)
	id := uploadCSV(t, server, sampleCSV)

	resp, err := http.Get(server.URL + "/api/v1/datasets/" + id + "/chart")
	if err != nil {
		t.Fatalf("get chart: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chart status: want 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Fatalf("chart content type: %q", got)
	}
}

func TestMethodChecks(t *testing.T) {
	server := newTestServer(t)
	id := uploadCSV(t, server, sampleCSV)

	resp, err := http.Get(server.URL + "/api/v1/datasets/" + id + "/commands")
	if err != nil {
		t.Fatalf("get commands: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET commands: want 405, got %d", resp.StatusCode)
	}
}
