package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hackgods/consultas-service/internal/api"
	"github.com/hackgods/consultas-service/internal/appointment"
	"github.com/hackgods/consultas-service/internal/logger"
	redisclient "github.com/hackgods/consultas-service/internal/redis"
)

const (
	insertPath = "/api/v1/consulta/inserir"
	listPath   = "/api/v1/consulta/listar"
	updatePath = "/api/v1/consulta/atualizar"
	deletePath = "/api/v1/consulta/excluir"
	resetPath  = "/api/v1/database/reset"
)

func newServer(t *testing.T, svc api.AppointmentService, checks ...api.ReadinessCheck) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Service: svc,
		Logger:  logger.Discard(),
		Checks:  checks,
		Env:     "test",
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newMemoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := appointment.NewMemoryRepository()
	if err := repo.ResetSchema(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	svc := appointment.NewService(repo, redisclient.NewLocalLocker(), logger.Discard(), 0)
	return newServer(t, svc, api.ReadinessCheck{Name: "postgres", Check: repo.Ping})
}

func doReq(t *testing.T, baseURL, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res, respBody
}

func payload(date, hour string) map[string]any {
	return map[string]any{
		"nome":             gofakeit.Name(),
		"data_nascimento":  gofakeit.Date().Format("2006-01-02"),
		"data_atendimento": date,
		"horario":          hour,
		"tipo":             gofakeit.RandomString([]string{"consulta", "retorno", "exame"}),
	}
}

func insert(t *testing.T, baseURL string, p map[string]any) appointment.Appointment {
	t.Helper()
	res, body := doReq(t, baseURL, http.MethodPost, insertPath, p)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 insert, got %d body=%s", res.StatusCode, body)
	}
	var a appointment.Appointment
	if err := json.Unmarshal(body, &a); err != nil {
		t.Fatalf("decode insert: %v", err)
	}
	return a
}

func list(t *testing.T, baseURL string) []appointment.Appointment {
	t.Helper()
	res, body := doReq(t, baseURL, http.MethodGet, listPath, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 list, got %d body=%s", res.StatusCode, body)
	}
	var out []appointment.Appointment
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode list: %v body=%s", err, body)
	}
	return out
}

func message(t *testing.T, body []byte) string {
	t.Helper()
	var m api.MessageResponse
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode message: %v body=%s", err, body)
	}
	return m.Message
}

func TestHTTP_InsertAndList(t *testing.T) {
	ts := newMemoryServer(t)

	p := payload("2024-01-02", "09:00")
	created := insert(t, ts.URL, p)

	if created.ID != 1 {
		t.Errorf("expected id 1, got %d", created.ID)
	}
	if created.Name != p["nome"] || created.BirthDate != p["data_nascimento"] ||
		created.AppointmentDate != "2024-01-02" || created.Time != "09:00" || created.Kind != p["tipo"] {
		t.Errorf("created record %+v does not match payload %v", created, p)
	}

	second := insert(t, ts.URL, payload("2024-01-01", "10:00"))
	if second.ID <= created.ID {
		t.Errorf("expected increasing ids, got %d then %d", created.ID, second.ID)
	}

	got := list(t, ts.URL)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != created.ID {
		t.Errorf("expected earlier appointment first, got %+v", got)
	}
}

func TestHTTP_ListEmptyIsArray(t *testing.T) {
	ts := newMemoryServer(t)

	_, body := doReq(t, ts.URL, http.MethodGet, listPath, nil)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("expected empty JSON array, got %s", body)
	}
}

func TestHTTP_InsertMissingFieldIs500(t *testing.T) {
	ts := newMemoryServer(t)

	p := payload("2024-01-01", "09:00")
	delete(p, "tipo")

	res, body := doReq(t, ts.URL, http.MethodPost, insertPath, p)
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.StatusCode)
	}
	if msg := message(t, body); msg != "Erro ao inserir consulta" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestHTTP_InvalidJSONIs400(t *testing.T) {
	ts := newMemoryServer(t)

	for _, path := range []string{insertPath, updatePath, deletePath} {
		res, _ := doReq(t, ts.URL, http.MethodPost, path, "{not json")
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, res.StatusCode)
		}
	}
}

func TestHTTP_Update(t *testing.T) {
	ts := newMemoryServer(t)
	created := insert(t, ts.URL, payload("2024-01-01", "09:00"))

	p := payload("2024-05-05", "15:30")
	p["id"] = created.ID
	res, body := doReq(t, ts.URL, http.MethodPost, updatePath, p)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", res.StatusCode, body)
	}

	var updated appointment.Appointment
	_ = json.Unmarshal(body, &updated)
	if updated.ID != created.ID || updated.AppointmentDate != "2024-05-05" || updated.Time != "15:30" || updated.Name != p["nome"] {
		t.Fatalf("unexpected updated record %+v", updated)
	}
}

func TestHTTP_UpdateAcceptsStringID(t *testing.T) {
	ts := newMemoryServer(t)
	created := insert(t, ts.URL, payload("2024-01-01", "09:00"))

	p := payload("2024-01-01", "11:00")
	p["id"] = "1"
	res, body := doReq(t, ts.URL, http.MethodPost, updatePath, p)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", res.StatusCode, body)
	}
	if got := list(t, ts.URL); got[0].ID != created.ID || got[0].Time != "11:00" {
		t.Fatalf("update did not apply: %+v", got)
	}
}

func TestHTTP_UpdateUnknownIDIs404(t *testing.T) {
	ts := newMemoryServer(t)

	tests := []struct {
		name string
		id   any
	}{
		{"unknown id", 999999},
		{"missing id", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := payload("2024-01-01", "09:00")
			if tt.id != nil {
				p["id"] = tt.id
			}
			res, body := doReq(t, ts.URL, http.MethodPost, updatePath, p)
			if res.StatusCode != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", res.StatusCode)
			}
			if msg := message(t, body); msg != "Consulta não encontrada" {
				t.Errorf("unexpected message %q", msg)
			}
		})
	}

	if got := list(t, ts.URL); len(got) != 0 {
		t.Fatalf("update must not create rows, got %d", len(got))
	}
}

func TestHTTP_DeleteWithoutIDIs400(t *testing.T) {
	ts := newMemoryServer(t)
	insert(t, ts.URL, payload("2024-01-01", "09:00"))

	bodies := []any{
		map[string]any{},
		map[string]any{"id": nil},
		map[string]any{"id": 0},
		map[string]any{"id": ""},
		"",
	}
	for _, b := range bodies {
		res, body := doReq(t, ts.URL, http.MethodPost, deletePath, b)
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("body %v: expected 400, got %d", b, res.StatusCode)
			continue
		}
		if msg := message(t, body); msg != "ID não fornecido" {
			t.Errorf("body %v: unexpected message %q", b, msg)
		}
	}

	if got := list(t, ts.URL); len(got) != 1 {
		t.Fatalf("table must be unchanged, got %d rows", len(got))
	}
}

func TestHTTP_Delete(t *testing.T) {
	ts := newMemoryServer(t)
	keep := insert(t, ts.URL, payload("2024-01-01", "09:00"))
	drop := insert(t, ts.URL, payload("2024-01-01", "10:00"))

	res, body := doReq(t, ts.URL, http.MethodPost, deletePath, map[string]any{"id": drop.ID})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", res.StatusCode, body)
	}
	if msg := message(t, body); msg != "Consulta excluída com sucesso" {
		t.Errorf("unexpected message %q", msg)
	}

	got := list(t, ts.URL)
	if len(got) != 1 || got[0].ID != keep.ID {
		t.Fatalf("expected only %d left, got %+v", keep.ID, got)
	}

	res, _ = doReq(t, ts.URL, http.MethodPost, deletePath, map[string]any{"id": drop.ID})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", res.StatusCode)
	}
}

func TestHTTP_ResetTwice(t *testing.T) {
	ts := newMemoryServer(t)
	for i := 0; i < 3; i++ {
		insert(t, ts.URL, payload("2024-01-01", "09:00"))
	}

	for i := 0; i < 2; i++ {
		res, body := doReq(t, ts.URL, http.MethodDelete, resetPath, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("reset %d: expected 200, got %d", i, res.StatusCode)
		}
		if msg := message(t, body); msg != "Banco de dados resetado com sucesso" {
			t.Errorf("unexpected message %q", msg)
		}
		if got := list(t, ts.URL); len(got) != 0 {
			t.Fatalf("reset %d: expected empty table, got %d rows", i, len(got))
		}
	}

	if a := insert(t, ts.URL, payload("2024-01-01", "09:00")); a.ID != 1 {
		t.Fatalf("expected id 1 after reset, got %d", a.ID)
	}
}

func TestHTTP_PreflightShortCircuits(t *testing.T) {
	svc := &failingService{}
	ts := newServer(t, svc)

	for _, path := range []string{insertPath, listPath, updatePath, deletePath, resetPath, "/unknown"} {
		res, body := doReq(t, ts.URL, http.MethodOptions, path, nil)
		if res.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, res.StatusCode)
		}
		if len(body) != 0 {
			t.Errorf("%s: expected empty body, got %q", path, body)
		}
		assertCORS(t, res)
	}

	if n := svc.calls.Load(); n != 0 {
		t.Fatalf("preflight must not reach handlers, got %d calls", n)
	}
}

func TestHTTP_CORSHeadersOnEveryResponse(t *testing.T) {
	ts := newMemoryServer(t)

	res, _ := doReq(t, ts.URL, http.MethodGet, listPath, nil)
	assertCORS(t, res)

	res, _ = doReq(t, ts.URL, http.MethodPost, deletePath, map[string]any{})
	assertCORS(t, res)
}

func assertCORS(t *testing.T, res *http.Response) {
	t.Helper()
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := res.Header.Get("Access-Control-Allow-Methods"); got != "GET,PUT,POST,DELETE,OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := res.Header.Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization, Content-Length, X-Requested-With" {
		t.Errorf("Access-Control-Allow-Headers = %q", got)
	}
}

func TestHTTP_StoreFailuresAre500(t *testing.T) {
	ts := newServer(t, &failingService{})

	tests := []struct {
		method, path string
		body         any
		message      string
	}{
		{http.MethodPost, insertPath, payload("2024-01-01", "09:00"), "Erro ao inserir consulta"},
		{http.MethodGet, listPath, nil, "Erro ao listar consultas"},
		{http.MethodPost, updatePath, map[string]any{"id": 1}, "Erro ao atualizar consulta"},
		{http.MethodPost, deletePath, map[string]any{"id": 1}, "Erro ao excluir consulta"},
		{http.MethodDelete, resetPath, nil, "Erro ao resetar o banco de dados"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, body := doReq(t, ts.URL, tt.method, tt.path, tt.body)
			if res.StatusCode != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", res.StatusCode)
			}
			if msg := message(t, body); msg != tt.message {
				t.Errorf("expected %q, got %q", tt.message, msg)
			}
			if strings.Contains(string(body), "connection refused") {
				t.Errorf("store cause leaked to client: %s", body)
			}
		})
	}
}

func TestHTTP_BeforeSchemaInitIs500(t *testing.T) {
	repo := appointment.NewMemoryRepository()
	svc := appointment.NewService(repo, redisclient.NewLocalLocker(), logger.Discard(), 0)
	ts := newServer(t, svc)

	res, _ := doReq(t, ts.URL, http.MethodGet, listPath, nil)
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 before the table exists, got %d", res.StatusCode)
	}
}

func TestHTTP_UnknownRouteIsJSON404(t *testing.T) {
	ts := newMemoryServer(t)

	res, body := doReq(t, ts.URL, http.MethodGet, "/api/v1/nope", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
	if message(t, body) == "" {
		t.Fatal("expected a message")
	}
}

func TestHTTP_Health(t *testing.T) {
	ts := newMemoryServer(t)

	res, _ := doReq(t, ts.URL, http.MethodGet, "/health/live", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 live, got %d", res.StatusCode)
	}

	res, body := doReq(t, ts.URL, http.MethodGet, "/health/ready", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 ready, got %d body=%s", res.StatusCode, body)
	}

	down := newServer(t, &failingService{}, api.ReadinessCheck{
		Name:  "postgres",
		Check: func(context.Context) error { return errors.New("down") },
	})
	res, body = doReq(t, down.URL, http.MethodGet, "/health/ready", nil)
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 ready, got %d body=%s", res.StatusCode, body)
	}
}

func TestHTTP_RateLimit(t *testing.T) {
	repo := appointment.NewMemoryRepository()
	_ = repo.ResetSchema(context.Background())
	svc := appointment.NewService(repo, redisclient.NewLocalLocker(), logger.Discard(), 0)
	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Service:        svc,
		Logger:         logger.Discard(),
		RateLimitRPS:   0.001,
		RateLimitBurst: 2,
	}))
	defer ts.Close()

	for i := 0; i < 2; i++ {
		res, _ := doReq(t, ts.URL, http.MethodGet, listPath, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, res.StatusCode)
		}
	}
	res, _ := doReq(t, ts.URL, http.MethodGet, listPath, nil)
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.StatusCode)
	}

	// preflights are answered before the limiter
	res, _ = doReq(t, ts.URL, http.MethodOptions, listPath, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 preflight, got %d", res.StatusCode)
	}
}

// failingService fails every call the way an unreachable store does.
type failingService struct {
	calls atomic.Int32
}

var errStore = &appointment.StoreError{Op: "query", Err: errors.New("connection refused")}

func (f *failingService) CreateAppointment(context.Context, appointment.Draft) (*appointment.Appointment, error) {
	f.calls.Add(1)
	return nil, errStore
}

func (f *failingService) ListAppointments(context.Context) ([]appointment.Appointment, error) {
	f.calls.Add(1)
	return nil, errStore
}

func (f *failingService) UpdateAppointment(context.Context, int64, appointment.Draft) (*appointment.Appointment, error) {
	f.calls.Add(1)
	return nil, errStore
}

func (f *failingService) DeleteAppointment(context.Context, int64) error {
	f.calls.Add(1)
	return errStore
}

func (f *failingService) ResetDatabase(context.Context) error {
	f.calls.Add(1)
	return errStore
}
