package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/parasum-digital/sku-registro/internal/flow"
	"github.com/parasum-digital/sku-registro/internal/models"
	"github.com/parasum-digital/sku-registro/internal/scanner"
	"github.com/parasum-digital/sku-registro/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	existentes map[string]bool
	inserted   []*models.SKURecord
}

func (f *fakeStore) ExistsBySKUAndNave(sku string, nave models.Nave) (bool, error) {
	return f.existentes[sku+"|"+string(nave)], nil
}

func (f *fakeStore) Insert(record *models.SKURecord) error {
	f.inserted = append(f.inserted, record)
	return nil
}

type fakeFetcher struct {
	records []models.SKURecord
}

func (f *fakeFetcher) GetRecent(limit int) ([]models.SKURecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testEnv struct {
	router *gin.Engine
	store  *fakeStore
	flows  flow.Store
}

func newTestEnv(t *testing.T, store services.SKUStore, fetcher services.RecentFetcher) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := testLogger()
	registro := services.NewRegistroService(store, nil, services.NewFotoService(800, 70, logger), logger)
	historial := services.NewHistorialService(fetcher, nil, 5, 30*time.Second, logger)
	registry := scanner.NewRegistry(2*time.Minute, logger)
	flows := flow.NewMemoryStore(30 * time.Minute)

	handler := NewAPI(registro, historial, registry, flows, logger)

	router := gin.New()
	v1 := router.Group("/v1")
	{
		v1.POST("/skus", handler.CreateSKU)
		v1.GET("/skus/recent", handler.GetRecent)

		scan := v1.Group("/scan/sessions")
		{
			scan.POST("", handler.OpenScanSession)
			scan.POST("/:id/frames", handler.PushScanFrame)
			scan.DELETE("/:id", handler.CloseScanSession)
		}

		sesiones := v1.Group("/registro/sessions")
		{
			sesiones.POST("", handler.CreateRegistroSession)
			sesiones.GET("/:id", handler.GetRegistroSession)
			sesiones.POST("/:id/transition", handler.TransitionRegistro)
			sesiones.PUT("/:id/draft", handler.PutDraft)
		}
	}

	env := &testEnv{router: router, flows: flows}
	if fs, ok := store.(*fakeStore); ok {
		env.store = fs
	}
	return env
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func skuValido() map[string]interface{} {
	return map[string]interface{}{
		"sku":         "A100",
		"descripcion": "Caja",
		"nave":        "PL2",
		"max_apilado": "3",
	}
}

func TestCreateSKUOk(t *testing.T) {
	store := &fakeStore{}
	env := newTestEnv(t, store, nil)

	w := env.doJSON(t, http.MethodPost, "/v1/skus", skuValido())
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.CreateSKUResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "A100", resp.SKU)
	require.Equal(t, models.NavePL2, resp.Nave)
	require.Nil(t, resp.FotoURL)
	require.Len(t, store.inserted, 1)
}

func TestCreateSKUCamposObligatorios(t *testing.T) {
	store := &fakeStore{}
	env := newTestEnv(t, store, nil)

	body := skuValido()
	body["sku"] = ""
	body["max_apilado"] = ""

	w := env.doJSON(t, http.MethodPost, "/v1/skus", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "sku")
	require.Contains(t, w.Body.String(), "max_apilado")
	require.Empty(t, store.inserted)
}

func TestCreateSKUDuplicado(t *testing.T) {
	store := &fakeStore{existentes: map[string]bool{"A100|PL2": true}}
	env := newTestEnv(t, store, nil)

	w := env.doJSON(t, http.MethodPost, "/v1/skus", skuValido())
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "A100")
	require.Empty(t, store.inserted)
}

func TestCreateSKUSinBackend(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.doJSON(t, http.MethodPost, "/v1/skus", skuValido())
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "SUPABASE_URL")
}

func TestGetRecentSinBackend(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.doJSON(t, http.MethodGet, "/v1/skus/recent", nil)
	require.Equal(t, http.StatusOK, w.Code, "el dashboard nunca responde 5xx")

	var resp models.HistorialResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Configurado)
	require.Empty(t, resp.Items)
	require.Equal(t, services.MensajeSinDatos, resp.Mensaje)
}

func TestGetRecentConDatos(t *testing.T) {
	fetcher := &fakeFetcher{records: []models.SKURecord{
		{SKU: "A100", Nave: models.NavePL2, FechaRegistro: time.Now()},
		{SKU: "B200", Nave: models.NavePL3, FechaRegistro: time.Now()},
	}}
	env := newTestEnv(t, &fakeStore{}, fetcher)

	w := env.doJSON(t, http.MethodGet, "/v1/skus/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HistorialResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Configurado)
	require.Len(t, resp.Items, 2)
	require.Equal(t, 1, resp.ConteoPorNave[models.NavePL2])
	require.Equal(t, 1, resp.ConteoPorNave[models.NavePL3])
}

func TestRegistroSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, &fakeStore{}, nil)

	w := env.doJSON(t, http.MethodPost, "/v1/registro/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var sesion flow.Sesion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sesion))
	require.Equal(t, flow.StateDashboard, sesion.Estado)

	base := "/v1/registro/sessions/" + sesion.ID.String()

	// Entrar al formulario
	w = env.doJSON(t, http.MethodPost, base+"/transition", gin.H{"evento": "start_registration"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"form"`)
	require.Contains(t, w.Body.String(), `"refresh":false`)

	// Guardar el borrador
	w = env.doJSON(t, http.MethodPut, base+"/draft", gin.H{"sku": "A100", "nave": "PL3"})
	require.Equal(t, http.StatusOK, w.Code)

	leida, err := env.flows.Get(context.Background(), sesion.ID)
	require.NoError(t, err)
	require.Equal(t, "A100", leida.Draft.SKU)

	// Alta exitosa: vuelve al dashboard y pide refresh
	w = env.doJSON(t, http.MethodPost, base+"/transition", gin.H{"evento": "save_success"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"refresh":true`)

	leida, err = env.flows.Get(context.Background(), sesion.ID)
	require.NoError(t, err)
	require.Equal(t, flow.StateDashboard, leida.Estado)
	require.Nil(t, leida.Draft, "el borrador se descarta al guardar")
}

func TestTransicionInvalida(t *testing.T) {
	env := newTestEnv(t, &fakeStore{}, nil)

	w := env.doJSON(t, http.MethodPost, "/v1/registro/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var sesion flow.Sesion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sesion))

	// cancel desde el dashboard no aplica
	w = env.doJSON(t, http.MethodPost, "/v1/registro/sessions/"+sesion.ID.String()+"/transition", gin.H{"evento": "cancel"})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestPutDraftFueraDelFormulario(t *testing.T) {
	env := newTestEnv(t, &fakeStore{}, nil)

	w := env.doJSON(t, http.MethodPost, "/v1/registro/sessions", nil)
	var sesion flow.Sesion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sesion))

	w = env.doJSON(t, http.MethodPut, "/v1/registro/sessions/"+sesion.ID.String()+"/draft", gin.H{"sku": "A100"})
	require.Equal(t, http.StatusConflict, w.Code, "el borrador solo existe dentro del formulario")
}

func TestRegistroSessionInexistente(t *testing.T) {
	env := newTestEnv(t, &fakeStore{}, nil)

	w := env.doJSON(t, http.MethodGet, "/v1/registro/sessions/00000000-0000-0000-0000-000000000001", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.doJSON(t, http.MethodGet, "/v1/registro/sessions/no-es-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func frameMultipart(t *testing.T, codigo string) (*bytes.Buffer, string) {
	t.Helper()
	matrix, err := oned.NewCode128Writer().Encode(codigo, gozxing.BarcodeFormat_CODE_128, 400, 120, nil)
	require.NoError(t, err)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, matrix))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("frame", "frame.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func TestScanSessionEntregaYLibera(t *testing.T) {
	env := newTestEnv(t, &fakeStore{}, nil)

	w := env.doJSON(t, http.MethodPost, "/v1/scan/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var sesion scanner.Sesion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sesion))

	body, contentType := frameMultipart(t, "7791234567890")
	req := httptest.NewRequest(http.MethodPost, "/v1/scan/sessions/"+sesion.ID.String()+"/frames", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"decodificado":true`)
	require.Contains(t, rec.Body.String(), "7791234567890")

	// La sesión quedó liberada: el siguiente frame ya no se entrega
	body, contentType = frameMultipart(t, "7791234567890")
	req = httptest.NewRequest(http.MethodPost, "/v1/scan/sessions/"+sesion.ID.String()+"/frames", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanVuelcaCodigoAlBorrador(t *testing.T) {
	env := newTestEnv(t, &fakeStore{}, nil)

	// Sesión de registro en el formulario
	w := env.doJSON(t, http.MethodPost, "/v1/registro/sessions", nil)
	var registro flow.Sesion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registro))
	w = env.doJSON(t, http.MethodPost, "/v1/registro/sessions/"+registro.ID.String()+"/transition", gin.H{"evento": "start_registration"})
	require.Equal(t, http.StatusOK, w.Code)

	// Sesión de escaneo asociada
	w = env.doJSON(t, http.MethodPost, "/v1/scan/sessions", nil)
	var scan scanner.Sesion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scan))

	body, contentType := frameMultipart(t, "7791234567890")
	url := fmt.Sprintf("/v1/scan/sessions/%s/frames?registro=%s", scan.ID, registro.ID)
	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	leida, err := env.flows.Get(context.Background(), registro.ID)
	require.NoError(t, err)
	require.Equal(t, "7791234567890", leida.Draft.SKU)
	require.False(t, leida.Draft.EscaneoPendiente)
}

func TestScanCloseSession(t *testing.T) {
	env := newTestEnv(t, &fakeStore{}, nil)

	w := env.doJSON(t, http.MethodPost, "/v1/scan/sessions", nil)
	var sesion scanner.Sesion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sesion))

	w = env.doJSON(t, http.MethodDelete, "/v1/scan/sessions/"+sesion.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.doJSON(t, http.MethodDelete, "/v1/scan/sessions/"+sesion.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestScanFrameIlegible(t *testing.T) {
	env := newTestEnv(t, &fakeStore{}, nil)

	w := env.doJSON(t, http.MethodPost, "/v1/scan/sessions", nil)
	var sesion scanner.Sesion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sesion))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("frame", "frame.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("no es una imagen"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/scan/sessions/"+sesion.ID.String()+"/frames", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	// La sesión sigue viva para reintentar o cerrar
	w = env.doJSON(t, http.MethodDelete, "/v1/scan/sessions/"+sesion.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateSKUJSONInvalido(t *testing.T) {
	env := newTestEnv(t, &fakeStore{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/skus", strings.NewReader("{no es json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
