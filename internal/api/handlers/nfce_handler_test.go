package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/api/responses"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/core/emission"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	emitResult   domain.EmissionResult
	emitErr      error
	statusReport emission.StatusReport
	statusErr    error
	cancelErr    error

	lastEmit   emission.EmitRequest
	lastStatus string
	lastCancel emission.CancelRequest
}

func (f *fakeService) Emit(_ context.Context, req emission.EmitRequest) (domain.EmissionResult, error) {
	f.lastEmit = req
	return f.emitResult, f.emitErr
}

func (f *fakeService) Status(_ context.Context, configID string) (emission.StatusReport, error) {
	f.lastStatus = configID
	return f.statusReport, f.statusErr
}

func (f *fakeService) Cancel(_ context.Context, req emission.CancelRequest) (domain.EmissionResult, error) {
	f.lastCancel = req
	return f.emitResult, f.cancelErr
}

func newRouter(svc emission.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewNFCeHandler(svc, "cfg-padrao")
	r := gin.New()
	r.POST("/nfce/emitir", h.HandleEmitir)
	r.GET("/nfce/status", h.HandleStatus)
	r.POST("/nfce/cancelar", h.HandleCancelar)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) responses.APIResponse {
	t.Helper()
	var resp responses.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleEmitirStatusCodes(t *testing.T) {
	saved := domain.EmissionResult{ID: "e-1", Number: 42, Status: domain.RecordRejected}

	tests := []struct {
		name       string
		err        error
		wantCode   int
		retryAfter string
		withData   bool
	}{
		{"autorizada", nil, http.StatusOK, "", true},
		{"rejeitada", fmt.Errorf("%w: Rejeicao: NCM inexistente", domain.ErrBusinessRejection), http.StatusUnprocessableEntity, "", true},
		{"timeout", fmt.Errorf("%w: i/o timeout", domain.ErrTimeout), http.StatusServiceUnavailable, "30", true},
		{"conexao recusada", fmt.Errorf("%w: connection refused", domain.ErrConnection), http.StatusServiceUnavailable, "30", true},
		{"pedido nao pago", fmt.Errorf("%w: status aberto", domain.ErrValidation), http.StatusBadRequest, "", false},
		{"nfce desativada", fmt.Errorf("%w: desativada", domain.ErrConfiguration), http.StatusBadRequest, "", false},
		{"pedido inexistente", fmt.Errorf("falha ao buscar pedido: %w", domain.ErrNotFound), http.StatusNotFound, "", false},
		{"erro inesperado", fmt.Errorf("firestore indisponível"), http.StatusInternalServerError, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{emitErr: tt.err}
			if tt.withData {
				svc.emitResult = saved
			}
			w := do(newRouter(svc), http.MethodPost, "/nfce/emitir", `{"pedido_id":"p-1","cpf_cnpj":"123.456.789-09"}`)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
			resp := decode(t, w)
			if tt.withData {
				assert.NotNil(t, resp.Data)
			} else {
				assert.Nil(t, resp.Data)
			}
			assert.Equal(t, "p-1", svc.lastEmit.OrderID)
			assert.Equal(t, "cfg-padrao", svc.lastEmit.ConfigID)
			assert.Equal(t, "123.456.789-09", svc.lastEmit.ConsumerID)
		})
	}
}

func TestHandleEmitirBadRequest(t *testing.T) {
	svc := &fakeService{}
	w := do(newRouter(svc), http.MethodPost, "/nfce/emitir", `{"config_id":"cfg-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", decode(t, w).Status)
	assert.Empty(t, svc.lastEmit.OrderID)
}

func TestHandleStatus(t *testing.T) {
	t.Run("conectado", func(t *testing.T) {
		svc := &fakeService{statusReport: emission.StatusReport{Status: emission.StatusConnected, Reply: "OK: Servico em Operacao"}}
		w := do(newRouter(svc), http.MethodGet, "/nfce/status?config_id=cfg-9", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "cfg-9", svc.lastStatus)
		assert.Contains(t, w.Body.String(), `"status":"connected"`)
	})

	t.Run("desativado", func(t *testing.T) {
		svc := &fakeService{statusReport: emission.StatusReport{Status: emission.StatusDisabled}}
		w := do(newRouter(svc), http.MethodGet, "/nfce/status", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "cfg-padrao", svc.lastStatus)
		assert.Contains(t, w.Body.String(), `"status":"disabled"`)
	})

	t.Run("erro", func(t *testing.T) {
		svc := &fakeService{statusReport: emission.StatusReport{Status: emission.StatusError, Message: "connection refused"}}
		w := do(newRouter(svc), http.MethodGet, "/nfce/status", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}

func TestHandleCancelar(t *testing.T) {
	svc := &fakeService{emitResult: domain.EmissionResult{ID: "e-1", Status: domain.RecordCancelled}}
	w := do(newRouter(svc), http.MethodPost, "/nfce/cancelar",
		`{"pedido_id":"p-1","config_id":"cfg-1","justificativa":"Cliente desistiu da compra"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cliente desistiu da compra", svc.lastCancel.Justification)
	assert.Equal(t, "cfg-1", svc.lastCancel.ConfigID)

	svc = &fakeService{cancelErr: fmt.Errorf("%w: justificativa curta", domain.ErrValidation)}
	w = do(newRouter(svc), http.MethodPost, "/nfce/cancelar", `{"pedido_id":"p-1","justificativa":"curta"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc = &fakeService{emitResult: domain.EmissionResult{ID: "e-1"}, cancelErr: fmt.Errorf("%w: Prazo de cancelamento superior", domain.ErrBusinessRejection)}
	w = do(newRouter(svc), http.MethodPost, "/nfce/cancelar", `{"pedido_id":"p-1","justificativa":"Cliente desistiu da compra"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, svc.lastCancel.ConfigID, "sem config_id vale a configuração da própria NFC-e")
}
