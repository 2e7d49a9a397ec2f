// internal/api/handlers/nfce_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/api/responses"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/core/emission"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"github.com/gin-gonic/gin"
)

// RetryAfterSeconds é o intervalo sugerido ao PDV após falha de comunicação.
const RetryAfterSeconds = 30

// NFCeHandler lida com as requisições de emissão, status e cancelamento.
type NFCeHandler struct {
	service         emission.Service
	defaultConfigID string
}

// NewNFCeHandler cria o handler. defaultConfigID é usado quando a requisição
// não informa config_id.
func NewNFCeHandler(service emission.Service, defaultConfigID string) *NFCeHandler {
	return &NFCeHandler{
		service:         service,
		defaultConfigID: defaultConfigID,
	}
}

type emitirRequest struct {
	PedidoID string `json:"pedido_id" binding:"required"`
	ConfigID string `json:"config_id"`
	CPFCNPJ  string `json:"cpf_cnpj"`
}

type cancelarRequest struct {
	PedidoID      string `json:"pedido_id" binding:"required"`
	ConfigID      string `json:"config_id"`
	Justificativa string `json:"justificativa" binding:"required"`
}

func (h *NFCeHandler) configID(id string) string {
	if id == "" {
		return h.defaultConfigID
	}
	return id
}

// HandleEmitir emite a NFC-e de um pedido pago.
func (h *NFCeHandler) HandleEmitir(c *gin.Context) {
	var req emitirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "Requisição inválida", err.Error())
		return
	}

	result, err := h.service.Emit(c.Request.Context(), emission.EmitRequest{
		OrderID:    req.PedidoID,
		ConfigID:   h.configID(req.ConfigID),
		ConsumerID: req.CPFCNPJ,
	})
	if err != nil {
		h.fail(c, result, "Falha ao emitir NFC-e", err)
		return
	}
	responses.Success(c, result, "NFC-e autorizada")
}

// HandleStatus consulta se o ACBrMonitor da configuração está acessível.
func (h *NFCeHandler) HandleStatus(c *gin.Context) {
	report, err := h.service.Status(c.Request.Context(), h.configID(c.Query("config_id")))
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Falha ao consultar status", err.Error())
		return
	}
	if report.Status == emission.StatusError {
		responses.ErrorWithData(c, http.StatusServiceUnavailable, report, "ACBrMonitor indisponível", report.Message)
		return
	}
	responses.Success(c, report, "")
}

// HandleCancelar cancela a NFC-e autorizada do pedido. Sem config_id, vale a
// configuração gravada na própria NFC-e.
func (h *NFCeHandler) HandleCancelar(c *gin.Context) {
	var req cancelarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "Requisição inválida", err.Error())
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), emission.CancelRequest{
		OrderID:       req.PedidoID,
		ConfigID:      req.ConfigID,
		Justification: req.Justificativa,
	})
	if err != nil {
		h.fail(c, result, "Falha ao cancelar NFC-e", err)
		return
	}
	responses.Success(c, result, "NFC-e cancelada")
}

// fail traduz os erros do domínio em status HTTP. O registro gravado segue
// no corpo para que o PDV mostre o motivo.
func (h *NFCeHandler) fail(c *gin.Context, result domain.EmissionResult, message string, err error) {
	var data interface{}
	if result.ID != "" {
		data = result
	}

	switch {
	case errors.Is(err, domain.ErrBusinessRejection):
		responses.ErrorWithData(c, http.StatusUnprocessableEntity, data, message, err.Error())
	case domain.IsRetryable(err):
		c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds))
		responses.ErrorWithData(c, http.StatusServiceUnavailable, data, message, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		responses.Error(c, http.StatusNotFound, message, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConfiguration):
		responses.Error(c, http.StatusBadRequest, message, err.Error())
	default:
		responses.ErrorWithData(c, http.StatusInternalServerError, data, message, err.Error())
	}
}
