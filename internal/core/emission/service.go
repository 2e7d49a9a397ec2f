package emission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/core/acbr"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/core/document"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository é tudo o que a emissão precisa da camada de armazenamento.
type Repository interface {
	FetchEmitterConfig(ctx context.Context, id string) (domain.EmitterConfig, error)
	FetchPayableOrder(ctx context.Context, id string) (domain.FiscalOrder, error)
	PersistEmissionResult(ctx context.Context, orderID string, result domain.EmissionResult) error
}

// RecordFinder localiza a última tentativa gravada para um pedido. Usado no
// cancelamento e para recusar reemissão de pedido já autorizado.
type RecordFinder interface {
	FetchLatestResult(ctx context.Context, orderID string) (domain.EmissionResult, error)
}

type Sequencer interface {
	ReserveNext(ctx context.Context, configID string) (int64, error)
}

type Builder interface {
	Build(order domain.FiscalOrder, cfg domain.EmitterConfig, number int64, recipientID string) (*document.Document, error)
}

// Transport envia um comando ao ACBrMonitor e devolve a resposta bruta.
type Transport interface {
	Send(ctx context.Context, addr, command string) (string, error)
}

type Deps struct {
	Repository Repository
	Records    RecordFinder
	Sequencer  Sequencer
	Builder    Builder
	Transport  Transport
	Logger     *zap.Logger
	Now        func() time.Time
}

type EmitRequest struct {
	OrderID    string
	ConfigID   string
	ConsumerID string
}

type CancelRequest struct {
	OrderID       string
	ConfigID      string
	Justification string
}

// ConnectionStatus é o estado do ACBrMonitor visto pelo status endpoint.
type ConnectionStatus string

const (
	StatusConnected ConnectionStatus = "connected"
	StatusDisabled  ConnectionStatus = "disabled"
	StatusError     ConnectionStatus = "error"
)

type StatusReport struct {
	Status  ConnectionStatus `json:"status"`
	Reply   string           `json:"resposta,omitempty"`
	Message string           `json:"mensagem,omitempty"`
}

const (
	minJustification = 15
	maxJustification = 255
	statusReplyLimit = 200
	cancelBatch      = 1
)

type Service interface {
	Emit(ctx context.Context, req EmitRequest) (domain.EmissionResult, error)
	Status(ctx context.Context, configID string) (StatusReport, error)
	Cancel(ctx context.Context, req CancelRequest) (domain.EmissionResult, error)
}

type service struct {
	repo      Repository
	records   RecordFinder
	sequencer Sequencer
	builder   Builder
	transport Transport
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(deps Deps) Service {
	s := &service{
		repo:      deps.Repository,
		records:   deps.Records,
		sequencer: deps.Sequencer,
		builder:   deps.Builder,
		transport: deps.Transport,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Emit executa, em ordem e sem pular etapas: validação, reserva do número,
// montagem do INI, envio, interpretação e gravação do resultado.
//
// O erro é nil só quando a NFC-e foi autorizada. Rejeição embrulha
// domain.ErrBusinessRejection; falhas de rede embrulham domain.ErrConnection
// ou domain.ErrTimeout. Em todos esses casos o resultado já foi gravado e o
// número reservado fica consumido.
func (s *service) Emit(ctx context.Context, req EmitRequest) (domain.EmissionResult, error) {
	log := s.logger.With(zap.String("pedido_id", req.OrderID), zap.String("config_id", req.ConfigID))

	cfg, order, err := s.prepare(ctx, req)
	if err != nil {
		log.Warn("emissao recusada", zap.Error(err))
		return domain.EmissionResult{}, err
	}

	number, err := s.sequencer.ReserveNext(ctx, cfg.ID)
	if err != nil {
		return domain.EmissionResult{}, err
	}
	log = log.With(zap.Int64("numero", number))

	doc, err := s.builder.Build(order, cfg, number, req.ConsumerID)
	if err != nil {
		log.Error("falha ao montar NFC-e com numero ja reservado", zap.Error(err))
		return domain.EmissionResult{}, err
	}
	ini := doc.String()

	result := domain.EmissionResult{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		ConfigID:   cfg.ID,
		Number:     number,
		Series:     cfg.SeriesOrDefault(),
		ConsumerID: req.ConsumerID,
		RawRequest: ini,
		EmittedAt:  s.now().UTC(),
	}

	reply, sendErr := s.transport.Send(ctx, acbr.ResolveAddress(cfg.MiddlewareAddr), acbr.CreateAndSendCommand(ini, number))
	if sendErr != nil {
		result.Status = domain.RecordPending
		result.Outcome = domain.OutcomeConnectionError
		if errors.Is(sendErr, domain.ErrTimeout) {
			result.Outcome = domain.OutcomeTimeoutError
		}
		result.Message = sendErr.Error()
		log.Error("ACBrMonitor indisponivel", zap.String("outcome", string(result.Outcome)), zap.Error(sendErr))
		return s.finalize(ctx, log, result, sendErr)
	}

	result.RawReply = reply
	parsed := acbr.ParseReply(reply)
	result.StatusCode = parsed.StatusCode
	result.Message = parsed.Message
	result.XMLPath = parsed.XMLPath

	if parsed.Authorized {
		result.Status = domain.RecordAuthorized
		result.Outcome = domain.OutcomeAuthorized
		result.AccessKey = parsed.AccessKey
		result.ProtocolID = parsed.ProtocolID
		log.Info("NFC-e autorizada", zap.String("chave", result.AccessKey), zap.String("protocolo", result.ProtocolID))
		return s.finalize(ctx, log, result, nil)
	}

	if parsed.Kind == acbr.ReplyMalformed {
		log.Warn("resposta fora do formato esperado", zap.NamedError("protocolo", domain.ErrProtocol), zap.String("resposta", reply))
	}
	result.Status = domain.RecordRejected
	result.Outcome = domain.OutcomeRejected
	log.Warn("NFC-e rejeitada", zap.String("cstat", result.StatusCode), zap.String("motivo", result.Message))
	return s.finalize(ctx, log, result, fmt.Errorf("%w: %s", domain.ErrBusinessRejection, result.Message))
}

func (s *service) prepare(ctx context.Context, req EmitRequest) (domain.EmitterConfig, domain.FiscalOrder, error) {
	if req.OrderID == "" {
		return domain.EmitterConfig{}, domain.FiscalOrder{}, fmt.Errorf("%w: pedido não informado", domain.ErrValidation)
	}
	cfg, err := s.activeConfig(ctx, req.ConfigID)
	if err != nil {
		return domain.EmitterConfig{}, domain.FiscalOrder{}, err
	}

	order, err := s.repo.FetchPayableOrder(ctx, req.OrderID)
	if err != nil {
		return domain.EmitterConfig{}, domain.FiscalOrder{}, fmt.Errorf("falha ao buscar pedido %s: %w", req.OrderID, err)
	}
	if !order.Status.IsPaid() {
		return domain.EmitterConfig{}, domain.FiscalOrder{}, fmt.Errorf("%w: só é possível emitir NFC-e para pedidos pagos (status %q)", domain.ErrValidation, order.Status)
	}

	if s.records != nil {
		last, err := s.records.FetchLatestResult(ctx, req.OrderID)
		switch {
		case err == nil && last.Status == domain.RecordAuthorized:
			return domain.EmitterConfig{}, domain.FiscalOrder{}, fmt.Errorf("%w: pedido já possui NFC-e autorizada (chave %s)", domain.ErrValidation, last.AccessKey)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return domain.EmitterConfig{}, domain.FiscalOrder{}, fmt.Errorf("falha ao consultar emissões do pedido %s: %w", req.OrderID, err)
		}
	}
	return cfg, order, nil
}

func (s *service) activeConfig(ctx context.Context, configID string) (domain.EmitterConfig, error) {
	if configID == "" {
		return domain.EmitterConfig{}, fmt.Errorf("%w: configuração não informada", domain.ErrConfiguration)
	}
	cfg, err := s.repo.FetchEmitterConfig(ctx, configID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.EmitterConfig{}, fmt.Errorf("%w: NFC-e não configurada: %w", domain.ErrConfiguration, err)
	}
	if err != nil {
		return domain.EmitterConfig{}, fmt.Errorf("falha ao buscar configuração %s: %w", configID, err)
	}
	if !cfg.Active {
		return domain.EmitterConfig{}, fmt.Errorf("%w: NFC-e desativada na configuração %s", domain.ErrConfiguration, configID)
	}
	return cfg, nil
}

// finalize grava o resultado. Falha de gravação é devolvida junto com o
// resultado, sem esconder o erro de emissão original.
func (s *service) finalize(ctx context.Context, log *zap.Logger, result domain.EmissionResult, emitErr error) (domain.EmissionResult, error) {
	if err := s.repo.PersistEmissionResult(ctx, result.OrderID, result); err != nil {
		log.Error("falha ao gravar resultado da emissao", zap.Error(err))
		persistErr := fmt.Errorf("falha ao gravar resultado da NFC-e %d: %w", result.Number, err)
		if emitErr != nil {
			return result, errors.Join(emitErr, persistErr)
		}
		return result, persistErr
	}
	return result, emitErr
}

// Status consulta NFe.StatusServico. Qualquer resposta que não seja timeout
// ou erro de conexão indica ACBrMonitor acessível.
func (s *service) Status(ctx context.Context, configID string) (StatusReport, error) {
	cfg, err := s.activeConfig(ctx, configID)
	if errors.Is(err, domain.ErrConfiguration) {
		return StatusReport{Status: StatusDisabled}, nil
	}
	if err != nil {
		return StatusReport{Status: StatusError, Message: err.Error()}, err
	}

	reply, err := s.transport.Send(ctx, acbr.ResolveAddress(cfg.MiddlewareAddr), acbr.StatusCommand)
	if err != nil {
		s.logger.Warn("ACBrMonitor sem resposta", zap.String("config_id", configID), zap.Error(err))
		return StatusReport{Status: StatusError, Message: err.Error()}, nil
	}
	return StatusReport{Status: StatusConnected, Reply: truncate(reply, statusReplyLimit)}, nil
}

// Cancel cancela a NFC-e autorizada mais recente do pedido.
func (s *service) Cancel(ctx context.Context, req CancelRequest) (domain.EmissionResult, error) {
	justification := strings.Join(strings.Fields(req.Justification), " ")
	if n := utf8.RuneCountInString(justification); n < minJustification || n > maxJustification {
		return domain.EmissionResult{}, fmt.Errorf("%w: justificativa deve ter entre %d e %d caracteres", domain.ErrValidation, minJustification, maxJustification)
	}
	if s.records == nil {
		return domain.EmissionResult{}, fmt.Errorf("%w: consulta de NFC-e indisponível", domain.ErrConfiguration)
	}

	record, err := s.records.FetchLatestResult(ctx, req.OrderID)
	if err != nil {
		return domain.EmissionResult{}, fmt.Errorf("falha ao buscar NFC-e do pedido %s: %w", req.OrderID, err)
	}
	if record.Status != domain.RecordAuthorized {
		return record, fmt.Errorf("%w: só é possível cancelar NFC-e autorizada (status %s)", domain.ErrValidation, record.Status)
	}
	if record.AccessKey == "" {
		return record, fmt.Errorf("%w: chave de acesso não encontrada", domain.ErrValidation)
	}

	// O cancelamento vai para o mesmo emitente e ACBrMonitor da autorização.
	configID := req.ConfigID
	if record.ConfigID != "" {
		if configID != "" && configID != record.ConfigID {
			return record, fmt.Errorf("%w: NFC-e emitida pela configuração %s, não %s", domain.ErrValidation, record.ConfigID, configID)
		}
		configID = record.ConfigID
	}
	cfg, err := s.activeConfig(ctx, configID)
	if err != nil {
		return record, err
	}

	log := s.logger.With(zap.String("pedido_id", req.OrderID), zap.String("chave", record.AccessKey))
	command := acbr.CancelCommand(record.AccessKey, justification, digits(cfg.CNPJ), cancelBatch)
	reply, err := s.transport.Send(ctx, acbr.ResolveAddress(cfg.MiddlewareAddr), command)
	if err != nil {
		log.Error("falha ao enviar cancelamento", zap.Error(err))
		return record, err
	}

	parsed := acbr.ParseReply(reply)
	if parsed.Kind != acbr.ReplyOK {
		log.Warn("cancelamento rejeitado", zap.String("motivo", parsed.Message))
		return record, fmt.Errorf("%w: %s", domain.ErrBusinessRejection, parsed.Message)
	}

	record.Status = domain.RecordCancelled
	record.Message = "Cancelada: " + justification
	record.RawReply = reply
	if err := s.repo.PersistEmissionResult(ctx, req.OrderID, record); err != nil {
		log.Error("falha ao gravar cancelamento", zap.Error(err))
		return record, fmt.Errorf("NFC-e cancelada mas não gravada: %w", err)
	}
	log.Info("NFC-e cancelada")
	return record, nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
