package numbering

import (
	"context"
	"fmt"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"go.uber.org/zap"
)

// Counter é o contador persistido de numeração. IncrementNext deve ler e
// incrementar em uma única operação atômica (transação, UPDATE ... RETURNING
// ou equivalente) e devolver o número reservado. Contador zerado reserva 1.
type Counter interface {
	IncrementNext(ctx context.Context, configID string) (int64, error)
}

type Sequencer interface {
	ReserveNext(ctx context.Context, configID string) (int64, error)
}

type sequencer struct {
	counter Counter
	logger  *zap.Logger
}

func NewSequencer(counter Counter, logger *zap.Logger) Sequencer {
	return &sequencer{counter: counter, logger: logger}
}

// ReserveNext reserva o próximo número da configuração. O número reservado é
// consumido mesmo que a emissão falhe depois; lacunas são aceitas.
func (s *sequencer) ReserveNext(ctx context.Context, configID string) (int64, error) {
	if configID == "" {
		return 0, fmt.Errorf("%w: configuração não informada", domain.ErrConfiguration)
	}
	number, err := s.counter.IncrementNext(ctx, configID)
	if err != nil {
		return 0, fmt.Errorf("falha ao reservar numeração da configuração %s: %w", configID, err)
	}
	if number <= 0 {
		return 0, fmt.Errorf("contador da configuração %s devolveu número inválido %d", configID, number)
	}
	// Registrado antes do envio para que uma queda entre reserva e envio
	// deixe a lacuna rastreável.
	s.logger.Info("numero reservado", zap.String("config_id", configID), zap.Int64("numero", number))
	return number, nil
}
