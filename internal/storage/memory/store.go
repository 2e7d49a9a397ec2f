// Package memory guarda configurações, pedidos e resultados em memória.
// Usado em desenvolvimento (STORAGE_DRIVER=memory, carregado de
// MEMORY_SEED_FILE) e nos testes.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
)

type Store struct {
	mu      sync.Mutex
	configs map[string]domain.EmitterConfig
	orders  map[string]domain.FiscalOrder
	results map[string][]domain.EmissionResult
}

func NewStore() *Store {
	return &Store{
		configs: make(map[string]domain.EmitterConfig),
		orders:  make(map[string]domain.FiscalOrder),
		results: make(map[string][]domain.EmissionResult),
	}
}

func (s *Store) PutConfig(cfg domain.EmitterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ID] = cfg
}

func (s *Store) PutOrder(order domain.FiscalOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

// Seed é o formato do arquivo MEMORY_SEED_FILE.
type Seed struct {
	Configs []domain.EmitterConfig `json:"configs"`
	Orders  []domain.FiscalOrder   `json:"orders"`
}

// LoadSeed lê configurações e pedidos em JSON e os grava no store.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("erro ao ler seed: %w", err)
	}
	for _, cfg := range seed.Configs {
		if cfg.ID == "" {
			return fmt.Errorf("%w: configuração sem id no seed", domain.ErrConfiguration)
		}
		s.PutConfig(cfg)
	}
	for _, order := range seed.Orders {
		if order.ID == "" {
			return fmt.Errorf("%w: pedido sem id no seed", domain.ErrValidation)
		}
		s.PutOrder(order)
	}
	return nil
}

// Results devolve todas as tentativas gravadas para o pedido, em ordem.
func (s *Store) Results(orderID string) []domain.EmissionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EmissionResult(nil), s.results[orderID]...)
}

func (s *Store) FetchEmitterConfig(_ context.Context, id string) (domain.EmitterConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	if !ok {
		return domain.EmitterConfig{}, fmt.Errorf("%w: configuração %s", domain.ErrNotFound, id)
	}
	return cfg, nil
}

func (s *Store) FetchPayableOrder(_ context.Context, id string) (domain.FiscalOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return domain.FiscalOrder{}, fmt.Errorf("%w: pedido %s", domain.ErrNotFound, id)
	}
	return order, nil
}

// PersistEmissionResult grava a tentativa. Um resultado cancelado também
// marca o pedido como cancelado.
func (s *Store) PersistEmissionResult(_ context.Context, orderID string, result domain.EmissionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.results[orderID]
	for i := range list {
		if list[i].ID == result.ID {
			list[i] = result
			s.markCancelled(orderID, result)
			return nil
		}
	}
	s.results[orderID] = append(list, result)
	s.markCancelled(orderID, result)
	return nil
}

func (s *Store) markCancelled(orderID string, result domain.EmissionResult) {
	if result.Status != domain.RecordCancelled {
		return
	}
	if order, ok := s.orders[orderID]; ok {
		order.Status = domain.OrderStatusCancelled
		s.orders[orderID] = order
	}
}

func (s *Store) FetchLatestResult(_ context.Context, orderID string) (domain.EmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.results[orderID]
	if len(list) == 0 {
		return domain.EmissionResult{}, fmt.Errorf("%w: NFC-e do pedido %s", domain.ErrNotFound, orderID)
	}
	return list[len(list)-1], nil
}

// IncrementNext lê e incrementa o contador sob o mesmo lock.
func (s *Store) IncrementNext(_ context.Context, configID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[configID]
	if !ok {
		return 0, fmt.Errorf("%w: configuração %s", domain.ErrNotFound, configID)
	}
	number := cfg.NextNumber
	if number < 1 {
		number = 1
	}
	cfg.NextNumber = number + 1
	s.configs[configID] = cfg
	return number, nil
}
