// Package firestoredb implementa o armazenamento da emissão sobre o Firestore.
package firestoredb

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	configsCollection   = "nfceConfigs"
	ordersCollection    = "pedidos"
	emissionsCollection = "nfceEmissoes"

	nextNumberField = "proximoNumero"
)

type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) FetchEmitterConfig(ctx context.Context, id string) (domain.EmitterConfig, error) {
	snap, err := s.client.Collection(configsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.EmitterConfig{}, fmt.Errorf("%w: configuração %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.EmitterConfig{}, fmt.Errorf("erro ao consultar configuração no Firestore: %w", err)
	}
	var rec configRecord
	if err := snap.DataTo(&rec); err != nil {
		return domain.EmitterConfig{}, fmt.Errorf("erro ao ler configuração %s: %w", id, err)
	}
	return rec.toDomain(snap.Ref.ID), nil
}

func (s *Store) FetchPayableOrder(ctx context.Context, id string) (domain.FiscalOrder, error) {
	snap, err := s.client.Collection(ordersCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.FiscalOrder{}, fmt.Errorf("%w: pedido %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.FiscalOrder{}, fmt.Errorf("erro ao consultar pedido no Firestore: %w", err)
	}
	var rec orderRecord
	if err := snap.DataTo(&rec); err != nil {
		return domain.FiscalOrder{}, fmt.Errorf("erro ao ler pedido %s: %w", id, err)
	}
	return rec.toDomain(snap.Ref.ID), nil
}

// PersistEmissionResult grava a tentativa pelo seu ID. Cancelamento também
// marca o pedido como cancelado na mesma transação.
func (s *Store) PersistEmissionResult(ctx context.Context, orderID string, result domain.EmissionResult) error {
	emissionRef := s.client.Collection(emissionsCollection).Doc(result.ID)
	orderRef := s.client.Collection(ordersCollection).Doc(orderID)
	rec := newEmissionRecord(result)
	rec.OrderID = orderID

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(emissionRef, rec); err != nil {
			return err
		}
		if result.Status == domain.RecordCancelled {
			return tx.Update(orderRef, []firestore.Update{{Path: "status", Value: string(domain.OrderStatusCancelled)}})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("erro ao gravar NFC-e no Firestore: %w", err)
	}
	return nil
}

func (s *Store) FetchLatestResult(ctx context.Context, orderID string) (domain.EmissionResult, error) {
	query := s.client.Collection(emissionsCollection).
		Where("pedidoId", "==", orderID).
		OrderBy("emitidoEm", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer query.Stop()

	doc, err := query.Next()
	if err == iterator.Done {
		return domain.EmissionResult{}, fmt.Errorf("%w: NFC-e do pedido %s", domain.ErrNotFound, orderID)
	}
	if err != nil {
		return domain.EmissionResult{}, fmt.Errorf("erro ao consultar NFC-e no Firestore: %w", err)
	}
	var rec emissionRecord
	if err := doc.DataTo(&rec); err != nil {
		return domain.EmissionResult{}, fmt.Errorf("erro ao ler NFC-e: %w", err)
	}
	return rec.toDomain(doc.Ref.ID), nil
}

// IncrementNext lê e incrementa proximoNumero dentro de uma transação. O
// Firestore repete a função em caso de conflito, então duas reservas
// concorrentes nunca confirmam o mesmo número.
func (s *Store) IncrementNext(ctx context.Context, configID string) (int64, error) {
	ref := s.client.Collection(configsCollection).Doc(configID)
	var reserved int64
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var rec configRecord
		if err := snap.DataTo(&rec); err != nil {
			return err
		}
		reserved = rec.NextNumber
		if reserved < 1 {
			reserved = 1
		}
		return tx.Update(ref, []firestore.Update{{Path: nextNumberField, Value: reserved + 1}})
	})
	if status.Code(err) == codes.NotFound {
		return 0, fmt.Errorf("%w: configuração %s", domain.ErrNotFound, configID)
	}
	if err != nil {
		return 0, fmt.Errorf("erro ao reservar número no Firestore: %w", err)
	}
	return reserved, nil
}
