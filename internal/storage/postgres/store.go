// Package postgres implementa o armazenamento da emissão sobre PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Store struct {
	db *sqlx.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func NewStore(db *sqlx.DB) *Store {
	if db == nil {
		panic("db must be set")
	}
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) MigrateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

type configRow struct {
	ID                  string `db:"id"`
	CNPJ                string `db:"cnpj"`
	LegalName           string `db:"legal_name"`
	TradeName           string `db:"trade_name"`
	StateRegistration   string `db:"state_registration"`
	TaxRegime           int    `db:"tax_regime"`
	Street              string `db:"street"`
	Number              string `db:"number"`
	Complement          string `db:"complement"`
	District            string `db:"district"`
	CityCode            string `db:"city_code"`
	City                string `db:"city"`
	State               string `db:"state"`
	ZipCode             string `db:"zip_code"`
	Phone               string `db:"phone"`
	Environment         int    `db:"environment"`
	CSCID               string `db:"csc_id"`
	CSCToken            string `db:"csc_token"`
	Series              string `db:"series"`
	NextNumber          int64  `db:"next_number"`
	DefaultTaxSituation string `db:"default_tax_situation"`
	MiddlewareAddr      string `db:"middleware_addr"`
	TechCNPJ            string `db:"tech_cnpj"`
	TechContact         string `db:"tech_contact"`
	TechEmail           string `db:"tech_email"`
	TechPhone           string `db:"tech_phone"`
	Active              bool   `db:"active"`
}

const selectConfig = `SELECT id, cnpj, legal_name, trade_name, state_registration, tax_regime,
	street, number, complement, district, city_code, city, state, zip_code, phone,
	environment, csc_id, csc_token, series, next_number, default_tax_situation,
	middleware_addr, tech_cnpj, tech_contact, tech_email, tech_phone, active
	FROM nfce_configs WHERE id = $1`

func (s *Store) FetchEmitterConfig(ctx context.Context, id string) (domain.EmitterConfig, error) {
	var row configRow
	err := s.db.GetContext(ctx, &row, selectConfig, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmitterConfig{}, fmt.Errorf("%w: configuração %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.EmitterConfig{}, fmt.Errorf("erro ao consultar configuração no PostgreSQL: %w", err)
	}

	cfg := domain.EmitterConfig{
		ID:                row.ID,
		CNPJ:              row.CNPJ,
		LegalName:         row.LegalName,
		TradeName:         row.TradeName,
		StateRegistration: row.StateRegistration,
		TaxRegime:         row.TaxRegime,
		Address: domain.Address{
			Street:     row.Street,
			Number:     row.Number,
			Complement: row.Complement,
			District:   row.District,
			CityCode:   row.CityCode,
			City:       row.City,
			State:      row.State,
			ZipCode:    row.ZipCode,
		},
		Phone:               row.Phone,
		Environment:         domain.Environment(row.Environment),
		CSCID:               row.CSCID,
		CSCToken:            row.CSCToken,
		Series:              row.Series,
		NextNumber:          row.NextNumber,
		DefaultTaxSituation: row.DefaultTaxSituation,
		MiddlewareAddr:      row.MiddlewareAddr,
		Active:              row.Active,
	}
	if row.TechCNPJ != "" {
		cfg.TechResponsible = &domain.TechResponsible{
			CNPJ:    row.TechCNPJ,
			Contact: row.TechContact,
			Email:   row.TechEmail,
			Phone:   row.TechPhone,
		}
	}
	return cfg, nil
}

type orderRow struct {
	ID       string          `db:"id"`
	Discount decimal.Decimal `db:"discount"`
	Status   string          `db:"status"`
}

type itemRow struct {
	ProductID    string          `db:"product_id"`
	Name         string          `db:"name"`
	Unit         string          `db:"unit"`
	Quantity     decimal.Decimal `db:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price"`
	NCM          string          `db:"ncm"`
	CFOP         string          `db:"cfop"`
	TaxSituation string          `db:"tax_situation"`
}

type paymentRow struct {
	Method string          `db:"method"`
	Amount decimal.Decimal `db:"amount"`
	Change decimal.Decimal `db:"change_given"`
}

func (s *Store) FetchPayableOrder(ctx context.Context, id string) (domain.FiscalOrder, error) {
	var order orderRow
	err := s.db.GetContext(ctx, &order, `SELECT id, discount, status FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FiscalOrder{}, fmt.Errorf("%w: pedido %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.FiscalOrder{}, fmt.Errorf("erro ao consultar pedido no PostgreSQL: %w", err)
	}

	var items []itemRow
	err = s.db.SelectContext(ctx, &items, `
		SELECT product_id, name, unit, quantity, unit_price, ncm, cfop, tax_situation
		FROM order_items WHERE order_id = $1 ORDER BY position`, id)
	if err != nil {
		return domain.FiscalOrder{}, fmt.Errorf("erro ao consultar itens do pedido: %w", err)
	}

	var payments []paymentRow
	err = s.db.SelectContext(ctx, &payments, `
		SELECT method, amount, change_given
		FROM order_payments WHERE order_id = $1 ORDER BY position`, id)
	if err != nil {
		return domain.FiscalOrder{}, fmt.Errorf("erro ao consultar pagamentos do pedido: %w", err)
	}

	out := domain.FiscalOrder{
		ID:       order.ID,
		Discount: order.Discount,
		Status:   domain.OrderStatus(order.Status),
	}
	for _, it := range items {
		out.Items = append(out.Items, domain.OrderItem(it))
	}
	for _, p := range payments {
		out.Payments = append(out.Payments, domain.Payment(p))
	}
	return out, nil
}

type emissionRow struct {
	ID         string    `db:"id"`
	OrderID    string    `db:"order_id"`
	ConfigID   string    `db:"config_id"`
	Number     int64     `db:"number"`
	Series     string    `db:"series"`
	Outcome    string    `db:"outcome"`
	Status     string    `db:"status"`
	AccessKey  string    `db:"access_key"`
	ProtocolID string    `db:"protocol_id"`
	StatusCode string    `db:"status_code"`
	Message    string    `db:"message"`
	XMLPath    string    `db:"xml_path"`
	ConsumerID string    `db:"consumer_id"`
	RawRequest string    `db:"raw_request"`
	RawReply   string    `db:"raw_reply"`
	EmittedAt  time.Time `db:"emitted_at"`
}

// PersistEmissionResult faz upsert da tentativa. Cancelamento também marca o
// pedido como cancelado na mesma transação.
func (s *Store) PersistEmissionResult(ctx context.Context, orderID string, r domain.EmissionResult) error {
	return updateInTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nfce_emissions (id, order_id, config_id, number, series, outcome, status,
				access_key, protocol_id, status_code, message, xml_path, consumer_id,
				raw_request, raw_reply, emitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				message = EXCLUDED.message,
				raw_reply = EXCLUDED.raw_reply`,
			r.ID, orderID, r.ConfigID, r.Number, r.Series, string(r.Outcome), string(r.Status),
			r.AccessKey, r.ProtocolID, r.StatusCode, r.Message, r.XMLPath, r.ConsumerID,
			r.RawRequest, r.RawReply, r.EmittedAt)
		if err != nil {
			return fmt.Errorf("erro ao gravar NFC-e no PostgreSQL: %w", err)
		}

		if r.Status == domain.RecordCancelled {
			_, err = tx.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(domain.OrderStatusCancelled), orderID)
			if err != nil {
				return fmt.Errorf("erro ao marcar pedido como cancelado: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) FetchLatestResult(ctx context.Context, orderID string) (domain.EmissionResult, error) {
	var row emissionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, order_id, config_id, number, series, outcome, status, access_key,
			protocol_id, status_code, message, xml_path, consumer_id, raw_request,
			raw_reply, emitted_at
		FROM nfce_emissions WHERE order_id = $1
		ORDER BY emitted_at DESC LIMIT 1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmissionResult{}, fmt.Errorf("%w: NFC-e do pedido %s", domain.ErrNotFound, orderID)
	}
	if err != nil {
		return domain.EmissionResult{}, fmt.Errorf("erro ao consultar NFC-e no PostgreSQL: %w", err)
	}
	return domain.EmissionResult{
		ID:         row.ID,
		OrderID:    row.OrderID,
		ConfigID:   row.ConfigID,
		Number:     row.Number,
		Series:     row.Series,
		Outcome:    domain.Outcome(row.Outcome),
		Status:     domain.RecordStatus(row.Status),
		AccessKey:  row.AccessKey,
		ProtocolID: row.ProtocolID,
		StatusCode: row.StatusCode,
		Message:    row.Message,
		XMLPath:    row.XMLPath,
		ConsumerID: row.ConsumerID,
		RawRequest: row.RawRequest,
		RawReply:   row.RawReply,
		EmittedAt:  row.EmittedAt,
	}, nil
}

// IncrementNext reserva o número com um único UPDATE ... RETURNING; o lock
// de linha do PostgreSQL serializa reservas concorrentes.
func (s *Store) IncrementNext(ctx context.Context, configID string) (int64, error) {
	var reserved int64
	err := s.db.QueryRowxContext(ctx, `
		UPDATE nfce_configs SET next_number = GREATEST(next_number, 1) + 1
		WHERE id = $1
		RETURNING next_number - 1`, configID).Scan(&reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: configuração %s", domain.ErrNotFound, configID)
	}
	if err != nil {
		return 0, fmt.Errorf("erro ao reservar número no PostgreSQL: %w", err)
	}
	return reserved, nil
}

func updateInTx(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, tx)
}
