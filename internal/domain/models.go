package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus é o status do pedido no PDV.
type OrderStatus string

const (
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusPago é o valor gravado pelo front-end legado.
	OrderStatusPago      OrderStatus = "pago"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsPaid aceita tanto o valor atual quanto o legado.
func (s OrderStatus) IsPaid() bool {
	return s == OrderStatusPaid || s == OrderStatusPago
}

type OrderItem struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	NCM          string          `json:"ncm,omitempty"`
	CFOP         string          `json:"cfop,omitempty"`
	TaxSituation string          `json:"tax_situation,omitempty"` // CST ou CSOSN
}

// Total é quantidade × preço unitário arredondado para centavos.
func (i OrderItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice).Round(2)
}

type Payment struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
	Change decimal.Decimal `json:"change,omitempty"`
}

// FiscalOrder é o pedido pago, com itens e pagamentos, entregue pelo PDV.
type FiscalOrder struct {
	ID       string          `json:"id"`
	Items    []OrderItem     `json:"items"`
	Payments []Payment       `json:"payments"`
	Discount decimal.Decimal `json:"discount"`
	Status   OrderStatus     `json:"status"`
}

// Environment é o tpAmb da NFC-e.
type Environment int

const (
	EnvironmentProduction Environment = 1
	EnvironmentStaging    Environment = 2
)

type Address struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	CityCode   string `json:"city_code,omitempty"` // código IBGE
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"` // UF
	ZipCode    string `json:"zip_code,omitempty"`
}

type TechResponsible struct {
	CNPJ    string `json:"cnpj"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// EmitterConfig é a configuração NFC-e do estabelecimento emitente.
type EmitterConfig struct {
	ID                  string           `json:"id"`
	CNPJ                string           `json:"cnpj"`
	LegalName           string           `json:"legal_name"`
	TradeName           string           `json:"trade_name,omitempty"`
	StateRegistration   string           `json:"state_registration,omitempty"`
	TaxRegime           int              `json:"tax_regime"` // CRT
	Address             Address          `json:"address"`
	Phone               string           `json:"phone,omitempty"`
	Environment         Environment      `json:"environment"`
	CSCID               string           `json:"csc_id,omitempty"`
	CSCToken            string           `json:"-"`
	Series              string           `json:"series"`
	NextNumber          int64            `json:"next_number"`
	DefaultTaxSituation string           `json:"default_tax_situation,omitempty"`
	MiddlewareAddr      string           `json:"middleware_addr"`
	TechResponsible     *TechResponsible `json:"tech_responsible,omitempty"`
	Active              bool             `json:"active"`
}

// SimplifiedRegime informa se o CRT pertence ao Simples Nacional (1, 2 ou 4).
func (c EmitterConfig) SimplifiedRegime() bool {
	switch c.TaxRegime {
	case 1, 2, 4:
		return true
	}
	return false
}

// SeriesOrDefault devolve a série configurada ou "1".
func (c EmitterConfig) SeriesOrDefault() string {
	if c.Series == "" {
		return "1"
	}
	return c.Series
}

// Outcome é o resultado técnico de uma tentativa de emissão.
type Outcome string

const (
	OutcomeAuthorized      Outcome = "authorized"
	OutcomeRejected        Outcome = "rejected"
	OutcomeConnectionError Outcome = "connection_error"
	OutcomeTimeoutError    Outcome = "timeout_error"
)

// RecordStatus é o status do registro fiscal do pedido.
type RecordStatus string

const (
	RecordAuthorized RecordStatus = "authorized"
	RecordRejected   RecordStatus = "rejected"
	// RecordPending marca falha de infraestrutura, distinta de rejeição.
	RecordPending   RecordStatus = "pending"
	RecordCancelled RecordStatus = "cancelled"
)

// EmissionResult é o único artefato persistido por tentativa.
type EmissionResult struct {
	ID         string       `json:"id"`
	OrderID    string       `json:"order_id"`
	ConfigID   string       `json:"config_id"`
	Number     int64        `json:"number"`
	Series     string       `json:"series"`
	Outcome    Outcome      `json:"outcome"`
	Status     RecordStatus `json:"status"`
	AccessKey  string       `json:"access_key,omitempty"`
	ProtocolID string       `json:"protocol_id,omitempty"`
	StatusCode string       `json:"status_code,omitempty"`
	Message    string       `json:"message"`
	XMLPath    string       `json:"xml_path,omitempty"`
	ConsumerID string       `json:"consumer_id,omitempty"`
	RawRequest string       `json:"raw_request,omitempty"`
	RawReply   string       `json:"raw_reply,omitempty"`
	EmittedAt  time.Time    `json:"emitted_at"`
}
