package firestoredb

import (
	"time"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"github.com/shopspring/decimal"
)

// configRecord representa um documento da coleção nfceConfigs.
type configRecord struct {
	CNPJ                string `firestore:"cnpjEmitente"`
	LegalName           string `firestore:"razaoSocial"`
	TradeName           string `firestore:"nomeFantasia"`
	StateRegistration   string `firestore:"inscricaoEstadual"`
	TaxRegime           int    `firestore:"crt"`
	Street              string `firestore:"enderecoLogradouro"`
	Number              string `firestore:"enderecoNumero"`
	Complement          string `firestore:"enderecoComplemento"`
	District            string `firestore:"enderecoBairro"`
	City                string `firestore:"enderecoMunicipio"`
	CityCode            string `firestore:"codigoMunicipio"`
	State               string `firestore:"uf"`
	ZipCode             string `firestore:"enderecoCep"`
	Phone               string `firestore:"telefone"`
	Environment         int    `firestore:"ambiente"`
	CSCID               string `firestore:"cscId"`
	CSCToken            string `firestore:"cscToken"`
	Series              string `firestore:"serieNfce"`
	NextNumber          int64  `firestore:"proximoNumero"`
	DefaultTaxSituation string `firestore:"cstPadrao"`
	MiddlewareAddr      string `firestore:"acbrUrl"`
	TechCNPJ            string `firestore:"respTecCnpj"`
	TechContact         string `firestore:"respTecContato"`
	TechEmail           string `firestore:"respTecEmail"`
	TechPhone           string `firestore:"respTecFone"`
	Active              bool   `firestore:"ativo"`
}

func (r configRecord) toDomain(id string) domain.EmitterConfig {
	cfg := domain.EmitterConfig{
		ID:                id,
		CNPJ:              r.CNPJ,
		LegalName:         r.LegalName,
		TradeName:         r.TradeName,
		StateRegistration: r.StateRegistration,
		TaxRegime:         r.TaxRegime,
		Address: domain.Address{
			Street:     r.Street,
			Number:     r.Number,
			Complement: r.Complement,
			District:   r.District,
			CityCode:   r.CityCode,
			City:       r.City,
			State:      r.State,
			ZipCode:    r.ZipCode,
		},
		Phone:               r.Phone,
		Environment:         domain.Environment(r.Environment),
		CSCID:               r.CSCID,
		CSCToken:            r.CSCToken,
		Series:              r.Series,
		NextNumber:          r.NextNumber,
		DefaultTaxSituation: r.DefaultTaxSituation,
		MiddlewareAddr:      r.MiddlewareAddr,
		Active:              r.Active,
	}
	if r.TechCNPJ != "" {
		cfg.TechResponsible = &domain.TechResponsible{
			CNPJ:    r.TechCNPJ,
			Contact: r.TechContact,
			Email:   r.TechEmail,
			Phone:   r.TechPhone,
		}
	}
	return cfg
}

type itemRecord struct {
	ProductID    string  `firestore:"produtoId"`
	Name         string  `firestore:"nomeProduto"`
	Unit         string  `firestore:"unidade"`
	Quantity     float64 `firestore:"quantidade"`
	UnitPrice    float64 `firestore:"precoUnitario"`
	NCM          string  `firestore:"ncm"`
	CFOP         string  `firestore:"cfop"`
	TaxSituation string  `firestore:"cst"`
}

type paymentRecord struct {
	Method string  `firestore:"formaPagamento"`
	Amount float64 `firestore:"valor"`
	Change float64 `firestore:"troco"`
}

// orderRecord representa um pedido com itens e pagamentos embutidos.
type orderRecord struct {
	Items    []itemRecord    `firestore:"itens"`
	Payments []paymentRecord `firestore:"pagamentos"`
	Discount float64         `firestore:"desconto"`
	Status   string          `firestore:"status"`
}

func (r orderRecord) toDomain(id string) domain.FiscalOrder {
	order := domain.FiscalOrder{
		ID:       id,
		Discount: decimal.NewFromFloat(r.Discount),
		Status:   domain.OrderStatus(r.Status),
	}
	for _, it := range r.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:    it.ProductID,
			Name:         it.Name,
			Unit:         it.Unit,
			Quantity:     decimal.NewFromFloat(it.Quantity),
			UnitPrice:    decimal.NewFromFloat(it.UnitPrice),
			NCM:          it.NCM,
			CFOP:         it.CFOP,
			TaxSituation: it.TaxSituation,
		})
	}
	for _, p := range r.Payments {
		order.Payments = append(order.Payments, domain.Payment{
			Method: p.Method,
			Amount: decimal.NewFromFloat(p.Amount),
			Change: decimal.NewFromFloat(p.Change),
		})
	}
	return order
}

// emissionRecord representa uma tentativa na coleção nfceEmissoes.
type emissionRecord struct {
	OrderID    string    `firestore:"pedidoId"`
	ConfigID   string    `firestore:"configId"`
	Number     int64     `firestore:"numero"`
	Series     string    `firestore:"serie"`
	Outcome    string    `firestore:"resultado"`
	Status     string    `firestore:"status"`
	AccessKey  string    `firestore:"chaveAcesso"`
	ProtocolID string    `firestore:"protocolo"`
	StatusCode string    `firestore:"cStat"`
	Message    string    `firestore:"mensagemRetorno"`
	XMLPath    string    `firestore:"xmlRetorno"`
	ConsumerID string    `firestore:"cpfCnpjConsumidor"`
	RawRequest string    `firestore:"xmlEnvio"`
	RawReply   string    `firestore:"respostaAcbr"`
	EmittedAt  time.Time `firestore:"emitidoEm"`
}

func newEmissionRecord(r domain.EmissionResult) emissionRecord {
	return emissionRecord{
		OrderID:    r.OrderID,
		ConfigID:   r.ConfigID,
		Number:     r.Number,
		Series:     r.Series,
		Outcome:    string(r.Outcome),
		Status:     string(r.Status),
		AccessKey:  r.AccessKey,
		ProtocolID: r.ProtocolID,
		StatusCode: r.StatusCode,
		Message:    r.Message,
		XMLPath:    r.XMLPath,
		ConsumerID: r.ConsumerID,
		RawRequest: r.RawRequest,
		RawReply:   r.RawReply,
		EmittedAt:  r.EmittedAt,
	}
}

func (r emissionRecord) toDomain(id string) domain.EmissionResult {
	return domain.EmissionResult{
		ID:         id,
		OrderID:    r.OrderID,
		ConfigID:   r.ConfigID,
		Number:     r.Number,
		Series:     r.Series,
		Outcome:    domain.Outcome(r.Outcome),
		Status:     domain.RecordStatus(r.Status),
		AccessKey:  r.AccessKey,
		ProtocolID: r.ProtocolID,
		StatusCode: r.StatusCode,
		Message:    r.Message,
		XMLPath:    r.XMLPath,
		ConsumerID: r.ConsumerID,
		RawRequest: r.RawRequest,
		RawReply:   r.RawReply,
		EmittedAt:  r.EmittedAt,
	}
}
