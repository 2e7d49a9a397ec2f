package document

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultNCM          = "22030000"
	defaultCFOP         = "5102"
	defaultUnit         = "UN"
	defaultProductName  = "PRODUTO"
	defaultCSOSN        = "102"
	defaultCST          = "00"
	defaultAppVersion   = "EmissorNFCe1.0"
	defaultAdditional   = "Venda realizada pelo Emissor NFC-e"
	maxProductCodeChars = 20
)

// paymentCodes mapeia a forma de pagamento do PDV para o tPag.
var paymentCodes = map[string]string{
	"cash":           "01",
	"dinheiro":       "01",
	"credit_card":    "03",
	"cartao_credito": "03",
	"debit_card":     "04",
	"cartao_debito":  "04",
	"store_credit":   "05",
	"carteirinha":    "05",
	"pix":            "17",
	"no_charge":      "90",
	"cortesia":       "90",
}

const otherPaymentCode = "99"

// PaymentCode devolve o tPag da forma de pagamento, ou 99 (outros).
func PaymentCode(method string) string {
	if code, ok := paymentCodes[strings.ToLower(strings.TrimSpace(method))]; ok {
		return code
	}
	return otherPaymentCode
}

var ufCodes = map[string]string{
	"RO": "11", "AC": "12", "AM": "13", "RR": "14", "PA": "15",
	"AP": "16", "TO": "17", "MA": "21", "PI": "22", "CE": "23",
	"RN": "24", "PB": "25", "PE": "26", "AL": "27", "SE": "28",
	"BA": "29", "MG": "31", "ES": "32", "RJ": "33", "SP": "35",
	"PR": "41", "SC": "42", "RS": "43", "MS": "50", "MT": "51",
	"GO": "52", "DF": "53",
}

// UFCode devolve o código IBGE da UF; UFs desconhecidas caem em SP (35).
func UFCode(uf string) string {
	if code, ok := ufCodes[strings.ToUpper(strings.TrimSpace(uf))]; ok {
		return code
	}
	return "35"
}

type Option func(*Builder)

// WithClock fixa o relógio usado em dhEmi.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithNumericCode fixa o gerador do cNF.
func WithNumericCode(gen func() string) Option {
	return func(b *Builder) { b.numericCode = gen }
}

// WithAdditionalInfo troca o texto de infCpl.
func WithAdditionalInfo(text string) Option {
	return func(b *Builder) { b.additionalInfo = text }
}

// Builder monta a NFC-e (modelo 65) no layout INI do ACBrMonitor.
type Builder struct {
	now            func() time.Time
	numericCode    func() string
	location       *time.Location
	appVersion     string
	additionalInfo string
}

func NewBuilder(opts ...Option) *Builder {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	b := &Builder{
		now:            time.Now,
		numericCode:    randomNumericCode,
		location:       loc,
		appVersion:     defaultAppVersion,
		additionalInfo: defaultAdditional,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func randomNumericCode() string {
	return fmt.Sprintf("%08d", rand.Intn(100000000))
}

// Build monta o documento. Só falha quando as pré-condições não são
// atendidas; campos opcionais ausentes recebem valores padrão.
func (b *Builder) Build(order domain.FiscalOrder, cfg domain.EmitterConfig, number int64, recipientID string) (*Document, error) {
	if !order.Status.IsPaid() {
		return nil, fmt.Errorf("%w: pedido %s com status %q, só é possível emitir NFC-e para pedidos pagos", domain.ErrValidation, order.ID, order.Status)
	}
	if !cfg.Active {
		return nil, fmt.Errorf("%w: configuração %s desativada", domain.ErrConfiguration, cfg.ID)
	}
	if number <= 0 {
		return nil, fmt.Errorf("%w: número da NFC-e deve ser positivo, recebido %d", domain.ErrValidation, number)
	}

	doc := &Document{
		InfNFe:         Section{Name: "infNFe", Fields: []Field{{Key: "versao", Value: "4.00"}}},
		Identification: b.identification(cfg, number),
		Emitter:        emitter(cfg),
		Recipient:      recipient(recipientID),
	}

	vProd := decimal.Zero
	for idx, item := range order.Items {
		doc.Items = append(doc.Items, b.item(idx, item, cfg))
		vProd = vProd.Add(item.Total())
	}

	doc.Total = total(vProd, order.Discount)
	doc.Transport = Section{Name: "Transportador", Fields: []Field{{Key: "modFrete", Value: "9"}}} // sem frete
	doc.Payments = payments(order.Payments)

	doc.Additional = Section{Name: "DadosAdicionais"}
	doc.Additional.Set("infCpl", clean(b.additionalInfo))

	doc.TechResponsible = techResponsible(cfg.TechResponsible)
	return doc, nil
}

func (b *Builder) identification(cfg domain.EmitterConfig, number int64) Section {
	s := Section{Name: "Identificacao"}
	s.Set("cNF", b.numericCode())
	s.Set("natOp", "VENDA")
	s.Set("mod", "65")
	s.Set("serie", cfg.SeriesOrDefault())
	s.Set("nNF", fmt.Sprintf("%09d", number))
	s.Set("dhEmi", b.now().In(b.location).Format("02/01/2006 15:04:05"))
	// saída, operação interna
	s.Set("tpNF", "1")
	s.Set("idDest", "1")
	s.Set("tpAmb", environmentCode(cfg.Environment))
	// DANFE NFC-e, emissão normal, consumidor final presencial
	s.Set("tpImp", "4")
	s.Set("tpEmis", "1")
	s.Set("finNFe", "1")
	s.Set("indFinal", "1")
	s.Set("indPres", "1")
	s.Set("procEmi", "0")
	s.SetIf("cMunFG", cfg.Address.CityCode)
	s.Set("verProc", b.appVersion)
	return s
}

func environmentCode(env domain.Environment) string {
	if env == domain.EnvironmentProduction {
		return "1"
	}
	return "2"
}

func emitter(cfg domain.EmitterConfig) Section {
	s := Section{Name: "Emitente"}
	crt := cfg.TaxRegime
	if crt == 0 {
		crt = 1
	}
	s.Set("CRT", strconv.Itoa(crt))
	s.Set("CNPJCPF", onlyDigits(cfg.CNPJ))
	s.Set("xNome", clean(cfg.LegalName))
	tradeName := cfg.TradeName
	if tradeName == "" {
		tradeName = cfg.LegalName
	}
	s.Set("xFant", clean(tradeName))
	s.Set("IE", onlyDigits(cfg.StateRegistration))

	addr := cfg.Address
	s.SetIf("xLgr", clean(addr.Street))
	s.SetIf("nro", clean(addr.Number))
	s.SetIf("xCpl", clean(addr.Complement))
	s.SetIf("xBairro", clean(addr.District))
	s.SetIf("cMun", addr.CityCode)
	s.SetIf("xMun", clean(addr.City))
	if addr.State != "" {
		s.Set("UF", strings.ToUpper(addr.State))
		s.Set("cUF", UFCode(addr.State))
	}
	s.SetIf("CEP", onlyDigits(addr.ZipCode))
	s.SetIf("Fone", onlyDigits(cfg.Phone))
	s.Set("cPais", "1058")
	s.Set("xPais", "BRASIL")
	return s
}

func recipient(id string) *Section {
	digits := onlyDigits(id)
	if digits == "" {
		return nil
	}
	s := &Section{Name: "Destinatario"}
	s.Set("CNPJCPF", digits)
	s.Set("indIEDest", "9") // não contribuinte
	return s
}

func (b *Builder) item(idx int, item domain.OrderItem, cfg domain.EmitterConfig) Item {
	num := fmt.Sprintf("%03d", idx+1)
	vProd := item.Total()
	qty := item.Quantity.StringFixed(4)
	unitPrice := item.UnitPrice.StringFixed(4)
	unit := orDefault(clean(item.Unit), defaultUnit)

	code := strings.TrimSpace(item.ProductID)
	if code == "" {
		code = strconv.Itoa(idx + 1)
	} else if len([]rune(code)) > maxProductCodeChars {
		code = string([]rune(code)[:maxProductCodeChars])
	}

	p := Section{Name: "Produto" + num}
	p.Set("cProd", code)
	p.Set("cEAN", "SEM GTIN")
	p.Set("xProd", orDefault(clean(item.Name), defaultProductName))
	p.Set("NCM", orDefault(onlyDigits(item.NCM), defaultNCM))
	p.Set("CFOP", orDefault(onlyDigits(item.CFOP), defaultCFOP))
	p.Set("uCom", unit)
	p.Set("qCom", qty)
	p.Set("vUnCom", unitPrice)
	p.Set("vProd", vProd.StringFixed(2))
	p.Set("cEANTrib", "SEM GTIN")
	p.Set("uTrib", unit)
	p.Set("qTrib", qty)
	p.Set("vUnTrib", unitPrice)
	p.Set("indTot", "1")
	p.Set("vFrete", "0.00")
	p.Set("vSeg", "0.00")
	p.Set("vDesc", "0.00")
	p.Set("vOutro", "0.00")

	return Item{
		Product: p,
		ICMS:    icms(num, item.TaxSituation, cfg, vProd),
		PIS:     contribution("PIS"+num, "PIS"),
		COFINS:  contribution("COFINS"+num, "COFINS"),
	}
}

// icms escolhe a codificação apenas pelo CRT do emitente e pelo código de
// situação tributária do item (ou o padrão configurado).
func icms(num, taxSituation string, cfg domain.EmitterConfig, vProd decimal.Decimal) Section {
	s := Section{Name: "ICMS" + num}
	s.Set("orig", "0") // nacional

	code := strings.TrimSpace(taxSituation)
	if code == "" {
		code = strings.TrimSpace(cfg.DefaultTaxSituation)
	}

	if cfg.SimplifiedRegime() {
		csosn := orDefault(code, defaultCSOSN)
		s.Set("CSOSN", csosn)
		if csosn == "500" {
			s.Set("vBCSTRet", "0.00")
			s.Set("vICMSSTRet", "0.00")
			s.Set("pST", "0.00")
			s.Set("vBCFCPSTRet", "0.00")
			s.Set("pFCPSTRet", "0.00")
			s.Set("vFCPSTRet", "0.00")
		}
		return s
	}

	cst := orDefault(code, defaultCST)
	s.Set("CST", cst)
	if cst == "00" {
		s.Set("modBC", "0")
		s.Set("vBC", vProd.StringFixed(2))
		s.Set("pICMS", "0.00")
		s.Set("vICMS", "0.00")
	}
	return s
}

func contribution(name, tax string) Section {
	s := Section{Name: name}
	s.Set("CST", "49") // outras operações de saída
	s.Set("vBC", "0.00")
	s.Set("p"+tax, "0.00")
	s.Set("v"+tax, "0.00")
	return s
}

func total(vProd, discount decimal.Decimal) Section {
	vDesc := discount.Round(2)
	s := Section{Name: "Total"}
	s.Set("vProd", vProd.StringFixed(2))
	s.Set("vDesc", vDesc.StringFixed(2))
	s.Set("vNF", vProd.Sub(vDesc).StringFixed(2))
	for _, key := range []string{"vBC", "vICMS", "vICMSDeson", "vBCST", "vST", "vFrete", "vSeg", "vOutro", "vII", "vIPI", "vPIS", "vCOFINS"} {
		s.Set(key, "0.00")
	}
	return s
}

// payments gera um grupo por pagamento. O troco somado de todos os
// pagamentos vai só no último grupo.
func payments(list []domain.Payment) []Section {
	change := decimal.Zero
	for _, p := range list {
		if p.Change.IsPositive() {
			change = change.Add(p.Change)
		}
	}

	out := make([]Section, 0, len(list))
	for idx, p := range list {
		tPag := PaymentCode(p.Method)
		s := Section{Name: fmt.Sprintf("pag%03d", idx+1)}
		s.Set("tPag", tPag)
		s.Set("vPag", p.Amount.StringFixed(2))
		s.Set("indPag", "0") // à vista
		if tPag == "03" || tPag == "04" {
			s.Set("tpIntegra", "2") // não integrado
		}
		if idx == len(list)-1 && change.IsPositive() {
			s.Set("vTroco", change.StringFixed(2))
		}
		out = append(out, s)
	}
	return out
}

func techResponsible(rt *domain.TechResponsible) *Section {
	if rt == nil || onlyDigits(rt.CNPJ) == "" {
		return nil
	}
	s := &Section{Name: "infRespTec"}
	s.Set("CNPJ", onlyDigits(rt.CNPJ))
	s.Set("xContato", clean(rt.Contact))
	s.Set("email", clean(rt.Email))
	s.Set("fone", onlyDigits(rt.Phone))
	return s
}

// clean normaliza para NFC e remove quebras de linha, que partiriam a linha do INI.
func clean(s string) string {
	s = norm.NFC.String(s)
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}

func onlyDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
