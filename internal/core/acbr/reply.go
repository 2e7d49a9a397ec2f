package acbr

import (
	"regexp"
	"strings"
)

// ReplyKind classifica o prefixo da resposta.
type ReplyKind int

const (
	ReplyMalformed ReplyKind = iota
	ReplyOK
	ReplyError
)

const (
	okPrefix    = "OK:"
	errorPrefix = "ERRO:"

	authorizedMessage = "Autorizado o uso da NF-e"
)

// Reply é a resposta do ACBrMonitor já interpretada.
type Reply struct {
	Kind       ReplyKind
	Authorized bool
	StatusCode string
	AccessKey  string
	ProtocolID string
	Message    string
	XMLPath    string
}

// Campos extraídos por varredura independente; qualquer um pode faltar.
var (
	statusField   = field("CStat")
	accessField   = field("ChNFe")
	protocolField = field("NProt")
	motiveField   = field("XMotivo")
	xmlField      = field("XML")
	fileField     = field("Arquivo")
)

func field(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(key) + `=([^\r\n]+)`)
}

func extract(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ParseReply interpreta a resposta textual. Nunca falha: no pior caso
// devolve Authorized=false com o texto bruto em Message.
func ParseReply(text string) Reply {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, okPrefix):
		body := strings.TrimSpace(trimmed[len(okPrefix):])
		r := Reply{
			Kind:       ReplyOK,
			StatusCode: extract(statusField, body),
			AccessKey:  extract(accessField, body),
			ProtocolID: extract(protocolField, body),
			XMLPath:    extract(xmlField, body),
		}
		if r.XMLPath == "" {
			r.XMLPath = extract(fileField, body)
		}
		// 100 autorizado, 150 autorizado fora de prazo.
		r.Authorized = r.StatusCode == "100" || r.StatusCode == "150" || r.AccessKey != ""
		r.Message = extract(motiveField, body)
		if r.Message == "" {
			if r.Authorized {
				r.Message = authorizedMessage
			} else {
				r.Message = body
			}
		}
		return r

	case strings.HasPrefix(trimmed, errorPrefix):
		body := strings.TrimSpace(trimmed[len(errorPrefix):])
		r := Reply{
			Kind:       ReplyError,
			StatusCode: extract(statusField, body),
			Message:    extract(motiveField, body),
		}
		if r.Message == "" {
			r.Message = body
		}
		return r
	}

	return Reply{Kind: ReplyMalformed, Message: text, StatusCode: extract(statusField, text)}
}
