package acbr

import (
	"fmt"
	"net"
	"strings"
)

const (
	DefaultAddr = "localhost:3434"
	defaultPort = "3434"

	StatusCommand = "NFe.StatusServico"
)

// Quote envolve o texto em aspas duplas, dobrando as aspas internas.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CreateAndSendCommand monta NFe.CriarEnviarNFe para o INI já serializado.
func CreateAndSendCommand(ini string, number int64) string {
	return fmt.Sprintf("NFe.CriarEnviarNFe(%s, %d, 0, 1)", Quote(ini), number)
}

// CancelCommand monta NFe.Cancelar(chave, justificativa, CNPJ, lote).
func CancelCommand(accessKey, justification, cnpj string, batch int) string {
	return fmt.Sprintf("NFe.Cancelar(%s, %s, %s, %d)", Quote(accessKey), Quote(justification), Quote(cnpj), batch)
}

// ResolveAddress normaliza o endereço configurado do ACBrMonitor: remove
// esquema http(s), barra final e completa a porta padrão 3434.
func ResolveAddress(raw string) string {
	addr := strings.TrimSpace(raw)
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimSuffix(addr, "/")
	if addr == "" {
		return DefaultAddr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port)
}
