package domain

import "errors"

// Taxonomia de erros da emissão. Camadas inferiores embrulham estes valores
// com fmt.Errorf("...: %w") e os handlers classificam com errors.Is.
var (
	// ErrConfiguration indica NFC-e desativada ou configuração ausente.
	ErrConfiguration = errors.New("configuração NFC-e ausente ou desativada")
	// ErrValidation indica pedido fora de um estado elegível para emissão.
	ErrValidation = errors.New("pedido não elegível para emissão")
	// ErrNotFound indica pedido, configuração ou registro inexistente.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrConnection cobre conexão recusada, rede inalcançável e reset.
	ErrConnection = errors.New("falha de conexão com o ACBrMonitor")
	// ErrTimeout indica que o terminador não chegou dentro do prazo.
	ErrTimeout = errors.New("tempo esgotado aguardando o ACBrMonitor")
	// ErrProtocol marca respostas estruturalmente inutilizáveis. Nunca é
	// propagado: o parser cai para a mensagem bruta.
	ErrProtocol = errors.New("resposta do ACBrMonitor em formato inesperado")
	// ErrBusinessRejection indica rejeição explícita do documento.
	ErrBusinessRejection = errors.New("documento rejeitado")
)

// IsRetryable informa se o erro é uma falha de infraestrutura que o operador
// pode tentar novamente.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrTimeout)
}
