// Package acbr fala o protocolo TCP de comandos do ACBrMonitor: um comando
// por conexão, terminado em CRLF, com resposta terminada pelo byte ETX (0x03).
package acbr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	// Terminator encerra toda resposta do ACBrMonitor.
	Terminator byte = 0x03

	DefaultTimeout     = 30 * time.Second
	DefaultMaxInFlight = 8
	readChunkSize      = 4096
)

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxInFlight limita quantos comandos podem estar abertos ao mesmo tempo
// para um mesmo endereço. Endereços diferentes não disputam vagas.
func WithMaxInFlight(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxInFlight = n
		}
	}
}

// WithEncoding troca a codificação do fio (padrão Windows-1252, o ANSI do ACBr).
func WithEncoding(enc encoding.Encoding) ClientOption {
	return func(c *Client) { c.enc = enc }
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

type Client struct {
	dialer      net.Dialer
	timeout     time.Duration
	maxInFlight int64
	enc         encoding.Encoding
	logger      *zap.Logger

	mu    sync.Mutex
	slots map[string]*semaphore.Weighted
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:     DefaultTimeout,
		maxInFlight: DefaultMaxInFlight,
		enc:         charmap.Windows1252,
		logger:      zap.NewNop(),
		slots:       make(map[string]*semaphore.Weighted),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send abre uma conexão, envia o comando seguido de CRLF e lê até o ETX.
// Devolve o texto anterior ao terminador. O prazo é o menor entre o do
// contexto e o timeout do cliente. Falhas de prazo embrulham
// domain.ErrTimeout; recusa, reset ou rede inalcançável embrulham
// domain.ErrConnection.
func (c *Client) Send(ctx context.Context, addr, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slots := c.slotsFor(addr)
	if err := slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: aguardando vaga para %s: %v", domain.ErrTimeout, addr, err)
	}
	defer slots.Release(1)

	start := time.Now()
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", classify(fmt.Sprintf("conectando a %s", addr), err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return "", fmt.Errorf("%w: definindo prazo: %v", domain.ErrConnection, err)
		}
	}

	payload, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).Bytes([]byte(command + "\r\n"))
	if err != nil {
		return "", fmt.Errorf("codificando comando: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return "", classify(fmt.Sprintf("enviando comando a %s", addr), err)
	}

	raw, err := readUntilTerminator(conn)
	if err != nil {
		return "", classify(fmt.Sprintf("lendo resposta de %s", addr), err)
	}

	reply, err := c.enc.NewDecoder().Bytes(raw)
	if err != nil {
		reply = raw
	}

	c.logger.Debug("comando ACBr concluido",
		zap.String("addr", addr),
		zap.String("comando", commandName(command)),
		zap.Int("bytes_resposta", len(raw)),
		zap.Duration("duracao", time.Since(start)),
	)
	return strings.TrimSpace(string(reply)), nil
}

// slotsFor devolve o semáforo do endereço, criando-o no primeiro uso.
func (c *Client) slotsFor(addr string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.slots[addr]
	if !ok {
		sem = semaphore.NewWeighted(c.maxInFlight)
		c.slots[addr] = sem
	}
	return sem
}

// errNoReply indica conexão encerrada pelo ACBrMonitor sem nenhum byte.
var errNoReply = errors.New("conexão encerrada sem resposta")

// readUntilTerminator acumula fragmentos até que o buffer contenha o ETX.
// O terminador pode chegar em qualquer leitura, inclusive separado do texto.
// Se o par fechar a conexão antes do ETX, devolve o que chegou.
func readUntilTerminator(r io.Reader) ([]byte, error) {
	var acc []byte
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			acc = append(acc, chunk[:n]...)
			if idx := bytes.IndexByte(acc, Terminator); idx >= 0 {
				return acc[:idx], nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(acc) > 0 {
					return acc, nil
				}
				return nil, errNoReply
			}
			return nil, err
		}
	}
}

func classify(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", domain.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrConnection, op, err)
}

// commandName devolve só o nome do comando, sem o INI embutido.
func commandName(command string) string {
	if idx := strings.IndexByte(command, '('); idx >= 0 {
		return command[:idx]
	}
	return command
}
