// Package store implementa o record store: chave/valor endereçado por caminho
// hierárquico ("users/{id}/currentGame"), com escrita atômica multi-caminho,
// compare-and-set e um relógio monotônico do servidor.
package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict indica que uma Condition do Update não bateu com o valor atual.
	ErrConflict = errors.New("record changed concurrently")
	ErrBadPath  = errors.New("invalid record path")
)

// RecordStore é o contrato usado pelo motor de jogo, ledger e identidade.
type RecordStore interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Set(ctx context.Context, path string, value []byte) error
	Delete(ctx context.Context, path string) error

	// List retorna os filhos diretos de prefix, indexados pela última parte do caminho.
	List(ctx context.Context, prefix string) (map[string][]byte, error)

	// Update aplica todas as writes atomicamente se todas as conds baterem;
	// caso contrário retorna ErrConflict e nada é escrito.
	Update(ctx context.Context, conds []Condition, writes ...Write) error

	// ServerTimestamp retorna milissegundos estritamente crescentes.
	ServerTimestamp(ctx context.Context) (int64, error)
}

// Write é uma operação de Update: grava Value em Path ou remove Path.
type Write struct {
	Path   string
	Value  []byte
	Delete bool
}

func Put(path string, value []byte) Write { return Write{Path: path, Value: value} }

func Remove(path string) Write { return Write{Path: path, Delete: true} }

// Condition exige que Path contenha exatamente Value no momento do Update.
// Value nil exige que Path esteja ausente.
type Condition struct {
	Path  string
	Value []byte
}

// Expect monta a condição a partir do valor lido via Get (nil quando ErrNotFound).
func Expect(path string, raw []byte) Condition { return Condition{Path: path, Value: raw} }

func (c Condition) matches(current []byte, present bool) bool {
	if c.Value == nil {
		return !present
	}
	return present && bytes.Equal(c.Value, current)
}

// Join monta um caminho a partir dos segmentos.
func Join(parts ...string) string { return strings.Join(parts, "/") }

// Split separa o caminho em (pai, chave).
func Split(path string) (parent, key string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// ValidSegment rejeita segmentos vazios ou com separador.
func ValidSegment(s string) bool {
	return s != "" && !strings.ContainsRune(s, '/')
}

func validPath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return ErrBadPath
	}
	return nil
}

func validWrites(writes []Write) error {
	for _, w := range writes {
		if err := validPath(w.Path); err != nil {
			return err
		}
		if !w.Delete && w.Value == nil {
			return ErrBadPath
		}
	}
	return nil
}
