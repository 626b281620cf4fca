// Package numbering asigna y formatea los consecutivos de factura por tenant.
//
// El consecutivo crudo es un entero estrictamente creciente y sin huecos por tenant.
// El formato (prefijo, año, relleno con ceros) es solo presentación sobre ese entero.
package numbering

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Sequencer entrega el siguiente consecutivo del tenant.
// Dos llamadas concurrentes para el mismo tenant nunca reciben el mismo valor.
type Sequencer interface {
	Next(ctx context.Context, tenantID string) (int64, error)
}

// SequencerFunc adapta una función a Sequencer.
type SequencerFunc func(ctx context.Context, tenantID string) (int64, error)

// Next implementa Sequencer.
func (f SequencerFunc) Next(ctx context.Context, tenantID string) (int64, error) {
	return f(ctx, tenantID)
}

// Formatter convierte el consecutivo en el número visible: PREFIJO-AAAA-000042.
type Formatter struct {
	Prefix  string
	Padding int
}

// DefaultFormatter formato por defecto ("RE-2026-00042").
func DefaultFormatter() Formatter {
	return Formatter{Prefix: "RE", Padding: 5}
}

// Format arma el número visible. Sin prefijo omite el primer segmento.
func (f Formatter) Format(seq int64, issueDate time.Time) string {
	pad := f.Padding
	if pad <= 0 {
		pad = 1
	}
	num := fmt.Sprintf("%d-%0*d", issueDate.Year(), pad, seq)
	prefix := strings.TrimSpace(f.Prefix)
	if prefix == "" {
		return num
	}
	return prefix + "-" + num
}

// MemorySequencer secuenciador en memoria con exclusión mutua por tenant.
// Útil en desarrollo y pruebas; en producción se usa el secuenciador transaccional de PostgreSQL.
type MemorySequencer struct {
	mu    sync.Mutex
	last  map[string]int64
	locks map[string]*sync.Mutex
}

// NewMemorySequencer construye el secuenciador vacío.
func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{
		last:  make(map[string]int64),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *MemorySequencer) tenantLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

// Next implementa Sequencer.
func (s *MemorySequencer) Next(ctx context.Context, tenantID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if tenantID == "" {
		return 0, fmt.Errorf("numbering: tenant requerido")
	}
	l := s.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	n := s.last[tenantID] + 1
	s.last[tenantID] = n
	s.mu.Unlock()
	return n, nil
}

// Last devuelve el último consecutivo entregado al tenant (0 si ninguno).
func (s *MemorySequencer) Last(tenantID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[tenantID]
}
