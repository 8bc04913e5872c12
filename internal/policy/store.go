package policy

import "sync/atomic"

// Source отдает текущую политику
type Source interface {
	Current() *Policy
}

// Store потокобезопасный держатель политики для горячей перезагрузки
type Store struct {
	current atomic.Pointer[Policy]
}

// NewStore создает хранилище с начальной политикой
func NewStore(p *Policy) *Store {
	s := &Store{}
	if p == nil {
		p = Default()
	}
	s.current.Store(p)
	return s
}

// Current возвращает текущую политику. Возвращенное значение не изменяется.
func (s *Store) Current() *Policy {
	return s.current.Load()
}

// Set заменяет политику
func (s *Store) Set(p *Policy) {
	if p != nil {
		s.current.Store(p)
	}
}

// Static политика без перезагрузки
type Static struct {
	P *Policy
}

// Current implements Source.
func (s Static) Current() *Policy {
	if s.P == nil {
		return Default()
	}
	return s.P
}
