// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"

	"go.uber.org/zap"
)

// Run drives the reactor until it stops or runs out of handles. tick, when
// non-nil, runs after every loop iteration.
func (s *Server) Run(tick func() error) error {
	s.log.Info("server running")
	err := s.reactor.Run(tick)
	s.log.Info("server stopped", zap.Int("clients", len(s.clients)), zap.Error(err))
	return err
}

// Shutdown closes the listener and every child, then stops the reactor.
func (s *Server) Shutdown() error {
	err := errors.Join(s.Close(), s.CloseAllClients())
	s.reactor.Stop()
	return err
}
