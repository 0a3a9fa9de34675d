package model

import (
	"sync"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// StateManager tracks the fitted state of an estimator. Estimators hold it by composition and it
// is safe for concurrent use.
type StateManager struct {
	mu sync.RWMutex

	fitted     bool
	nInstances int
	nColumns   int
	fh         Horizon
}

// NewStateManager returns an unfitted state.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether SetFitted has been called since the last Reset.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the estimator as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset returns to the unfitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nInstances = 0
	s.nColumns = 0
	s.fh = nil
}

// SetDimensions records the number of instances and columns seen in fit.
func (s *StateManager) SetDimensions(nInstances, nColumns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nInstances = nInstances
	s.nColumns = nColumns
}

// GetDimensions returns the values recorded by SetDimensions.
func (s *StateManager) GetDimensions() (nInstances, nColumns int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nInstances, s.nColumns
}

// SetHorizon remembers the horizon passed to fit.
func (s *StateManager) SetHorizon(fh Horizon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fh = fh
}

// Horizon returns the horizon passed to fit, nil if none.
func (s *StateManager) Horizon() Horizon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fh
}

// RequireFitted returns a NotFittedError naming the estimator and method when unfitted.
func (s *StateManager) RequireFitted(estimator, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(estimator, method)
	}
	return nil
}
