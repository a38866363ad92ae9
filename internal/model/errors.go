package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// InputError reports a malformed ticket — missing its ticket_number. The
// pipeline refuses the single ticket and counts it as rejected; it never
// halts the batch.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input: %s", e.Reason)
}

func NewInputError(reason string) error {
	return eris.Wrap(&InputError{Reason: reason}, "input error")
}

// LockedError reports an attempt to supersede a locked current record from
// an automated stage. The stage that observes this records a skipped
// outcome and proceeds to the next ticket.
type LockedError struct {
	TicketNumber string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("cache: ticket %s is locked and cannot be superseded", e.TicketNumber)
}

func NewLockedError(ticketNumber string) error {
	return eris.Wrap(&LockedError{TicketNumber: ticketNumber}, "locked record")
}

// StorageError reports an invariant violation inside the cache store. It
// propagates to the orchestrator; with fail_fast=true it aborts the batch.
type StorageError struct {
	Reason string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s", e.Reason)
}

func NewStorageError(reason string) error {
	return eris.Wrap(&StorageError{Reason: reason}, "storage error")
}

// ConfigurationError reports a stage that is enabled without its required
// configuration (a missing geometry file, an absent road network path).
// Detected at stage construction, before any tickets are processed.
type ConfigurationError struct {
	Stage  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: stage %q: %s", e.Stage, e.Reason)
}

func NewConfigurationError(stage, reason string) error {
	return eris.Wrap(&ConfigurationError{Stage: stage, Reason: reason}, "configuration error")
}

// SpatialLookupMiss reports a road name that could not be resolved against
// the network. Non-fatal — the geocoder's strategy cascade absorbs it.
type SpatialLookupMiss struct {
	Name string
}

func (e *SpatialLookupMiss) Error() string {
	return fmt.Sprintf("spatial: road %q not found in network", e.Name)
}

// StrategyExhausted reports that no proximity strategy produced a result.
// No code in this module returns it: when every strategy fails, the
// geocoder returns a result without coordinates instead.
type StrategyExhausted struct {
	Reason string
}

func (e *StrategyExhausted) Error() string {
	return fmt.Sprintf("geocoder: no strategy succeeded: %s", e.Reason)
}
