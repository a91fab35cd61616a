package pipeline

import (
	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/ports"
)

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogDebug(string, ...ports.Field)           {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) RecordDropped(string, domain.Batch, error) {}
