package command

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/basicai/pceditor/internal/command"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
