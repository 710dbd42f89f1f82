package telemetry

import (
	"context"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Meter returns a meter from the global provider named after component.
func Meter(component string) metric.Meter {
	return otel.Meter(InstrumentationName + "/" + component)
}

// usage field names, OpenAI-compatible first, then Anthropic.
var (
	inputPaths  = []string{"prompt_tokens", "input_tokens", "promptTokenCount"}
	outputPaths = []string{"completion_tokens", "output_tokens", "candidatesTokenCount"}
)

// UsageRecorder exports provider-reported token counts on the
// gen_ai.client.token.usage histogram. Instruments created before Init
// follow the global provider once it is set.
type UsageRecorder struct {
	hist metric.Int64Histogram
}

// NewUsageRecorder creates the histogram on component's meter. A recorder
// whose instrument could not be created records nothing.
func NewUsageRecorder(component string) *UsageRecorder {
	hist, err := Meter(component).Int64Histogram("gen_ai.client.token.usage",
		metric.WithDescription("Tokens reported by the provider per completion"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		otel.Handle(err)
		return &UsageRecorder{}
	}
	return &UsageRecorder{hist: hist}
}

// Record reads the input and output counts from a usage object and
// records the ones present. It returns the counts it found, 0 for absent.
func (u *UsageRecorder) Record(ctx context.Context, provider, model string, usage []byte) (input, output int64) {
	if len(usage) == 0 || !gjson.ValidBytes(usage) {
		return 0, 0
	}
	input = firstInt(usage, inputPaths)
	output = firstInt(usage, outputPaths)
	if u == nil || u.hist == nil {
		return input, output
	}

	base := []attribute.KeyValue{
		attribute.String("gen_ai.system", provider),
		attribute.String("gen_ai.request.model", model),
	}
	if input > 0 {
		u.hist.Record(ctx, input, metric.WithAttributes(append(base, attribute.String("gen_ai.token.type", "input"))...))
	}
	if output > 0 {
		u.hist.Record(ctx, output, metric.WithAttributes(append(base, attribute.String("gen_ai.token.type", "output"))...))
	}
	return input, output
}

func firstInt(body []byte, paths []string) int64 {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() {
			return v.Int()
		}
	}
	return 0
}
