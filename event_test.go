package atrium_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atriumlabs/atrium"
)

func TestEvent_IndicatesFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event atrium.Event
		want  bool
	}{
		{
			name:  "status with error",
			event: atrium.Event{Kind: atrium.EventStatus, Payload: "error: model unavailable"},
			want:  true,
		},
		{
			name:  "status with uppercase error",
			event: atrium.Event{Kind: atrium.EventStatus, Payload: "Internal Error"},
			want:  true,
		},
		{
			name:  "benign status",
			event: atrium.Event{Kind: atrium.EventStatus, Payload: "thinking"},
		},
		{
			name:  "answer mentioning error is not a failure",
			event: atrium.Event{Kind: atrium.EventAnswer, Payload: "an error bound is..."},
		},
		{
			name:  "complete",
			event: atrium.Event{Kind: atrium.EventComplete},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.event.IndicatesFailure())
		})
	}
}
