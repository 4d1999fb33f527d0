package tracing

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_Disabled(t *testing.T) {
	log, hook := test.NewNullLogger()

	shutdown, err := InitTracer("svc", "localhost:4318", false, log)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, "Tracing disabled", hook.LastEntry().Message)
}
