package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"transport", Transport("fetch", base), KindTransport},
		{"service", Service("fetch", base), KindService},
		{"persistence", Persistence("insert", base), KindPersistence},
		{"conflict", Conflict("reconcile", base), KindConflict},
		{"config", Config("client", base), KindConfig},
		{"wrapped", fmt.Errorf("update database: %w", Service("fetch", base)), KindService},
		{"plain", base, KindUnknown},
		{"nil", nil, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrapsAndMatchesKind(t *testing.T) {
	base := errors.New("disk I/O error")
	err := fmt.Errorf("reconcile: %w", Persistence("commit", base))

	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, &Error{Kind: KindPersistence})
	assert.NotErrorIs(t, err, &Error{Kind: KindService})
	assert.True(t, IsKind(err, KindPersistence))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "service: fetch description: status 500",
		Service("fetch description", errors.New("status 500")).Error())
	assert.Equal(t, "conflict: reconcile", New(KindConflict, "reconcile", nil).Error())
	assert.Equal(t, "transport: eof", New(KindTransport, "", errors.New("eof")).Error())
}
