package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/convq/internal/log"
)

func TestCtxValues(t *testing.T) {
	tests := map[string]struct {
		ctx       func() context.Context
		expValues log.Kv
	}{
		"A context without values should return empty values.": {
			ctx:       context.Background,
			expValues: log.Kv{},
		},
		"Values set on the context should be returned.": {
			ctx: func() context.Context {
				return log.CtxWithValues(context.Background(), log.Kv{"job": "j1"})
			},
			expValues: log.Kv{"job": "j1"},
		},
		"Nested values should be merged and later ones should win.": {
			ctx: func() context.Context {
				ctx := log.CtxWithValues(context.Background(), log.Kv{"job": "j1", "kind": "pdf"})
				return log.CtxWithValues(ctx, log.Kv{"job": "j2"})
			},
			expValues: log.Kv{"job": "j2", "kind": "pdf"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expValues, log.ValuesFromCtx(test.ctx()))
		})
	}
}

func TestNoopLogger(t *testing.T) {
	ctx := context.Background()
	l := log.Noop.WithValues(log.Kv{"a": 1}).WithCtxValues(ctx)
	l.Infof("nothing %s", "here")

	assert.Equal(t, ctx, log.Noop.SetValuesOnCtx(ctx, log.Kv{"a": 1}))
}
