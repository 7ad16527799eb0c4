package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/engine"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"capacity", engine.ErrAtCapacity, http.StatusTooManyRequests},
		{"saga conflict", engine.ErrSagaConflict, http.StatusConflict},
		{"saga id required", engine.ErrSagaIDRequired, http.StatusBadRequest},
		{"template not found", config.ErrTemplateNotFound, http.StatusBadRequest},
		{"workflow not found", engine.ErrWorkflowNotFound, http.StatusNotFound},
		{"entry not found", blackboard.ErrNotFound, http.StatusNotFound},
		{"unknown namespace", blackboard.ErrUnknownNamespace, http.StatusBadRequest},
		{"invalid pattern", blackboard.ErrInvalidPattern, http.StatusBadRequest},
		{"engine stopped", engine.ErrEngineStopped, http.StatusServiceUnavailable},
		{"wrapped sentinel", fmt.Errorf("start: %w", engine.ErrAtCapacity), http.StatusTooManyRequests},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.Equal(t, tt.want, he.Code)
		})
	}
}
