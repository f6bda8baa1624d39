package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type storeErr struct{}

func (*storeErr) Error() string { return "store down" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", goerrors.New("x"), "errors_errorstring"},
		{"wrapped pointer type", fmt.Errorf("get: %w", &storeErr{}), "errors_storeerr"},
		{"joined", goerrors.Join(&storeErr{}, goerrors.New("second")), "errors_storeerr"},
		{"context", fmt.Errorf("ping: %w", context.DeadlineExceeded), "context_deadlineexceedederror"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
