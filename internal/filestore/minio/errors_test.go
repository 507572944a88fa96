package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/koustreak/ffiload/internal/errs"
	"github.com/koustreak/ffiload/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"canceled wrapped", fmt.Errorf("list: %w", context.Canceled), errs.ErrKindTimeout},
		{"404", miniogo.ErrorResponse{StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"403", miniogo.ErrorResponse{StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"400", miniogo.ErrorResponse{StatusCode: http.StatusBadRequest}, errs.ErrKindInvalidInput},
		{"no such key", miniogo.ErrorResponse{StatusCode: http.StatusOK, Code: "NoSuchKey"}, errs.ErrKindNotFound},
		{"slow down", miniogo.ErrorResponse{StatusCode: http.StatusServiceUnavailable, Code: "SlowDown"}, errs.ErrKindTimeout},
		{"code before status", miniogo.ErrorResponse{StatusCode: http.StatusNotFound, Code: "AccessDenied"}, errs.ErrKindPermissionDenied},
		{"unknown code falls back to status", miniogo.ErrorResponse{StatusCode: http.StatusNotFound, Code: "Weird"}, errs.ErrKindNotFound},
		{"other", errors.New("connection reset"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "op")
			assert.Equal(t, tt.want, errs.KindOf(err))
		})
	}

	assert.NoError(t, mapError(nil, "op"))
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(context.Background(), filestore.DefaultConfig("", "ak", "sk"))
	assert.True(t, errs.IsInvalidInput(err))
}
