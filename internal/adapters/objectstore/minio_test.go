package objectstore

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(minio.ErrorResponse{Code: "NoSuchKey"}) {
		t.Error("expected NoSuchKey to be not found")
	}
	if IsNotFound(minio.ErrorResponse{Code: "AccessDenied"}) {
		t.Error("expected AccessDenied not to be not found")
	}
	if IsNotFound(errors.New("boom")) {
		t.Error("expected plain error not to be not found")
	}
}
