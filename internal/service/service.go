// Package service holds the domain engines. Every failure a caller should
// see is a grpc status error; anything else is an internal fault.
package service

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"neurocare-api/internal/model"
	"neurocare-api/internal/store"
)

// TxStore is the store surface the engines need: direct queries plus a
// scoped transaction.
type TxStore interface {
	store.Querier
	Atomic(ctx context.Context, fn func(q store.Querier) error) error
}

var errAdminsOnly = status.Error(codes.PermissionDenied, "Access denied. Admins only.")

func requireAdmin(p model.Principal) error {
	if p.Role != model.RoleAdmin {
		return errAdminsOnly
	}
	return nil
}

// notFound turns store.ErrNotFound into a NotFound status with msg and passes
// other errors through.
func notFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return status.Error(codes.NotFound, msg)
	}
	return err
}
