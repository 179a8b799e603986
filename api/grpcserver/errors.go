package grpcserver

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"econia/domain/errs"
)

func invalidArgument(format string, args ...any) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf(format, args...))
}

// toStatus maps a service error onto a gRPC status. Validation errors are
// the caller's to fix, rejections are policy refusals of a well formed
// order, and invariant violations are server faults.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, errs.ErrMarketNotFound), errors.Is(err, errs.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errs.ErrNotOrderOwner), errors.Is(err, errs.ErrInvalidCapability):
		return status.Error(codes.PermissionDenied, err.Error())
	}

	switch errs.ClassOf(err) {
	case errs.ClassValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case errs.ClassRejection:
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
