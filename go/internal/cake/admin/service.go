// Package admin exposes operator controls for a running cake server over
// Connect: resetting the blown-out candles and reading the aggregate state.
//
// The service uses protobuf well-known types only, so no generated stubs are
// needed. The cake.v1.AdminService descriptor is assembled in schema.go and
// served through gRPC reflection.
package admin

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// AdminServiceName is the fully-qualified name of the admin service.
	AdminServiceName = "cake.v1.AdminService"

	AdminServiceResetProcedure    = "/cake.v1.AdminService/Reset"
	AdminServiceGetStateProcedure = "/cake.v1.AdminService/GetState"
)

// Controller is what the admin service needs from the running server
type Controller interface {
	Reset()
	State() serverengine.State
}

// Service implements the admin RPCs
type Service struct {
	controller Controller
}

// NewService creates a new admin service
func NewService(controller Controller) *Service {
	return &Service{
		controller: controller,
	}
}

// Reset relights every candle
func (s *Service) Reset(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[emptypb.Empty], error) {
	s.controller.Reset()
	log.Info().Str("peer", req.Peer().Addr).Msg("candles reset via admin")
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// GetState returns the current aggregate
func (s *Service) GetState(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	msg, err := StateToStruct(s.controller.State())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// NewAdminServiceHandler builds an HTTP handler for every admin procedure.
// It returns the path prefix to mount the handler on.
func NewAdminServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	resetHandler := connect.NewUnaryHandler(
		AdminServiceResetProcedure,
		svc.Reset,
		connect.WithSchema(methodDescriptor("Reset")),
		connect.WithHandlerOptions(opts...),
	)
	getStateHandler := connect.NewUnaryHandler(
		AdminServiceGetStateProcedure,
		svc.GetState,
		connect.WithSchema(methodDescriptor("GetState")),
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
		connect.WithHandlerOptions(opts...),
	)

	return "/" + AdminServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AdminServiceResetProcedure:
			resetHandler.ServeHTTP(w, r)
		case AdminServiceGetStateProcedure:
			getStateHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// StateToStruct converts the aggregate to a protobuf Struct.
func StateToStruct(state serverengine.State) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(map[string]any{
		"clientCount":         state.ClientCount,
		"candleCount":         state.CandleCount,
		"blownOutCandleCount": state.BlownOutCandleCount,
		"totalWindForce":      state.TotalWindForce,
		"targetWindForce":     state.TargetWindForce,
		"msAtTargetWindForce": state.MsAtTargetWindForce,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert state: %w", err)
	}
	return msg, nil
}

// StateFromStruct is the inverse of StateToStruct. Missing fields are zero.
func StateFromStruct(msg *structpb.Struct) serverengine.State {
	fields := msg.GetFields()
	num := func(key string) float64 {
		return fields[key].GetNumberValue()
	}
	return serverengine.State{
		ClientCount:         uint32(num("clientCount")),
		CandleCount:         uint32(num("candleCount")),
		BlownOutCandleCount: uint32(num("blownOutCandleCount")),
		TotalWindForce:      num("totalWindForce"),
		TargetWindForce:     num("targetWindForce"),
		MsAtTargetWindForce: num("msAtTargetWindForce"),
	}
}
