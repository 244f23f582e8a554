package admin

import (
	"fmt"
	"net/http"

	"connectrpc.com/grpcreflect"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const adminFileName = "cake/v1/admin.proto"

// adminFile describes cake.v1.AdminService the way protoc would. It backs
// connect.WithSchema and server reflection.
var adminFile = mustBuildAdminFile()

// Files holds the admin descriptor and the well-known types it imports.
var Files = mustBuildFiles()

func adminFileProto() *descriptorpb.FileDescriptorProto {
	method := func(name, output string, noSideEffects bool) *descriptorpb.MethodDescriptorProto {
		m := &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(".google.protobuf.Empty"),
			OutputType: proto.String(output),
		}
		if noSideEffects {
			m.Options = &descriptorpb.MethodOptions{
				IdempotencyLevel: descriptorpb.MethodOptions_NO_SIDE_EFFECTS.Enum(),
			}
		}
		return m
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(adminFileName),
		Package: proto.String("cake.v1"),
		Syntax:  proto.String("proto3"),
		Dependency: []string{
			emptypb.File_google_protobuf_empty_proto.Path(),
			structpb.File_google_protobuf_struct_proto.Path(),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("AdminService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("Reset", ".google.protobuf.Empty", false),
				method("GetState", ".google.protobuf.Struct", true),
			},
		}},
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/mcdev12/birthdaycake/go/internal/cake/admin"),
		},
	}
}

func mustBuildAdminFile() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(adminFileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("admin: build %s: %v", adminFileName, err))
	}
	return fd
}

func mustBuildFiles() *protoregistry.Files {
	files := new(protoregistry.Files)
	for _, fd := range []protoreflect.FileDescriptor{
		emptypb.File_google_protobuf_empty_proto,
		structpb.File_google_protobuf_struct_proto,
		adminFile,
	} {
		if err := files.RegisterFile(fd); err != nil {
			panic(fmt.Sprintf("admin: register %s: %v", fd.Path(), err))
		}
	}
	return files
}

func methodDescriptor(name protoreflect.Name) protoreflect.MethodDescriptor {
	return adminFile.Services().ByName("AdminService").Methods().ByName(name)
}

// NewReflectionHandlers returns gRPC server reflection handlers (v1 and
// v1alpha) describing the admin service, keyed by mount path.
func NewReflectionHandlers() map[string]http.Handler {
	reflector := grpcreflect.NewReflector(
		grpcreflect.NamerFunc(func() []string { return []string{AdminServiceName} }),
		grpcreflect.WithDescriptorResolver(Files),
	)
	handlers := make(map[string]http.Handler, 2)
	path, handler := grpcreflect.NewHandlerV1(reflector)
	handlers[path] = handler
	path, handler = grpcreflect.NewHandlerV1Alpha(reflector)
	handlers[path] = handler
	return handlers
}
