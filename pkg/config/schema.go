package config

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// configField is a single entry of the fig.Config message; its name is also the flag name.
type configField struct {
	name string
	kind descriptorpb.FieldDescriptorProto_Type
}

const (
	kindBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	kindInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
	kindString = descriptorpb.FieldDescriptorProto_TYPE_STRING
)

// configSchema lists every flag that can be set from the config file. Field numbers follow the
// slice order, so new fields must be appended to keep existing numbers stable.
// Durations are strings in Go's time.ParseDuration format, e.g. "90s".
var configSchema = []configField{
	// Logging.
	{name: "log_handler_type", kind: kindString},
	{name: "log_level", kind: kindString},
	// Cache store.
	{name: "enable_cache", kind: kindBool},
	{name: "cache_name", kind: kindString},
	{name: "cache_ttl", kind: kindString},
	{name: "cache_max_size", kind: kindInt64},
	{name: "cache_cleanup_interval", kind: kindString},
	{name: "cache_cleanup_schedule", kind: kindString},
	{name: "cache_coalesce", kind: kindBool},
	{name: "cache_persistent", kind: kindBool},
	{name: "cache_slot_name", kind: kindString},
	// Durable slot media.
	{name: "persist_backend", kind: kindString},
	{name: "persist_timeout", kind: kindString},
	{name: "persist_dir", kind: kindString},
	{name: "persist_sql_driver", kind: kindString},
	{name: "persist_sql_dsn", kind: kindString},
	{name: "persist_s3_bucket", kind: kindString},
	{name: "persist_s3_prefix", kind: kindString},
	{name: "persist_s3_region", kind: kindString},
	{name: "persist_s3_endpoint", kind: kindString},
	// Ports.
	{name: "address", kind: kindString},
	{name: "metrics_address", kind: kindString},
}

var (
	configDescriptorOnce sync.Once
	configDescriptor     protoreflect.MessageDescriptor
	configDescriptorErr  error
)

// getConfigDescriptor builds (once) the descriptor of the fig.Config message out of configSchema.
// proto2 syntax is used on purpose so explicitly written zero values (e.g. `enable_cache: false`)
// keep their presence and are applied to flags.
func getConfigDescriptor() (protoreflect.MessageDescriptor, error) {
	configDescriptorOnce.Do(func() {
		message := &descriptorpb.DescriptorProto{Name: proto.String("Config")}
		for i, field := range configSchema {
			message.Field = append(message.Field, &descriptorpb.FieldDescriptorProto{
				Name:   proto.String(field.name),
				Number: proto.Int32(int32(i + 1)),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   field.kind.Enum(),
			})
		}
		file, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
			Name:        proto.String("fig/config.proto"),
			Package:     proto.String("fig"),
			Syntax:      proto.String("proto2"),
			MessageType: []*descriptorpb.DescriptorProto{message},
		}, protoregistry.GlobalFiles)
		if err != nil {
			configDescriptorErr = fmt.Errorf("failed to build config descriptor: %w", err)
			return
		}
		configDescriptor = file.Messages().ByName("Config")
	})
	return configDescriptor, configDescriptorErr
}
