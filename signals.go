package remold

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for engine and serializer events.
var (
	SignalEncodeStart         = capitan.NewSignal("remold.encode.start", "Encode operation beginning")
	SignalEncodeComplete      = capitan.NewSignal("remold.encode.complete", "Encode operation finished")
	SignalDecodeStart         = capitan.NewSignal("remold.decode.start", "Decode operation beginning")
	SignalDecodeComplete      = capitan.NewSignal("remold.decode.complete", "Decode operation finished")
	SignalDecodeMigrated      = capitan.NewSignal("remold.decode.migrated", "Stored document migrated to the current version")
	SignalSerializerCreated   = capitan.NewSignal("remold.serializer.created", "Serializer instantiated")
	SignalSerializeStart      = capitan.NewSignal("remold.serialize.start", "Serialize operation beginning")
	SignalSerializeComplete   = capitan.NewSignal("remold.serialize.complete", "Serialize operation finished")
	SignalDeserializeStart    = capitan.NewSignal("remold.deserialize.start", "Deserialize operation beginning")
	SignalDeserializeComplete = capitan.NewSignal("remold.deserialize.complete", "Deserialize operation finished")
)

// Keys for typed event data.
var (
	KeyContentType = capitan.NewStringKey("content_type")
	KeyTypeName    = capitan.NewStringKey("type_name")
	KeySize        = capitan.NewIntKey("size")
	KeyDuration    = capitan.NewDurationKey("duration")
	KeyError       = capitan.NewErrorKey("error")
	KeyFieldCount  = capitan.NewIntKey("field_count")
	KeyFromVersion = capitan.NewIntKey("from_version")
	KeyToVersion   = capitan.NewIntKey("to_version")
)

func emitEncodeStart(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalEncodeStart, KeyTypeName.Field(typeName))
}

func emitEncodeComplete(ctx context.Context, typeName string, duration time.Duration, fieldCount int, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
		KeyFieldCount.Field(fieldCount),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEncodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalEncodeComplete, fields...)
	}
}

func emitDecodeStart(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalDecodeStart, KeyTypeName.Field(typeName))
}

func emitDecodeComplete(ctx context.Context, typeName string, duration time.Duration, fieldCount int, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
		KeyFieldCount.Field(fieldCount),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDecodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDecodeComplete, fields...)
	}
}

func emitDecodeMigrated(ctx context.Context, typeName string, from, to int) {
	capitan.Emit(ctx, SignalDecodeMigrated,
		KeyTypeName.Field(typeName),
		KeyFromVersion.Field(from),
		KeyToVersion.Field(to),
	)
}

func emitSerializerCreated(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalSerializerCreated,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

func emitSerializeStart(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalSerializeStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

func emitSerializeComplete(ctx context.Context, contentType, typeName string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalSerializeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalSerializeComplete, fields...)
	}
}

func emitDeserializeStart(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalDeserializeStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

func emitDeserializeComplete(ctx context.Context, contentType, typeName string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDeserializeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDeserializeComplete, fields...)
	}
}
