// Package telemetry 提供链路追踪和 Prometheus 指标。
package telemetry

import (
	"context"

	"github.com/cmstar/go-awsapi/config"
	"github.com/cmstar/go-errx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cmstar/go-awsapi"

// 常用的 span 属性。
var (
	AttrAction    = attribute.Key("awsapi.action")
	AttrAccessKey = attribute.Key("awsapi.access_key")
	AttrBucket    = attribute.Key("s3.bucket")
	AttrKey       = attribute.Key("s3.key")
	AttrEngine    = attribute.Key("awsapi.engine")
	AttrCommand   = attribute.Key("awsapi.engine.command")
)

// ShutdownFunc 用于关闭 tracer ，将缓冲的 span 发送出去。
type ShutdownFunc func(ctx context.Context) error

// InitTracer 按配置初始化全局的 TracerProvider 。未启用时不做任何事，返回的 ShutdownFunc 为空操作。
func InitTracer(ctx context.Context, cfg config.TracingConfig) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, errx.Wrap("create otlp exporter", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, errx.Wrap("create otel resource", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Tracer 返回当前全局 TracerProvider 上的 tracer 。
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan 开始一个 span 。调用者负责调用 span.End() 。
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError 在 err 非 nil 时将其记录在 span 上，并标记 span 失败。
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
