package blobhttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/keithlinneman/httpfilters/internal/capture"
	"github.com/keithlinneman/httpfilters/internal/health"
	"github.com/keithlinneman/httpfilters/internal/log"
	"github.com/keithlinneman/httpfilters/internal/otelx"
	"github.com/keithlinneman/httpfilters/internal/pathutil"
	"github.com/keithlinneman/httpfilters/internal/streams"
	"github.com/keithlinneman/httpfilters/internal/xerrors"
)

// Client is the subset of *s3.Client the handler uses.
type Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Metrics is implemented by the metrics package.
type Metrics interface {
	AddBlobBytes(n int64)
	IncBlobError(stage string)
}

type Options struct {
	Bucket string
	// Prefix is prepended to the request key with a "/" separator.
	Prefix     string
	BufferSize int
	Metrics    Metrics
}

type Handler struct {
	client Client
	opts   Options
}

// NewS3Client loads the default AWS config chain, pinned to region when set.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var optFns []func(*config.LoadOptions) error
	if region != "" {
		optFns = append(optFns, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, xerrors.Wrap(err, "load AWS config")
	}
	return s3.NewFromConfig(awsCfg), nil
}

func New(client Client, opts Options) (*Handler, error) {
	if client == nil {
		return nil, xerrors.New("blobhttp: client is required")
	}
	if opts.Bucket == "" {
		return nil, xerrors.New("blobhttp: bucket is required")
	}
	opts.Prefix = strings.Trim(opts.Prefix, "/")
	return &Handler{client: client, opts: opts}, nil
}

// Key maps a request wildcard to an object key. Keys that could escape the
// prefix are rejected.
func (h *Handler) Key(rel string) (string, bool) {
	if !pathutil.ValidRel(rel) {
		return "", false
	}
	if h.opts.Prefix == "" {
		return rel, true
	}
	return h.opts.Prefix + "/" + rel, true
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sink := capture.HTTPSink{W: w}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		sink.SetHeader("Allow", "GET, HEAD")
		_ = sink.SendError(http.StatusMethodNotAllowed)
		return
	}
	key, ok := h.Key(chi.URLParam(r, "*"))
	if !ok {
		_ = sink.SendError(http.StatusNotFound)
		return
	}

	ctx, span := otelx.Tracer().Start(r.Context(), "blob "+r.Method)
	defer span.End()
	span.SetAttributes(
		attribute.String("aws.s3.bucket", h.opts.Bucket),
		attribute.String("aws.s3.key", key),
	)
	L := log.FromContext(ctx)

	if r.Method == http.MethodHead {
		size, err := h.Size(ctx, key)
		if err != nil {
			h.fail(ctx, sink, L, "head", err)
			span.RecordError(err)
			return
		}
		sink.SetHeader("Content-Length", strconv.FormatInt(size, 10))
		sink.SetStatus(http.StatusOK)
		return
	}

	out, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		h.fail(ctx, sink, L, "get", err)
		span.RecordError(err)
		return
	}

	if out.ContentType != nil {
		sink.SetHeader("Content-Type", *out.ContentType)
	} else {
		sink.SetHeader("Content-Type", "application/octet-stream")
	}
	if out.ContentLength != nil {
		sink.SetHeader("Content-Length", strconv.FormatInt(*out.ContentLength, 10))
	}
	if out.ETag != nil {
		sink.SetHeader("ETag", *out.ETag)
	}
	if out.LastModified != nil {
		sink.SetDateHeader("Last-Modified", *out.LastModified)
	}
	sink.SetStatus(http.StatusOK)

	// headers are committed; a copy failure can only cut the body short.
	// w belongs to the server, so it is hidden from the force-close.
	n, err := streams.Copy(out.Body, struct{ io.Writer }{w}, h.opts.BufferSize, true)
	if h.opts.Metrics != nil {
		h.opts.Metrics.AddBlobBytes(n)
	}
	span.SetAttributes(attribute.Int64("http.response.body.size", n))
	if err != nil {
		if h.opts.Metrics != nil {
			h.opts.Metrics.IncBlobError("copy")
		}
		span.SetStatus(codes.Error, "copy")
		span.RecordError(err)
		L.Warn(ctx, "blob copy interrupted", "key", key, "bytes", n, "err", err)
	}
}

// Size reports the object length from HeadObject, falling back to draining
// the body into a streams.Null when the store omits Content-Length.
func (h *Handler) Size(ctx context.Context, key string) (int64, error) {
	head, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, xerrors.Wrapf(err, "head s3://%s/%s", h.opts.Bucket, key)
	}
	if head.ContentLength != nil {
		return *head.ContentLength, nil
	}

	out, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, xerrors.Wrapf(err, "get s3://%s/%s", h.opts.Bucket, key)
	}
	var null streams.Null
	if _, err := streams.Copy(out.Body, &null, h.opts.BufferSize, true); err != nil {
		return 0, xerrors.Wrapf(err, "measure s3://%s/%s", h.opts.Bucket, key)
	}
	return null.Size(), nil
}

// Probe checks that the bucket is reachable, for readiness.
func (h *Handler) Probe() health.CheckFunc {
	return func(ctx context.Context) error {
		_, err := h.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(h.opts.Bucket)})
		if err != nil {
			return xerrors.Wrapf(err, "bucket %s unreachable", h.opts.Bucket)
		}
		return nil
	}
}

func (h *Handler) fail(ctx context.Context, sink capture.HTTPSink, L log.Logger, stage string, err error) {
	if isNotFound(err) {
		_ = sink.SendError(http.StatusNotFound)
		return
	}
	if h.opts.Metrics != nil {
		h.opts.Metrics.IncBlobError(stage)
	}
	L.Error(ctx, err, "blob fetch failed", "stage", stage)
	_ = sink.SendError(http.StatusBadGateway)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
