package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound reports that a bucket or object does not exist.
var ErrNotFound = errors.New("not found")

type ACL string

const (
	ACLPublicRead ACL = "public-read"
	ACLPrivate    ACL = "private"
)

// Client is the object store consumed by the synchronizer. Retries,
// signing and transport concerns live below this interface.
type Client interface {
	// HeadBucket probes the configured bucket. It returns nil when the
	// bucket exists and ErrNotFound when it does not.
	HeadBucket(ctx context.Context) error
	CreateBucket(ctx context.Context) error
	PutBucketACL(ctx context.Context, acl ACL) error
	PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error)
	// GetObject returns the object body, or ErrNotFound when the key does
	// not exist.
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// TransportParams are the fixed set of headers the store understands
// natively. Everything else travels as opaque user metadata.
type TransportParams struct {
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	ContentLength      int64
	ContentMD5         string
	ContentType        string
	Expires            *time.Time
}

type PutObjectParams struct {
	Key      string
	Body     io.Reader
	Size     int64
	ACL      ACL
	Metadata map[string]string
	Params   TransportParams
}

type PutObjectResponse struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}
