package blob

import (
	"context"
	"fmt"
)

// Options выбирают драйвер хранилища.
type Options struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// Open создаёт хранилище по драйверу: fs (по умолчанию), s3, memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := Driver(opts.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", opts.Driver)
	}
}
