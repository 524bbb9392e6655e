package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/bcache/device"
	bminio "github.com/hupe1980/bcache/device/minio"
	bs3 "github.com/hupe1980/bcache/device/s3"
	"github.com/hupe1980/bcache/resource"
)

// devices holds the opened device table and whatever must be closed.
type devices struct {
	table   *device.Table
	closers []io.Closer

	awsCfg *aws.Config
	s3     *awss3.Client // shared client for the default endpoint
}

func (ds *devices) Close() error {
	var errs []error
	for _, c := range ds.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// scanner is implemented by object-store devices that index written blocks.
type scanner interface {
	Scan(ctx context.Context) error
}

func openDevices(ctx context.Context, cfg *Config, rc *resource.Controller) (*devices, error) {
	ds := &devices{table: device.NewTable()}

	for _, dc := range cfg.Devices {
		if err := ds.add(ctx, dc, cfg.AWSRegion, rc); err != nil {
			_ = ds.Close()
			return nil, fmt.Errorf("device %d (%s): %w", dc.ID, dc.Kind, err)
		}
	}

	return ds, nil
}

func (ds *devices) add(ctx context.Context, dc DeviceConfig, region string, rc *resource.Controller) error {
	dev, err := ds.open(ctx, dc, region)
	if err != nil {
		return err
	}

	if s, ok := dev.(scanner); ok {
		if err := s.Scan(ctx); err != nil {
			return err
		}
	}

	if rc != nil {
		dev = device.NewThrottled(dev, rc)
	}
	return ds.table.Register(dc.ID, dev)
}

func (ds *devices) open(ctx context.Context, dc DeviceConfig, region string) (device.BlockDevice, error) {
	codec, err := device.ParseCodec(dc.Codec)
	if err != nil {
		return nil, err
	}

	switch dc.Kind {
	case KindMemory:
		return device.NewMemoryDevice(dc.Blocks), nil

	case KindFile:
		f, err := device.OpenFile(dc.Path, dc.Blocks)
		if err != nil {
			return nil, err
		}
		ds.closers = append(ds.closers, f)
		return f, nil

	case KindS3:
		client, err := ds.s3Client(ctx, region, dc.Endpoint)
		if err != nil {
			return nil, err
		}
		return bs3.NewDevice(client, dc.Bucket, dc.Prefix, bs3.WithCodec(codec)), nil

	case KindDynamoDB:
		c, err := ds.loadAWS(ctx, region)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(c, func(o *dynamodb.Options) {
			if dc.Endpoint != "" {
				o.BaseEndpoint = aws.String(dc.Endpoint)
			}
		})
		return bs3.NewDynamoDevice(client, dc.Table, dc.Volume, codec), nil

	case KindMinio:
		client, err := miniogo.New(dc.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(dc.AccessKey, dc.SecretKey, ""),
			Secure: dc.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return bminio.NewDevice(client, dc.Bucket, dc.Prefix, codec), nil
	}

	return nil, fmt.Errorf("unknown kind %q", dc.Kind)
}

// loadAWS loads the default AWS configuration once.
func (ds *devices) loadAWS(ctx context.Context, region string) (aws.Config, error) {
	if ds.awsCfg != nil {
		return *ds.awsCfg, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading aws config: %w", err)
	}
	ds.awsCfg = &c
	return c, nil
}

// s3Client returns the shared client, or a dedicated path-style client for
// a custom endpoint.
func (ds *devices) s3Client(ctx context.Context, region, endpoint string) (*awss3.Client, error) {
	if endpoint == "" && ds.s3 != nil {
		return ds.s3, nil
	}

	c, err := ds.loadAWS(ctx, region)
	if err != nil {
		return nil, err
	}

	client := awss3.NewFromConfig(c, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	if endpoint == "" {
		ds.s3 = client
	}
	return client, nil
}
