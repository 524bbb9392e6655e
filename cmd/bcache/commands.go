package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/bcache"
	bs3 "github.com/hupe1980/bcache/device/s3"
	"github.com/hupe1980/bcache/testutil"
)

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "run a random block workload against the cache",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "ops", Value: 100000, Usage: "number of operations"},
			&cli.IntFlag{Name: "workers", Value: 4, Usage: "concurrent workers; must be below the pool size"},
			&cli.IntFlag{Name: "blocks", Value: 256, Usage: "block numbers are drawn from [0, blocks)"},
			&cli.Float64Flag{Name: "write-ratio", Value: 0.2, Usage: "fraction of operations that write"},
			&cli.Float64Flag{Name: "skew", Value: 1.1, Usage: "Zipf exponent of block popularity, 0 for uniform"},
			&cli.Int64Flag{Name: "seed", Value: 1, Usage: "workload seed"},
		},
		Action: withCache(func(e *env, ctx *cli.Context) error {
			workers := ctx.Int("workers")
			if workers < 1 || workers >= e.cache.NumBuffers() {
				return fmt.Errorf("workers must be in [1, %d)", e.cache.NumBuffers())
			}

			ops := testutil.NewRNG(ctx.Int64("seed")).Workload(testutil.WorkloadConfig{
				Ops:        ctx.Int("ops"),
				Devices:    e.devices.table.IDs(),
				Blocks:     ctx.Int("blocks"),
				WriteRatio: ctx.Float64("write-ratio"),
				Skew:       ctx.Float64("skew"),
			})

			start := time.Now()
			if err := runWorkload(ctx.Context, e.cache, ops, workers); err != nil {
				return err
			}
			elapsed := time.Since(start)

			st := e.metrics.GetStats()
			fmt.Fprintf(ctx.App.Writer, "ops:       %d in %s (%.0f ops/s)\n", len(ops), elapsed.Round(time.Millisecond), float64(len(ops))/elapsed.Seconds())
			fmt.Fprintf(ctx.App.Writer, "hits:      %d (%.1f%%)\n", st.Hits, 100*st.HitRatio())
			fmt.Fprintf(ctx.App.Writer, "misses:    %d\n", st.Misses)
			fmt.Fprintf(ctx.App.Writer, "writes:    %d\n", st.WriteCount)
			fmt.Fprintf(ctx.App.Writer, "recycles:  %d\n", st.Recycles)
			fmt.Fprintf(ctx.App.Writer, "steals:    %d\n", st.Steals)
			return e.cache.Check()
		}),
	}
}

// runWorkload replays ops on workers goroutines. Writes stamp the block with
// a version; reads verify that a stamped block belongs to the block read.
func runWorkload(ctx context.Context, c *bcache.Cache, ops []testutil.Op, workers int) error {
	g, ctx := errgroup.WithContext(ctx)

	for w, part := range testutil.Split(ops, workers) {
		g.Go(func() error {
			for i, op := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := apply(ctx, c, op, uint64(w)<<32|uint64(i)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

var errCorruptBlock = errors.New("block holds another block's data")

func apply(ctx context.Context, c *bcache.Cache, op testutil.Op, version uint64) error {
	b, err := c.Read(ctx, op.Dev, op.Blockno)
	if err != nil {
		return err
	}
	defer c.Release(b)

	if dev, blockno, _, ok := testutil.ParseBlock(b.Data()); ok && (dev != op.Dev || blockno != op.Blockno) {
		return fmt.Errorf("%w: dev %d block %d has dev %d block %d", errCorruptBlock, op.Dev, op.Blockno, dev, blockno)
	}

	if op.Kind == testutil.OpWrite {
		testutil.FillBlock(b.Data(), op.Dev, op.Blockno, version)
		return c.Write(ctx, b)
	}
	return nil
}

func catCommand() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "print a block",
		ArgsUsage: "DEV BLOCKNO",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "hex", Usage: "print a hex dump instead of raw bytes"},
		},
		Action: withCache(func(e *env, ctx *cli.Context) error {
			dev, blockno, err := blockArgs(ctx)
			if err != nil {
				return err
			}

			b, err := e.cache.Read(ctx.Context, dev, blockno)
			if err != nil {
				return err
			}
			defer e.cache.Release(b)

			if ctx.Bool("hex") {
				_, err = io.WriteString(ctx.App.Writer, hex.Dump(b.Data()))
			} else {
				_, err = ctx.App.Writer.Write(b.Data())
			}
			return err
		}),
	}
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "write stdin (up to one block, zero padded) to a block",
		ArgsUsage: "DEV BLOCKNO",
		Action: withCache(func(e *env, ctx *cli.Context) error {
			dev, blockno, err := blockArgs(ctx)
			if err != nil {
				return err
			}
			return putBlock(ctx.Context, e.cache, dev, blockno, os.Stdin)
		}),
	}
}

func putBlock(ctx context.Context, c *bcache.Cache, dev, blockno uint32, r io.Reader) error {
	b, err := c.Read(ctx, dev, blockno)
	if err != nil {
		return err
	}
	defer c.Release(b)

	data := b.Data()
	n, err := io.ReadFull(r, data)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}
	clear(data[n:])

	return c.Write(ctx, b)
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "upload blocks [0, blocks) of a device to S3 as one image",
		ArgsUsage: "DEV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bucket", Required: true, Usage: "destination bucket"},
			&cli.StringFlag{Name: "key", Required: true, Usage: "destination object key"},
			&cli.UintFlag{Name: "blocks", Required: true, Usage: "number of blocks to export"},
			&cli.StringFlag{Name: "endpoint", Usage: "custom S3 endpoint"},
		},
		Action: withCache(func(e *env, ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return fmt.Errorf("expected DEV, got %d arguments", ctx.NArg())
			}
			dev, err := strconv.ParseUint(ctx.Args().First(), 10, 32)
			if err != nil {
				return fmt.Errorf("device id: %w", err)
			}

			client, err := e.devices.s3Client(ctx.Context, e.cfg.AWSRegion, ctx.String("endpoint"))
			if err != nil {
				return err
			}

			n := uint32(ctx.Uint("blocks"))
			if err := exportImage(ctx.Context, e.cache, client, uint32(dev), n, ctx.String("bucket"), ctx.String("key")); err != nil {
				return err
			}
			e.logger.Info("exported image", "dev", dev, "blocks", n, "bucket", ctx.String("bucket"), "key", ctx.String("key"))
			return nil
		}),
	}
}

// writeImage streams blocks [0, n) of dev through the cache into w.
func writeImage(ctx context.Context, c *bcache.Cache, dev uint32, n uint32, w io.Writer) error {
	for blockno := range n {
		b, err := c.Read(ctx, dev, blockno)
		if err != nil {
			return err
		}
		_, err = w.Write(b.Data())
		c.Release(b)
		if err != nil {
			return err
		}
	}
	return nil
}

// exportImage uploads blocks [0, n) of dev as one S3 object.
func exportImage(ctx context.Context, c *bcache.Cache, client manager.UploadAPIClient, dev, n uint32, bucket, key string) error {
	pr, pw := io.Pipe()
	g, ctx := errgroup.WithContext(ctx)

	var readErr error
	g.Go(func() error {
		readErr = writeImage(ctx, c, dev, n, pw)
		pw.CloseWithError(readErr)
		return readErr
	})
	g.Go(func() error {
		err := bs3.UploadImage(ctx, client, bucket, key, pr)
		pr.CloseWithError(err)
		return err
	})

	err := g.Wait()
	if readErr != nil {
		// The upload fails too, with a less useful error.
		return readErr
	}
	return err
}
