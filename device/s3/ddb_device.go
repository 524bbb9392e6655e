package s3

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/bcache/device"
)

// DDBClient is the subset of the DynamoDB API used by DynamoDevice.
type DDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDevice stores blocks as DynamoDB items.
//
// Table schema:
//   - Partition key: volume (string)
//   - Sort key: blockno (number)
//   - Attribute data (binary): the block envelope
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name bcache-blocks \
//	  --attribute-definitions AttributeName=volume,AttributeType=S AttributeName=blockno,AttributeType=N \
//	  --key-schema AttributeName=volume,KeyType=HASH AttributeName=blockno,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DynamoDevice struct {
	client DDBClient
	table  string
	volume string
	codec  device.Codec
}

// NewDynamoDevice creates a device for volume in table.
func NewDynamoDevice(client DDBClient, table, volume string, codec device.Codec) *DynamoDevice {
	return &DynamoDevice{
		client: client,
		table:  table,
		volume: volume,
		codec:  codec,
	}
}

func (d *DynamoDevice) itemKey(blockno uint32) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"volume":  &types.AttributeValueMemberS{Value: d.volume},
		"blockno": &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(blockno), 10)},
	}
}

// ReadBlock implements device.BlockDevice.
func (d *DynamoDevice) ReadBlock(ctx context.Context, blockno uint32, p []byte) error {
	if len(p) != device.BlockSize {
		return device.ErrShortBlock
	}

	resp, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.itemKey(blockno),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("dynamodb: get block %d: %w", blockno, err)
	}
	if len(resp.Item) == 0 {
		clear(p)
		return nil
	}

	attr, ok := resp.Item["data"].(*types.AttributeValueMemberB)
	if !ok {
		return fmt.Errorf("dynamodb: block %d: %w", blockno, device.ErrBadEnvelope)
	}
	if err := device.DecodeBlock(attr.Value, p); err != nil {
		return fmt.Errorf("dynamodb: block %d: %w", blockno, err)
	}
	return nil
}

// WriteBlock implements device.BlockDevice.
func (d *DynamoDevice) WriteBlock(ctx context.Context, blockno uint32, p []byte) error {
	if len(p) != device.BlockSize {
		return device.ErrShortBlock
	}

	data, err := device.EncodeBlock(d.codec, p)
	if err != nil {
		return err
	}

	item := d.itemKey(blockno)
	item["data"] = &types.AttributeValueMemberB{Value: data}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamodb: put block %d: %w", blockno, err)
	}
	return nil
}
