/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
)

// DynamoAPI is the part of the DynamoDB client the store uses.
type DynamoAPI interface {
	sdk.ScanAPIClient
	PutItem(ctx context.Context, in *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	GetItem(ctx context.Context, in *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
}

// DynamoConfig holds the connection settings of NewDynamoClient.
type DynamoConfig struct {
	Region    string `json:"region" yaml:"region"`
	AccessKey string `json:"accessKey" yaml:"accessKey"`
	SecretKey string `json:"secretKey" yaml:"secretKey"`
	// Endpoint overrides the service endpoint, e.g. a local DynamoDB.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// NewDynamoClient builds a DynamoDB client. Static credentials are used when
// both keys are set, otherwise the default credential chain applies.
func NewDynamoClient(ctx context.Context, cfg DynamoConfig) (*sdk.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// DynamoProvider maps every model to a DynamoDB table named prefix+table,
// partitioned by the "id" attribute.
type DynamoProvider struct {
	client DynamoAPI
	prefix string
}

// NewDynamoProvider returns a provider over client.
func NewDynamoProvider(client DynamoAPI, prefix string) *DynamoProvider {
	return &DynamoProvider{client: client, prefix: prefix}
}

func (p *DynamoProvider) Repository(table schema.Table) (Repository, error) {
	if p.client == nil {
		return nil, fmt.Errorf("dynamodb provider for %s: nil client", table.Name())
	}
	return &dynamoRepository{
		client:    p.client,
		table:     table,
		tableName: p.prefix + table.TableName(),
	}, nil
}

// dynamoRepository filters, orders and pages in process over a full Scan.
// Scan order is stable for an unchanged table, which keeps page reads
// deterministic.
type dynamoRepository struct {
	client    DynamoAPI
	table     schema.Table
	tableName string
}

var idName = map[string]string{"#id": schema.IDField}

func (r *dynamoRepository) Name() string        { return r.table.Name() }
func (r *dynamoRepository) Table() schema.Table { return r.table }

func (r *dynamoRepository) HasFeature(f Feature) bool { return FeaturePagedRead.Has(f) }

func (r *dynamoRepository) Insert(ctx context.Context, record types.Record) (types.Record, error) {
	id, ok := record[schema.IDField]
	if !ok || id == nil {
		return nil, fmt.Errorf("insert into %s: missing %q", r.tableName, schema.IDField)
	}
	if err := r.put(ctx, record, "attribute_not_exists(#id)"); err != nil {
		var cfe *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return nil, fmt.Errorf("insert into %s: %w: %v", r.tableName, ErrConflict, id)
		}
		return nil, err
	}
	return cloneRecord(record), nil
}

func (r *dynamoRepository) FindOne(ctx context.Context, where filter.Native) (types.Record, error) {
	rows, err := r.Find(ctx, FindOptions{Where: where, Limit: 1})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *dynamoRepository) Find(ctx context.Context, opts FindOptions) ([]types.Record, error) {
	rows, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	return selectRows(rows, opts)
}

func (r *dynamoRepository) Count(ctx context.Context, where filter.Native) (int, error) {
	rows, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}
	matched, err := matchRows(rows, where)
	return len(matched), err
}

func (r *dynamoRepository) Update(ctx context.Context, id any, values types.Record) (types.Record, error) {
	key, err := r.key(id)
	if err != nil {
		return nil, err
	}
	out, err := r.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem %s: %w", r.tableName, err)
	}
	if out.Item == nil {
		return nil, &NotFoundError{Table: r.tableName, ID: id}
	}
	row, err := r.decode(out.Item)
	if err != nil {
		return nil, err
	}
	updated := applyValues(row, values)
	if err := r.put(ctx, updated, "attribute_exists(#id)"); err != nil {
		var cfe *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return nil, &NotFoundError{Table: r.tableName, ID: id}
		}
		return nil, err
	}
	return updated, nil
}

func (r *dynamoRepository) UpdateMany(ctx context.Context, where filter.Native, values types.Record) (int, error) {
	rows, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}
	matched, err := matchRows(rows, where)
	if err != nil {
		return 0, err
	}
	for i, row := range matched {
		if err := r.put(ctx, applyValues(row, values), "attribute_exists(#id)"); err != nil {
			return i, err
		}
	}
	return len(matched), nil
}

func (r *dynamoRepository) Delete(ctx context.Context, id any) error {
	key, err := r.key(id)
	if err != nil {
		return err
	}
	_, err = r.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      key,
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: idName,
	})
	if err != nil {
		var cfe *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return &NotFoundError{Table: r.tableName, ID: id}
		}
		return fmt.Errorf("DeleteItem %s: %w", r.tableName, err)
	}
	return nil
}

func (r *dynamoRepository) DeleteMany(ctx context.Context, where filter.Native) (int, error) {
	rows, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}
	matched, err := matchRows(rows, where)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range matched {
		err := r.Delete(ctx, row[schema.IDField])
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *dynamoRepository) put(ctx context.Context, record types.Record, condition string) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s item: %w", r.tableName, err)
	}
	_, err = r.client.PutItem(ctx, &sdk.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String(condition),
		ExpressionAttributeNames: idName,
	})
	if err != nil {
		return fmt.Errorf("PutItem %s: %w", r.tableName, err)
	}
	return nil
}

func (r *dynamoRepository) scan(ctx context.Context) ([]types.Record, error) {
	var rows []types.Record
	p := sdk.NewScanPaginator(r.client, &sdk.ScanInput{TableName: aws.String(r.tableName)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("Scan %s: %w", r.tableName, err)
		}
		for _, item := range page.Items {
			row, err := r.decode(item)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	// Scan order varies between calls; order by id so page reads line up.
	sort.SliceStable(rows, func(i, j int) bool {
		return filter.SortCompare(rows[i][schema.IDField], rows[j][schema.IDField]) < 0
	})
	return rows, nil
}

func (r *dynamoRepository) decode(item map[string]ddbtypes.AttributeValue) (types.Record, error) {
	var raw map[string]any
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s item: %w", r.tableName, err)
	}
	return r.table.Coerce(raw), nil
}

func (r *dynamoRepository) key(id any) (map[string]ddbtypes.AttributeValue, error) {
	av, err := attributevalue.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s key: %w", r.tableName, err)
	}
	return map[string]ddbtypes.AttributeValue{schema.IDField: av}, nil
}
