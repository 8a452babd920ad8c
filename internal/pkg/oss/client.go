package oss

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/clone_gen_server/config"
)

type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// UploadBundle 上传生成产物的 zip 包
func (c *Client) UploadBundle(slug string, data []byte) (string, error) {
	objectKey := fmt.Sprintf("bundles/%s/%d.zip", slug, time.Now().Unix())

	err := c.bucket.PutObject(objectKey, bytes.NewReader(data), oss.ContentType("application/zip"))
	if err != nil {
		return "", fmt.Errorf("failed to upload bundle: %w", err)
	}

	return c.GetURL(objectKey), nil
}

// DeleteBundles 删除克隆产物的全部对象，删除任务时调用
func (c *Client) DeleteBundles(slug string) error {
	prefix := fmt.Sprintf("bundles/%s/", slug)

	marker := ""
	for {
		result, err := c.bucket.ListObjects(oss.Prefix(prefix), oss.Marker(marker))
		if err != nil {
			return fmt.Errorf("failed to list bundle objects: %w", err)
		}

		for _, object := range result.Objects {
			if err := c.bucket.DeleteObject(object.Key); err != nil {
				return fmt.Errorf("failed to delete object %s: %w", object.Key, err)
			}
		}

		if !result.IsTruncated {
			return nil
		}
		marker = result.NextMarker
	}
}

// GetURL 拼接对象访问地址，优先使用 CDN 域名
func (c *Client) GetURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", strings.TrimSuffix(c.cdnDomain, "/"), objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, c.client.Config.Endpoint, objectKey)
}
