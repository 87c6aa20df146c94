package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// hasS3Code 判断错误链里是否有命中给定 S3 错误码的 minio 响应。
func hasS3Code(err error, codes ...string) bool {
	var minioErr minio.ErrorResponse
	if !errors.As(err, &minioErr) {
		return false
	}
	got := strings.ToLower(strings.TrimSpace(minioErr.Code))
	for _, code := range codes {
		if got == code {
			return true
		}
	}
	return false
}

// IsNoSuchKey 判断错误是否表示对象不存在（S3/MinIO: NoSuchKey/NotFound）。
// 部分网关会把错误包装成纯文本，因此保留字符串兜底匹配。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	if hasS3Code(err, "nosuchkey", "notfound") {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "nosuchkey") ||
		strings.Contains(lower, "specified key does not exist") ||
		strings.Contains(lower, "not found")
}

// IsNoSuchBucket 判断错误是否表示 Bucket 不存在（S3/MinIO: NoSuchBucket）。
func IsNoSuchBucket(err error) bool {
	if err == nil {
		return false
	}
	if hasS3Code(err, "nosuchbucket") {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "nosuchbucket") ||
		strings.Contains(lower, "specified bucket does not exist")
}
