package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"cvtailor/internal/storage"
)

// inlineObjectAsDataURI 读取对象存储中的图片并编码为 data URI。
func inlineObjectAsDataURI(ctx context.Context, storageClient *storage.Client, objectKey string) (string, error) {
	obj, err := storageClient.GetObject(ctx, objectKey)
	if err != nil {
		return "", fmt.Errorf("fetch object %q: %w", objectKey, err)
	}
	defer obj.Close()

	stat, statErr := obj.Stat()
	contentType := "image/png"
	if statErr == nil && stat.ContentType != "" {
		contentType = stat.ContentType
	}

	imageBytes, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("read object %q: %w", objectKey, err)
	}

	encoded := base64.StdEncoding.EncodeToString(imageBytes)
	return fmt.Sprintf("data:%s;base64,%s", contentType, encoded), nil
}
